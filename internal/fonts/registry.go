// Package fonts resolves font families to faces for measurement and drawing.
//
// The Go Regular face is always available as the fallback; other families
// are .ttf/.otf files loaded from a directory, keyed by their file stem.
// Lookups of unknown families resolve to the fallback so drawing never
// blocks on a font that is still missing.
package fonts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Fallback is the family name of the built-in face.
const Fallback = "Go"

// LoadCallback is called after a family finishes loading.
type LoadCallback func(family string)

// Registry holds the loaded font sources.
type Registry struct {
	mu       sync.RWMutex
	sources  map[string]*text.FontSource
	names    map[string]string
	waiters  map[string][]chan struct{}
	fallback *text.FontSource
	onLoad   []LoadCallback
	logger   *slog.Logger
}

// NewRegistry returns a registry holding only the fallback face.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	fb, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("fonts: fallback: %w", err)
	}
	r := &Registry{
		sources:  map[string]*text.FontSource{},
		names:    map[string]string{},
		waiters:  map[string][]chan struct{}{},
		fallback: fb,
		logger:   logger,
	}
	r.sources[key(Fallback)] = fb
	r.names[key(Fallback)] = Fallback
	return r, nil
}

func key(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

// IsFontFile reports whether path has a loadable font extension.
func IsFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

// FamilyOf returns the family name a font file registers under.
func FamilyOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OnLoad registers fn to run after every successful load.
func (r *Registry) OnLoad(fn LoadCallback) {
	r.mu.Lock()
	r.onLoad = append(r.onLoad, fn)
	r.mu.Unlock()
}

// LoadFile parses a font file and registers it under its file stem,
// replacing any previous source of that family.
func (r *Registry) LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fonts: read %s: %w", path, err)
	}
	return r.Load(FamilyOf(path), data)
}

// Load registers font data under family and wakes anyone waiting for it.
func (r *Registry) Load(family string, data []byte) (string, error) {
	src, err := text.NewFontSource(data)
	if err != nil {
		return "", fmt.Errorf("fonts: parse %s: %w", family, err)
	}

	k := key(family)
	r.mu.Lock()
	// Replaced sources are not closed: faces handed out earlier may still be
	// drawing with them.
	r.sources[k] = src
	r.names[k] = family
	waiters := r.waiters[k]
	delete(r.waiters, k)
	callbacks := slices.Clone(r.onLoad)
	r.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	r.logger.Debug("fonts: loaded", slog.String("family", family))
	for _, fn := range callbacks {
		fn(family)
	}
	return family, nil
}

// LoadDir loads every font file directly inside dir. Files that fail to
// parse are logged and skipped.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("fonts: read dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsFontFile(e.Name()) {
			continue
		}
		if _, err := r.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			r.logger.Warn("fonts: load failed", slog.String("file", e.Name()), slog.String("error", err.Error()))
			continue
		}
		n++
	}
	return n, nil
}

// Remove unregisters family. The fallback cannot be removed.
func (r *Registry) Remove(family string) {
	k := key(family)
	if k == key(Fallback) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, k)
	delete(r.names, k)
}

// Has reports whether family is loaded.
func (r *Registry) Has(family string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[key(family)]
	return ok
}

// Families lists the loaded family names, sorted.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Face returns a face of family at size and whether the family itself was
// resolved. Unknown families get the fallback face.
func (r *Registry) Face(family string, size float64) (text.Face, bool) {
	r.mu.RLock()
	src, ok := r.sources[key(family)]
	if !ok {
		src = r.fallback
	}
	r.mu.RUnlock()
	return src.Face(size), ok
}

// MeasureText returns the advance width of content in family at size.
func (r *Registry) MeasureText(content, family string, size float64) float64 {
	if content == "" || size <= 0 {
		return 0
	}
	face, _ := r.Face(family, size)
	return face.Advance(content)
}

// EnsureLoaded waits until family is loaded or ctx is done. It reports
// whether the family is available; callers fall back to the default face
// otherwise.
func (r *Registry) EnsureLoaded(ctx context.Context, family string) bool {
	k := key(family)
	r.mu.Lock()
	if _, ok := r.sources[k]; ok {
		r.mu.Unlock()
		return true
	}
	ch := make(chan struct{})
	r.waiters[k] = append(r.waiters[k], ch)
	r.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		r.dropWaiter(k, ch)
		return false
	}
}

func (r *Registry) dropWaiter(k string, ch chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters[k] = slices.DeleteFunc(r.waiters[k], func(c chan struct{}) bool { return c == ch })
	if len(r.waiters[k]) == 0 {
		delete(r.waiters, k)
	}
}
