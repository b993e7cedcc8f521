// Package editservice owns the in-memory edit sessions and exposes every
// mutation the outer surfaces (HTTP, MCP, CLI) need.
//
// Each session has its own mutex, so one session handles one event at a
// time while different sessions proceed in parallel.
package editservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/fonts"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/overlay"
	"github.com/starford/gridsplit/internal/render"
	"github.com/starford/gridsplit/internal/session"
	"github.com/starford/gridsplit/internal/sse"
)

// Session modes, as used in routes and events.
const (
	ModeSplit = "split"
	ModeMerge = "merge"
)

// DefaultMarginMax bounds the split margin when no limit is configured.
const DefaultMarginMax = 200

// Notifier receives session and font events. *sse.Broker implements it.
type Notifier interface {
	Publish(sse.Event)
	PublishSessionEvent(kind, mode, id string)
}

// Config holds the session defaults and limits.
type Config struct {
	SplitPreset     string
	SplitPolicy     grid.Policy
	MarginMax       int
	MergeCols       int
	MergeRows       int
	MergeWidth      int
	MergeHeight     int
	MergeBackground string
	Output          imageio.Output
	DefaultFamily   string
	IdleTTL         time.Duration
	FontWait        time.Duration
}

type splitEntry struct {
	mu      sync.Mutex
	s       *session.SplitSession
	touched time.Time
}

type mergeEntry struct {
	mu      sync.Mutex
	s       *session.MergeSession
	touched time.Time
}

// Service is the session store.
type Service struct {
	cfg      Config
	fonts    *fonts.Registry
	renderer *render.Renderer
	runner   *export.Runner
	notify   Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	splits map[string]*splitEntry
	merges map[string]*mergeEntry
	now    func() time.Time
}

// New creates a service. notify may be nil.
func New(cfg Config, reg *fonts.Registry, renderer *render.Renderer, runner *export.Runner, notify Notifier, logger *slog.Logger) *Service {
	if cfg.SplitPreset == "" {
		cfg.SplitPreset = grid.DefaultPreset
	}
	if cfg.SplitPolicy == "" {
		cfg.SplitPolicy = grid.PolicyEqual
	}
	if cfg.MergeCols <= 0 || cfg.MergeRows <= 0 {
		cfg.MergeCols, cfg.MergeRows = 2, 2
	}
	if cfg.MergeWidth <= 0 || cfg.MergeHeight <= 0 {
		cfg.MergeWidth, cfg.MergeHeight = 1200, 1200
	}
	if cfg.MarginMax <= 0 {
		cfg.MarginMax = DefaultMarginMax
	}
	if cfg.DefaultFamily == "" {
		cfg.DefaultFamily = fonts.Fallback
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = time.Hour
	}
	if cfg.FontWait <= 0 {
		cfg.FontWait = 3 * time.Second
	}
	s := &Service{
		cfg:      cfg,
		fonts:    reg,
		renderer: renderer,
		runner:   runner,
		notify:   notify,
		logger:   logger,
		splits:   map[string]*splitEntry{},
		merges:   map[string]*mergeEntry{},
		now:      time.Now,
	}
	reg.OnLoad(s.fontLoaded)
	return s
}

// Fonts exposes the registry used for measurement.
func (s *Service) Fonts() *fonts.Registry {
	return s.fonts
}

// Renderer exposes the renderer.
func (s *Service) Renderer() *render.Renderer {
	return s.renderer
}

// Runner exposes the export runner.
func (s *Service) Runner() *export.Runner {
	return s.runner
}

func (s *Service) measurer() overlay.Measurer {
	return s.fonts
}

func (s *Service) publish(kind, mode, id string) {
	if s.notify != nil {
		s.notify.PublishSessionEvent(kind, mode, id)
	}
}

func (s *Service) split(id string) (*splitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.splits[id]
	if !ok {
		return nil, fmt.Errorf("split session %s: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

func (s *Service) merge(id string) (*mergeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.merges[id]
	if !ok {
		return nil, fmt.Errorf("merge session %s: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

// withSplit runs fn under the session lock and returns the fresh view.
// Mutations are announced to the notifier.
func (s *Service) withSplit(id string, mutate bool, fn func(*session.SplitSession) error) (session.SplitView, error) {
	e, err := s.split(id)
	if err != nil {
		return session.SplitView{}, err
	}
	e.mu.Lock()
	e.touched = s.now()
	if fn != nil {
		if err := fn(e.s); err != nil {
			e.mu.Unlock()
			return session.SplitView{}, err
		}
	}
	v := e.s.View()
	e.mu.Unlock()

	if mutate {
		s.publish("updated", ModeSplit, id)
	}
	return v, nil
}

func (s *Service) withMerge(id string, mutate bool, fn func(*session.MergeSession) error) (session.MergeView, error) {
	e, err := s.merge(id)
	if err != nil {
		return session.MergeView{}, err
	}
	e.mu.Lock()
	e.touched = s.now()
	if fn != nil {
		if err := fn(e.s); err != nil {
			e.mu.Unlock()
			return session.MergeView{}, err
		}
	}
	v := e.s.View()
	e.mu.Unlock()

	if mutate {
		s.publish("updated", ModeMerge, id)
	}
	return v, nil
}

func newID() string {
	return uuid.NewString()
}

// Sweep drops sessions idle for longer than the TTL and returns how many.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	var gone []string
	var modes []string

	s.mu.Lock()
	for id, e := range s.splits {
		e.mu.Lock()
		idle := e.touched.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.splits, id)
			gone, modes = append(gone, id), append(modes, ModeSplit)
		}
	}
	for id, e := range s.merges {
		e.mu.Lock()
		idle := e.touched.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.merges, id)
			gone, modes = append(gone, id), append(modes, ModeMerge)
		}
	}
	s.mu.Unlock()

	for i, id := range gone {
		s.runner.CancelSession(id)
		s.publish("deleted", modes[i], id)
		s.logger.Debug("sessions: evicted idle", slog.String("mode", modes[i]), slog.String("id", id))
	}
	return len(gone)
}

// Run sweeps idle sessions periodically until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	t := time.NewTicker(max(s.cfg.IdleTTL/4, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep()
		}
	}
}

// Counts returns the number of live split and merge sessions.
func (s *Service) Counts() (splits, merges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.splits), len(s.merges)
}

// fontLoaded announces a newly available family and asks every session
// with an overlay in that family to redraw.
func (s *Service) fontLoaded(family string) {
	if s.notify == nil {
		return
	}
	s.notify.Publish(sse.Event{Type: sse.FontLoaded, Data: map[string]string{"family": family}})

	type ref struct{ mode, id string }
	var affected []ref

	s.mu.Lock()
	splits := make(map[string]*splitEntry, len(s.splits))
	for id, e := range s.splits {
		splits[id] = e
	}
	merges := make(map[string]*mergeEntry, len(s.merges))
	for id, e := range s.merges {
		merges[id] = e
	}
	s.mu.Unlock()

	for id, e := range splits {
		e.mu.Lock()
		if usesFamily(e.s.Overlays, family) {
			affected = append(affected, ref{ModeSplit, id})
		}
		e.mu.Unlock()
	}
	for id, e := range merges {
		e.mu.Lock()
		if usesFamily(e.s.Overlays, family) {
			affected = append(affected, ref{ModeMerge, id})
		}
		e.mu.Unlock()
	}
	for _, r := range affected {
		s.notify.PublishSessionEvent("updated", r.mode, r.id)
	}
}

func usesFamily(set *overlay.Set, family string) bool {
	for _, o := range set.Items() {
		if strings.EqualFold(o.FontFamily, family) {
			return true
		}
	}
	return false
}
