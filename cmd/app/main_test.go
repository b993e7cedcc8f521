package main

import "testing"

func TestParseCrop(t *testing.T) {
	r, err := parseCrop("10, 20,300,200")
	if err != nil {
		t.Fatal(err)
	}
	if r.X != 10 || r.Y != 20 || r.Width != 300 || r.Height != 200 {
		t.Fatalf("crop = %+v", r)
	}
	for _, bad := range []string{"1,2,3", "a,b,c,d", ""} {
		if _, err := parseCrop(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestParseTexts(t *testing.T) {
	texts, err := parseTexts(`[{"content":"Hi","x":5,"y":40,"font_size":32}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0].Content != "Hi" || texts[0].FontSize != 32 {
		t.Fatalf("texts = %+v", texts)
	}
	if texts, err := parseTexts(""); err != nil || texts != nil {
		t.Fatalf("empty = %v, %v", texts, err)
	}
	if _, err := parseTexts("{"); err == nil {
		t.Fatal("expected error")
	}
}
