package window

import (
	"testing"
	"time"
)

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		name string
		slug string
		want bool
	}{
		{"valid boundary", "btc-updown-5m-1708531200", true},
		{"not a 300s multiple", "btc-updown-5m-1708531201", false},
		{"wrong prefix", "eth-updown-5m-1708531200", false},
		{"wrong interval", "btc-updown-15m-1708531200", false},
		{"too few digits", "btc-updown-5m-12345", false},
		{"non-numeric suffix", "btc-updown-5m-abcdefghij", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSlug(tt.slug); got != tt.want {
				t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
			}
		})
	}
}

func TestEnumerateSlugsLandOn5MinBoundaries(t *testing.T) {
	now, err := time.Parse(time.RFC3339, "2024-02-21T12:03:17Z")
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	slugs := enumerateSlugs(now, 6)

	if len(slugs) != 6 {
		t.Fatalf("expected 6 slugs, got %d", len(slugs))
	}
	for _, s := range slugs {
		if !IsValidSlug(s) {
			t.Errorf("enumerated slug %q is not valid", s)
		}
	}
}

func TestWindowSpreadAndEntryPrice(t *testing.T) {
	w := Window{UpPrice: 0.55, DownPrice: 0.42}
	if got := w.Spread(); got < 0.029 || got > 0.031 {
		t.Errorf("Spread() = %v, want ~0.03", got)
	}
	if got := w.EntryPrice(Up); got != 0.55 {
		t.Errorf("EntryPrice(Up) = %v, want 0.55", got)
	}
	if got := w.EntryPrice(Down); got != 0.42 {
		t.Errorf("EntryPrice(Down) = %v, want 0.42", got)
	}
}
