package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		in      string
		want    Quality
		wantErr bool
	}{
		{"Original", QualityOriginal, false},
		{"original", QualityOriginal, false},
		{"W400", "W400", false},
		{"w1600", "W1600", false},
		{"W0", "", true},
		{"W-1", "", true},
		{"H400", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuality(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuality(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseQuality(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQualityWidth(t *testing.T) {
	if w := QualityOriginal.Width(); w != 0 {
		t.Errorf("Original width = %d, want 0", w)
	}
	if w := QualityForWidth(1600).Width(); w != 1600 {
		t.Errorf("W1600 width = %d, want 1600", w)
	}
}

func TestNewTiers(t *testing.T) {
	tiers := NewTiers([]int{1600, 400, 400, 0})

	if len(tiers) != 2 || tiers[0] != "W400" || tiers[1] != "W1600" {
		t.Fatalf("NewTiers = %v, want [W400 W1600]", tiers)
	}
	if !tiers.Contains("W400") || tiers.Contains(QualityOriginal) {
		t.Error("Contains returned unexpected result")
	}

	all := tiers.All()
	if len(all) != 3 || all[0] != QualityOriginal {
		t.Errorf("All = %v, want Original first", all)
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("abc", "W400"); got != "abc_W400" {
		t.Errorf("ObjectKey = %q, want abc_W400", got)
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("outer: %w", Unavailable("create", "upload failed", cause))

	if KindOf(wrapped) != KindUpstreamUnavailable {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindUpstreamUnavailable)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("domain error should unwrap to its cause")
	}
	if KindOf(cause) != "" {
		t.Error("plain error should have empty kind")
	}

	rl := RateLimited("create", 2*time.Second)
	if !rl.Retryable() || rl.RetryAfter != 2*time.Second {
		t.Errorf("rate limited error = %+v", rl)
	}
	if BadInput("create", "bad", nil).Retryable() {
		t.Error("bad input should not be retryable")
	}
}
