package version

import (
	"errors"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int // sign only
	}{
		{"equal", "1.2.3", "1.2.3", 0},
		{"patch less", "1.2.0", "1.2.1", -1},
		{"component-wise not lexicographic", "1.2.0", "1.10.0", -1},
		{"major wins", "2.0.0", "1.99.99", 1},
		{"missing trailing segments are zero", "1.2", "1.2.0", 0},
		{"short form less", "1.2", "1.2.1", -1},
		{"longer but equal prefix", "1.2.0.1", "1.2", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sign(Compare(tt.a, tt.b))
			if got != tt.want {
				t.Errorf("Compare(%q, %q) sign = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompare_Antisymmetry(t *testing.T) {
	pairs := [][2]string{
		{"1.2.3", "1.2.4"},
		{"1.2.0", "1.10.0"},
		{"0.0.1", "2.0.0"},
		{"3.1.4", "3.1.4"},
	}
	for _, p := range pairs {
		if sign(Compare(p[0], p[1])) != -sign(Compare(p[1], p[0])) {
			t.Errorf("Compare(%q,%q) not antisymmetric", p[0], p[1])
		}
		if Compare(p[0], p[0]) != 0 {
			t.Errorf("Compare(%q,%q) != 0", p[0], p[0])
		}
	}
}

func TestIsStrict(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"1.2.3", true},
		{"0.0.0", true},
		{"10.20.30", true},
		{"1.2", false},
		{"v1.2.3", false},
		{"1.2.3-beta", false},
		{"1.2.3.4", false},
		{"", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := IsStrict(tt.version); got != tt.want {
				t.Errorf("IsStrict(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestSortDescending(t *testing.T) {
	versions := []string{"1.0.0", "1.10.0", "1.2.0", "2.0.0"}
	SortDescending(versions)
	want := []string{"2.0.0", "1.10.0", "1.2.0", "1.0.0"}
	for i := range want {
		if versions[i] != want[i] {
			t.Fatalf("SortDescending() = %v, want %v", versions, want)
		}
	}
}

func TestLatest(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
		ok       bool
	}{
		{"picks highest", []string{"1.0.0", "1.1.0", "0.9.9"}, "1.1.0", true},
		{"skips non-strict", []string{"v2.0.0", "1.1.0", "1.2"}, "1.1.0", true},
		{"empty", nil, "", false},
		{"only non-strict", []string{"v1.0.0", "beta"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Latest(tt.versions)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Latest(%v) = (%q, %v), want (%q, %v)", tt.versions, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNextPatch(t *testing.T) {
	got, err := NextPatch("1.1.0")
	if err != nil {
		t.Fatalf("NextPatch() error: %v", err)
	}
	if got != "1.1.1" {
		t.Errorf("NextPatch(1.1.0) = %q, want 1.1.1", got)
	}

	_, err = NextPatch("not-a-version")
	if err == nil {
		t.Error("expected error for malformed version")
	}
	var parseErr ErrVersionParseFailed
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ErrVersionParseFailed, got %v", err)
	}
}

func TestSuggestNext(t *testing.T) {
	got, err := SuggestNext([]string{"1.0.0", "1.1.0"})
	if err != nil {
		t.Fatalf("SuggestNext() error: %v", err)
	}
	if got != "1.1.1" {
		t.Errorf("SuggestNext() = %q, want 1.1.1", got)
	}

	_, err = SuggestNext(nil)
	if !errors.Is(err, ErrNoVersionsProvided) {
		t.Errorf("expected ErrNoVersionsProvided, got %v", err)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
