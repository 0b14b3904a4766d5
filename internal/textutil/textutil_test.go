package textutil

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Super Mario Bros. 3 (USA) (Rev 1)", "Super Mario Bros. 3"},
		{"Chrono Trigger [!]", "Chrono Trigger"},
		{"Final Fantasy VII (USA) (Disc 1)", "Final Fantasy VII"},
		{"Plain", "Plain"},
	}
	for _, tt := range tests {
		if got := StripTags(tt.in); got != tt.want {
			t.Errorf("StripTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Street Fighter II' Turbo", "street fighter ii turbo"},
		{"Pokémon - Red Version (USA)", "pokemon red version"},
		{"  Bruce's Controller Test v1.0 (2004) ", "bruces controller test v1 0"},
		{"(Unl)", "unl"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	if got := TitleSimilarity("Super Mario Bros. 3 (USA)", "super mario bros 3"); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected identical titles to score 1, got %v", got)
	}
	if got := TitleSimilarity("Zelda", "Metroid"); got != 0 {
		t.Fatalf("expected disjoint titles to score 0, got %v", got)
	}
	partial := TitleSimilarity("Super Mario World", "Super Mario Bros")
	if partial <= 0 || partial >= 1 {
		t.Fatalf("expected partial similarity, got %v", partial)
	}
	if got := TitleSimilarity("", "anything"); got != 0 {
		t.Fatalf("expected empty title to score 0, got %v", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Zelda: Link's Awakening (USA).gb", "Zelda - Link's Awakening (USA).gb"},
		{"a/b\\c.nes", "a-b-c.nes"},
		{"..", ""},
		{"  ", ""},
		{"what?.sfc", "what.sfc"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameReservedAndLong(t *testing.T) {
	if got := SanitizeFileName("CON.nes"); got != "_CON.nes" {
		t.Fatalf("reserved name not escaped: %q", got)
	}
	if got := SanitizeFileName("tab\there\x00.gb"); got != "tabhere.gb" {
		t.Fatalf("control characters not dropped: %q", got)
	}
	long := strings.Repeat("é", 200) + ".sfc"
	got := SanitizeFileName(long)
	if len(got) > maxNameBytes {
		t.Fatalf("name is %d bytes, want at most %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, ".sfc") || !utf8.ValidString(got) {
		t.Fatalf("truncation broke the name: %q", got)
	}
}
