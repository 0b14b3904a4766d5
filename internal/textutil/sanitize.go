package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameBytes is the common file name limit of ext4, NTFS and APFS.
const maxNameBytes = 255

// reservedNames cannot be used as a base name on Windows shares, where many
// emulation front ends keep their library.
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {},
}

// SanitizeFileName makes a dump name safe to place in the library. No-Intro
// and Redump tags, apostrophes and the extension survive; separators become
// dashes, a colon becomes " -", and control characters are dropped. Names
// that end up empty or that name a directory return "".
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || r == '*' || r == '|':
			b.WriteByte('-')
		case r == ':':
			b.WriteString(" -")
		case r == '"':
			b.WriteByte('\'')
		case r == '?' || r == '<' || r == '>' || r == utf8.RuneError || unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimRight(strings.TrimSpace(b.String()), ". ")
	if out == "" || out == "." || out == ".." {
		return ""
	}

	ext := filepath.Ext(out)
	stem := strings.TrimSuffix(out, ext)
	if _, reserved := reservedNames[strings.ToLower(stem)]; reserved {
		stem = "_" + stem
	}
	if len(stem)+len(ext) > maxNameBytes {
		stem = truncateUTF8(stem, maxNameBytes-len(ext))
	}
	return stem + ext
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for len(s) > n {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return strings.TrimSpace(s)
}
