package grouping

import (
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"romimport/internal/identification"
)

var (
	trackPattern = regexp.MustCompile(`(?i)\s*[\(\[]\s*track\s*\d+\s*[\)\]]`)
	discPattern  = regexp.MustCompile(`(?i)(?:^|[\s_\-\(\[]+)(?:disc|disk|cd)[\s_]*(\d+)(?:\s*of\s*(\d+))?\s*[\)\]]?`)
)

// TitleStem strips the extension, track markers and disc indicators from a
// file name so every file of one title shares the same stem.
func TitleStem(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if ext := identification.ExtensionOf(base); ext != "" {
		base = base[:len(base)-len(ext)-1]
	}
	base = trackPattern.ReplaceAllString(base, "")
	base = discPattern.ReplaceAllString(base, "")
	base = strings.Join(strings.Fields(base), " ")
	return strings.Trim(base, " _-")
}

// DiscNumber extracts the disc index from names such as "Game (Disc 2).cue".
func DiscNumber(name string) (int, bool) {
	m := discPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DiscTotal extracts the set size from names such as "Game (Disc 1 of 3).chd".
func DiscTotal(name string) (int, bool) {
	m := discPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil || m[2] == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DiscName rewrites the disc number in the base name of template to n,
// keeping the marker format and extension.
func DiscName(template string, n int) string {
	base := filepath.Base(template)
	loc := discPattern.FindStringSubmatchIndex(base)
	if loc == nil {
		return base
	}
	return base[:loc[2]] + strconv.Itoa(n) + base[loc[3]:]
}

// MatchesMissing reports whether name satisfies one of the missing sibling
// names recorded on a partial item. Comparison is on base names and ignores
// case.
func MatchesMissing(missing []string, name string) bool {
	base := strings.ToLower(filepath.Base(name))
	for _, m := range missing {
		if strings.ToLower(filepath.Base(m)) == base {
			return true
		}
	}
	return false
}

func addRank(path string) int {
	ext := identification.ExtensionOf(path)
	switch {
	case ext == "m3u":
		return 0
	case ext == "cue":
		return 1
	case identification.IsArtworkExtension(ext):
		return 3
	default:
		return 2
	}
}

// SortForAdd orders a batch so playlists come first, then cue sheets, then
// everything else, with artwork last. Sheets then claim their tracks before
// the tracks are processed on their own. The sort is stable.
func SortForAdd(paths []string) []string {
	out := slices.Clone(paths)
	slices.SortStableFunc(out, func(a, b string) int {
		return addRank(a) - addRank(b)
	})
	return out
}
