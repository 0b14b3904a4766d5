package datfile

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"romimport/internal/hashing"
	"romimport/internal/textutil"
)

// Entry is one ROM known to the reference table.
type Entry struct {
	System  string
	Game    string
	RomName string
	Title   string
	Region  string
	Year    string
	Size    int64
	MD5     string
	CRC32   string
	SHA1    string
}

// Index maps digests and titles to reference entries. It is safe for
// concurrent use.
type Index struct {
	mu      sync.RWMutex
	byMD5   map[string][]Entry
	bySHA1  map[string][]Entry
	byCRC   map[string][]Entry
	byTitle map[string]map[string]Entry
	count   int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byMD5:   make(map[string][]Entry),
		bySHA1:  make(map[string][]Entry),
		byCRC:   make(map[string][]Entry),
		byTitle: make(map[string]map[string]Entry),
	}
}

// AddGame indexes every ROM of game under system.
func (x *Index) AddGame(system string, game Game) {
	title := textutil.StripTags(firstNonEmpty(game.Description, game.Name))
	region := RegionFromName(game.Name)

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, rom := range game.Roms {
		entry := Entry{
			System:  system,
			Game:    game.Name,
			RomName: path.Base(strings.ReplaceAll(rom.Name, "\\", "/")),
			Title:   title,
			Region:  region,
			Year:    game.Year,
			Size:    rom.Size,
			MD5:     strings.ToUpper(strings.TrimSpace(rom.MD5)),
			CRC32:   strings.ToUpper(strings.TrimSpace(rom.CRC32)),
			SHA1:    strings.ToUpper(strings.TrimSpace(rom.SHA1)),
		}
		if entry.MD5 != "" {
			x.byMD5[entry.MD5] = appendUnique(x.byMD5[entry.MD5], entry)
		}
		if entry.SHA1 != "" {
			x.bySHA1[entry.SHA1] = appendUnique(x.bySHA1[entry.SHA1], entry)
		}
		if entry.CRC32 != "" {
			x.byCRC[entry.CRC32] = appendUnique(x.byCRC[entry.CRC32], entry)
		}
		x.count++
	}
	if key := textutil.NormalizeTitle(title); key != "" && len(game.Roms) > 0 {
		titles := x.byTitle[system]
		if titles == nil {
			titles = make(map[string]Entry)
			x.byTitle[system] = titles
		}
		if _, exists := titles[key]; !exists || game.CloneOf == "" {
			first := game.Roms[0]
			titles[key] = Entry{
				System:  system,
				Game:    game.Name,
				RomName: first.Name,
				Title:   title,
				Region:  region,
				Year:    game.Year,
				MD5:     strings.ToUpper(first.MD5),
			}
		}
	}
}

// Len returns the number of indexed ROM entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Match returns the entries for a digest: MD5 first, then SHA1, then CRC32
// with a matching size.
func (x *Index) Match(d hashing.Digest) []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if d.MD5 != "" {
		if hits := x.byMD5[strings.ToUpper(d.MD5)]; len(hits) > 0 {
			return append([]Entry(nil), hits...)
		}
	}
	if d.SHA1 != "" {
		if hits := x.bySHA1[strings.ToUpper(d.SHA1)]; len(hits) > 0 {
			return append([]Entry(nil), hits...)
		}
	}
	if d.CRC32 != "" {
		var out []Entry
		for _, e := range x.byCRC[strings.ToUpper(d.CRC32)] {
			if e.Size == 0 || e.Size == d.Size {
				out = append(out, e)
			}
		}
		return out
	}
	return nil
}

// SystemsForDigest returns the distinct, sorted system ids whose DATs list d.
func (x *Index) SystemsForDigest(d hashing.Digest) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range x.Match(d) {
		if _, ok := seen[e.System]; ok {
			continue
		}
		seen[e.System] = struct{}{}
		out = append(out, e.System)
	}
	sort.Strings(out)
	return out
}

// LookupMD5 returns the first entry for an MD5.
func (x *Index) LookupMD5(md5 string) (Entry, bool) {
	hits := x.Match(hashing.Digest{MD5: md5})
	if len(hits) == 0 {
		return Entry{}, false
	}
	return hits[0], true
}

// LookupTitle finds a parent game by normalized title within a system.
func (x *Index) LookupTitle(system, title string) (Entry, bool) {
	key := textutil.NormalizeTitle(title)
	if key == "" {
		return Entry{}, false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.byTitle[system][key]
	return e, ok
}

var regionPattern = regexp.MustCompile(`\((USA|Europe|Japan|World|Korea|Brazil|Australia|Germany|France|Spain|Italy|Asia|China|[A-Za-z]+(?:, [A-Za-z]+)+)\)`)

// RegionFromName extracts the No-Intro region tag of a game name, such as
// "USA" from "Super Mario Bros. 3 (USA) (Rev 1)".
func RegionFromName(name string) string {
	m := regionPattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

func appendUnique(entries []Entry, e Entry) []Entry {
	for _, existing := range entries {
		if existing.System == e.System && existing.Game == e.Game && existing.RomName == e.RomName {
			return entries
		}
	}
	return append(entries, e)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
