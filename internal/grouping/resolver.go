package grouping

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"romimport/internal/identification"
	"romimport/internal/queue"
)

// DecisionKind is the outcome category of Resolve.
type DecisionKind string

const (
	// DecisionUnmatched means the item has no candidate system at all.
	DecisionUnmatched DecisionKind = "unmatched"
	DecisionSingle    DecisionKind = "single"
	DecisionGrouped   DecisionKind = "grouped"
	DecisionPartial   DecisionKind = "partial"
	DecisionConflict  DecisionKind = "conflict"
)

// Decision is the resolver's verdict for one item.
type Decision struct {
	Kind DecisionKind
	// System is set for single and grouped decisions.
	System string
	// Systems lists the competing candidates of a conflict.
	Systems []string
	// Constituents holds every file path of a grouped title, primary first.
	Constituents []string
	// Missing holds the referenced names not present, for partial decisions.
	Missing []string
	// GroupedInto names the sheet that already claimed this file.
	GroupedInto string
}

// Resolver groups multi-file titles and settles single-system decisions.
type Resolver struct {
	fs afero.Fs
	// SheetSystem reports the system a sheet was already imported under, if
	// any. It lets a track that arrives after its sheet join the sheet's
	// title instead of conflicting on its own.
	SheetSystem func(sheetPath string) (string, bool)
}

// NewResolver returns a Resolver reading sheets from fsys (the OS
// filesystem when nil).
func NewResolver(fsys afero.Fs) *Resolver {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Resolver{fs: fsys}
}

// Resolve decides how item should be imported given the other file paths in
// its directory.
func (r *Resolver) Resolve(item *queue.Item, siblings []string) (Decision, error) {
	if item == nil {
		return Decision{}, errors.New("item is nil")
	}
	systems := item.EffectiveSystems()
	ext := identification.ExtensionOf(item.URL)

	if identification.IsSheetExtension(ext) {
		constituents, missing, err := r.expandSheet(item.URL, ext, siblings, 0)
		if err != nil {
			return Decision{}, err
		}
		if len(missing) > 0 {
			return Decision{Kind: DecisionPartial, Missing: missing, Constituents: constituents, Systems: systems}, nil
		}
		return settle(systems, DecisionGrouped, constituents), nil
	}

	if sheet, system, ok := r.claimingSheet(item.URL, siblings); ok {
		if len(systems) == 0 || slices.Contains(systems, system) {
			return Decision{Kind: DecisionGrouped, System: system, Constituents: []string{item.URL}, GroupedInto: sheet}, nil
		}
	}

	discs, missing := discSet(item.URL, siblings)
	if len(missing) > 0 {
		return Decision{Kind: DecisionPartial, Missing: missing, Constituents: discs, Systems: systems}, nil
	}
	if len(discs) > 1 {
		return settle(systems, DecisionGrouped, discs), nil
	}
	return settle(systems, DecisionSingle, []string{item.URL}), nil
}

func settle(systems []string, kind DecisionKind, constituents []string) Decision {
	switch len(systems) {
	case 0:
		return Decision{Kind: DecisionUnmatched, Constituents: constituents}
	case 1:
		return Decision{Kind: kind, System: systems[0], Constituents: constituents}
	default:
		return Decision{Kind: DecisionConflict, Systems: slices.Clone(systems), Constituents: constituents}
	}
}

const maxSheetNesting = 2

// expandSheet returns the sheet followed by every file it references. An m3u
// that lists cue sheets pulls in their tracks as well. Missing holds the
// referenced names that are neither among the siblings nor on disk.
func (r *Resolver) expandSheet(path, ext string, siblings []string, depth int) ([]string, []string, error) {
	refs, err := r.readSheet(path, ext)
	if err != nil {
		return nil, nil, err
	}
	constituents := []string{path}
	var missing []string
	dir := filepath.Dir(path)
	for _, ref := range refs {
		target := filepath.Join(dir, filepath.FromSlash(ref))
		found, ok := r.locate(target, siblings)
		if !ok {
			missing = append(missing, filepath.Base(target))
			continue
		}
		constituents = appendUnique(constituents, found)
		refExt := identification.ExtensionOf(found)
		if depth < maxSheetNesting && identification.IsSheetExtension(refExt) {
			nested, nestedMissing, err := r.expandSheet(found, refExt, siblings, depth+1)
			if err != nil {
				return nil, nil, err
			}
			for _, c := range nested[1:] {
				constituents = appendUnique(constituents, c)
			}
			missing = append(missing, nestedMissing...)
		}
	}
	return constituents, missing, nil
}

func (r *Resolver) readSheet(path, ext string) ([]string, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sheet %s: %w", path, err)
	}
	defer f.Close()
	if ext == "m3u" {
		return ParseM3U(f)
	}
	return ParseCue(f)
}

// locate finds target among siblings ignoring case, then falls back to the
// filesystem. It returns the path as it actually exists.
func (r *Resolver) locate(target string, siblings []string) (string, bool) {
	for _, s := range siblings {
		if strings.EqualFold(filepath.Clean(s), filepath.Clean(target)) {
			return s, true
		}
	}
	if info, err := r.fs.Stat(target); err == nil && !info.IsDir() {
		return target, true
	}
	return "", false
}

// claimingSheet finds a sibling sheet that references path and whose system
// is already known.
func (r *Resolver) claimingSheet(path string, siblings []string) (string, string, bool) {
	if r.SheetSystem == nil {
		return "", "", false
	}
	base := filepath.Base(path)
	for _, s := range siblings {
		ext := identification.ExtensionOf(s)
		if !identification.IsSheetExtension(ext) {
			continue
		}
		system, ok := r.SheetSystem(s)
		if !ok {
			continue
		}
		refs, err := r.readSheet(s, ext)
		if err != nil {
			continue
		}
		for _, ref := range refs {
			if strings.EqualFold(filepath.Base(filepath.FromSlash(ref)), base) {
				return s, system, true
			}
		}
	}
	return "", "", false
}

// discSet returns path and every sibling sharing its title stem and
// extension that carries a disc number, ordered by disc. Disc numbers below
// the highest one seen, or below an "of N" total, that have no file are
// returned as missing names built from the first disc's marker. A lone file
// without a total, or a file without a disc number, yields nil.
func discSet(path string, siblings []string) ([]string, []string) {
	if _, ok := DiscNumber(path); !ok {
		return nil, nil
	}
	stem := strings.ToLower(TitleStem(path))
	ext := identification.ExtensionOf(path)
	type disc struct {
		path string
		n    int
	}
	discs := []disc{}
	seen := map[string]struct{}{}
	present := map[int]struct{}{}
	last := 0
	for _, candidate := range append([]string{path}, siblings...) {
		key := strings.ToLower(filepath.Clean(candidate))
		if _, dup := seen[key]; dup {
			continue
		}
		if identification.ExtensionOf(candidate) != ext || strings.ToLower(TitleStem(candidate)) != stem {
			continue
		}
		n, ok := DiscNumber(candidate)
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		present[n] = struct{}{}
		discs = append(discs, disc{path: candidate, n: n})
		last = max(last, n)
		if total, ok := DiscTotal(candidate); ok {
			last = max(last, total)
		}
	}
	if len(discs) < 2 && last <= discs[0].n {
		return nil, nil
	}
	slices.SortStableFunc(discs, func(a, b disc) int { return a.n - b.n })
	out := make([]string, 0, len(discs))
	for _, d := range discs {
		out = append(out, d.path)
	}
	var missing []string
	for n := 1; n <= last; n++ {
		if _, ok := present[n]; !ok {
			missing = append(missing, DiscName(discs[0].path, n))
		}
	}
	return out, missing
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if strings.EqualFold(existing, v) {
			return values
		}
	}
	return append(values, v)
}
