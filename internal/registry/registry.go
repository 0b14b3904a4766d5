package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

//go:embed systems.yaml
var builtinSystems []byte

// BIOSFile describes one firmware image a system may need.
type BIOSFile struct {
	System      string `yaml:"-"`
	FileName    string `yaml:"file"`
	MD5         string `yaml:"md5"`
	Description string `yaml:"description"`
	Optional    bool   `yaml:"optional"`
}

// System is one emulated platform.
type System struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Manufacturer string     `yaml:"manufacturer"`
	Extensions   []string   `yaml:"extensions"`
	RequiresBIOS bool       `yaml:"requires_bios"`
	DiscBased    bool       `yaml:"disc_based"`
	Headered     bool       `yaml:"headered"`
	BIOS         []BIOSFile `yaml:"bios"`
	DatNames     []string   `yaml:"dat_names"`
}

type document struct {
	Systems []System `yaml:"systems"`
}

// Snapshot is an immutable view of the system table. It is safe for
// concurrent use without synchronization.
type Snapshot struct {
	Version int64

	systems     map[string]System
	ordered     []string
	byExtension map[string][]string
	biosByMD5   map[string]BIOSFile
	biosByName  map[string]BIOSFile
	byDatName   map[string]string
}

// Parse builds a snapshot from YAML data.
func Parse(data []byte, version int64) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse system table: %w", err)
	}
	if len(doc.Systems) == 0 {
		return nil, fmt.Errorf("system table defines no systems")
	}

	snap := &Snapshot{
		Version:     version,
		systems:     make(map[string]System, len(doc.Systems)),
		byExtension: make(map[string][]string),
		biosByMD5:   make(map[string]BIOSFile),
		biosByName:  make(map[string]BIOSFile),
		byDatName:   make(map[string]string),
	}
	for _, sys := range doc.Systems {
		sys.ID = strings.TrimSpace(sys.ID)
		if sys.ID == "" {
			return nil, fmt.Errorf("system %q has no id", sys.Name)
		}
		if _, dup := snap.systems[sys.ID]; dup {
			return nil, fmt.Errorf("duplicate system id %q", sys.ID)
		}
		for i, ext := range sys.Extensions {
			if ext == "" || ext != strings.ToLower(ext) || strings.HasPrefix(ext, ".") {
				return nil, fmt.Errorf("system %s: extension %q must be lowercase without a leading dot", sys.ID, ext)
			}
			if contains(sys.Extensions[:i], ext) {
				continue
			}
			snap.byExtension[ext] = append(snap.byExtension[ext], sys.ID)
		}
		for i := range sys.BIOS {
			bios := &sys.BIOS[i]
			bios.System = sys.ID
			bios.MD5 = strings.ToUpper(strings.TrimSpace(bios.MD5))
			if bios.FileName == "" {
				return nil, fmt.Errorf("system %s: bios entry without file name", sys.ID)
			}
			if bios.MD5 != "" {
				snap.biosByMD5[bios.MD5] = *bios
			}
			snap.biosByName[strings.ToLower(bios.FileName)] = *bios
		}
		for _, name := range sys.DatNames {
			snap.byDatName[strings.ToLower(strings.TrimSpace(name))] = sys.ID
		}
		snap.systems[sys.ID] = sys
		snap.ordered = append(snap.ordered, sys.ID)
	}
	sort.Strings(snap.ordered)
	for ext := range snap.byExtension {
		sort.Strings(snap.byExtension[ext])
	}
	return snap, nil
}

// Builtin returns the snapshot compiled into the binary.
func Builtin() *Snapshot {
	snap, err := Parse(builtinSystems, 1)
	if err != nil {
		panic(fmt.Sprintf("registry: builtin system table: %v", err))
	}
	return snap
}

// System returns the system with the given id.
func (s *Snapshot) System(id string) (System, bool) {
	sys, ok := s.systems[id]
	return sys, ok
}

// Known reports whether id names a registered system.
func (s *Snapshot) Known(id string) bool {
	_, ok := s.systems[id]
	return ok
}

// All returns every system sorted by id.
func (s *Snapshot) All() []System {
	out := make([]System, 0, len(s.ordered))
	for _, id := range s.ordered {
		out = append(out, s.systems[id])
	}
	return out
}

// Extensions returns the file extensions registered for a system.
func (s *Snapshot) Extensions(id string) []string {
	sys, ok := s.systems[id]
	if !ok {
		return nil
	}
	return append([]string(nil), sys.Extensions...)
}

// SystemsForExtension returns the ids of every system accepting ext, sorted.
// ext is matched case-insensitively and may carry a leading dot.
func (s *Snapshot) SystemsForExtension(ext string) []string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return nil
	}
	return append([]string(nil), s.byExtension[ext]...)
}

// HasExtension reports whether any system accepts ext.
func (s *Snapshot) HasExtension(ext string) bool {
	return len(s.SystemsForExtension(ext)) > 0
}

// Headered reports whether any system accepting ext may carry a dumper header.
func (s *Snapshot) Headered(ext string) bool {
	for _, id := range s.SystemsForExtension(ext) {
		if s.systems[id].Headered {
			return true
		}
	}
	return false
}

// RequiresBIOS reports whether the system needs firmware to boot.
func (s *Snapshot) RequiresBIOS(id string) bool {
	return s.systems[id].RequiresBIOS
}

// DiscBased reports whether the system loads optical media images.
func (s *Snapshot) DiscBased(id string) bool {
	return s.systems[id].DiscBased
}

// BIOSByDigest finds a firmware image by upper-case MD5.
func (s *Snapshot) BIOSByDigest(md5 string) (BIOSFile, bool) {
	bios, ok := s.biosByMD5[strings.ToUpper(md5)]
	return bios, ok
}

// BIOSByName finds a firmware image by file name, case-insensitively.
func (s *Snapshot) BIOSByName(name string) (BIOSFile, bool) {
	bios, ok := s.biosByName[strings.ToLower(strings.TrimSpace(name))]
	return bios, ok
}

// SystemForDatName maps a DAT header name such as "Nintendo - Game Boy" to a
// system id.
func (s *Snapshot) SystemForDatName(name string) (string, bool) {
	id, ok := s.byDatName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Registry publishes the current snapshot. Readers never block; Reload swaps
// in a new snapshot whose Version is one higher.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// New returns a registry serving snap.
func New(snap *Snapshot) *Registry {
	r := &Registry{}
	r.current.Store(snap)
	return r
}

// Load returns a registry backed by the YAML file at path, or the builtin
// table when path is empty.
func Load(path string) (*Registry, error) {
	snap, err := readSnapshot(path, 1)
	if err != nil {
		return nil, err
	}
	return New(snap), nil
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Reload rebuilds the snapshot from path (or the builtin table when empty).
// The previous snapshot stays valid for holders of it.
func (r *Registry) Reload(path string) (*Snapshot, error) {
	prev := r.current.Load()
	var next int64 = 1
	if prev != nil {
		next = prev.Version + 1
	}
	snap, err := readSnapshot(path, next)
	if err != nil {
		return nil, err
	}
	if !r.current.CompareAndSwap(prev, snap) {
		return nil, fmt.Errorf("registry reloaded concurrently")
	}
	return snap, nil
}

func readSnapshot(path string, version int64) (*Snapshot, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(builtinSystems, version)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read system table: %w", err)
	}
	return Parse(data, version)
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
