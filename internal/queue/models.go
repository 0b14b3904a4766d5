package queue

import (
	"strings"
	"time"

	"romimport/internal/hashing"
	"romimport/internal/services"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailure    Status = "failure"
	StatusConflict   Status = "conflict"
	StatusPartial    Status = "partial"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusSuccess,
	StatusFailure,
	StatusConflict,
	StatusPartial,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

type statusTransition struct {
	from Status
	to   Status
}

// allowedTransitions is the item state machine. Every outcome is reached
// through processing; conflict, partial and failure items return to queued in
// place and success is terminal.
var allowedTransitions = map[statusTransition]struct{}{
	{from: StatusQueued, to: StatusProcessing}:   {},
	{from: StatusProcessing, to: StatusSuccess}:  {},
	{from: StatusProcessing, to: StatusFailure}:  {},
	{from: StatusProcessing, to: StatusConflict}: {},
	{from: StatusProcessing, to: StatusPartial}:  {},
	{from: StatusProcessing, to: StatusQueued}:   {},
	{from: StatusConflict, to: StatusQueued}:     {},
	{from: StatusPartial, to: StatusQueued}:      {},
	{from: StatusFailure, to: StatusQueued}:      {},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	_, ok := allowedTransitions[statusTransition{from: from, to: to}]
	return ok
}

// FileKind is the classification of an item's source path.
type FileKind string

const (
	FileUnknown   FileKind = "unknown"
	FileROM       FileKind = "rom"
	FileBIOS      FileKind = "bios"
	FileArtwork   FileKind = "artwork"
	FileDiscImage FileKind = "disc_image"
	FileDirectory FileKind = "directory"
	FileArchive   FileKind = "archive"
)

// CandidateSource records which identification tier produced a candidate.
type CandidateSource string

const (
	SourceDigest    CandidateSource = "digest"
	SourceExtension CandidateSource = "extension"
)

// Candidate is one system an item may belong to.
type Candidate struct {
	System string          `json:"system"`
	Source CandidateSource `json:"source"`
}

// HealthSummary describes aggregated queue counts per status.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Success    int
	Failure    int
	Conflict   int
	Partial    int
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID             int64
	Position       int64
	URL            string
	Kind           FileKind
	Candidates     []Candidate
	ChosenSystem   string
	ResolvedSystem string
	ParentID       int64
	Depth          int
	Digest         hashing.Digest
	Status         Status
	FailureKind    services.ErrorKind
	ErrorMessage   string
	Missing        []string
	Constituents   []string
	Duplicate      bool
	Expanded       bool
	EnrichmentNote string
	Note           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition is one recorded status change.
type Transition struct {
	ID      int64
	ItemID  int64
	From    Status
	To      Status
	Message string
	At      time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	if _, ok := statusSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// IsTerminal reports whether the worker is finished with the status until a
// caller intervenes.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusConflict, StatusPartial:
		return true
	default:
		return false
	}
}

// CandidateSystems returns the system IDs of the item's candidates in order.
func (i *Item) CandidateSystems() []string {
	if i == nil || len(i.Candidates) == 0 {
		return nil
	}
	out := make([]string, 0, len(i.Candidates))
	for _, c := range i.Candidates {
		out = append(out, c.System)
	}
	return out
}

// EffectiveSystems returns the user's choice when set, otherwise the candidates.
func (i *Item) EffectiveSystems() []string {
	if i == nil {
		return nil
	}
	if i.ChosenSystem != "" {
		return []string{i.ChosenSystem}
	}
	return i.CandidateSystems()
}

// ResetOutcome clears fields written by a previous processing attempt while
// keeping the cached digest, candidates and expansion flag.
func (i *Item) ResetOutcome() {
	i.FailureKind = ""
	i.ErrorMessage = ""
	i.Missing = nil
	i.Duplicate = false
	i.EnrichmentNote = ""
	i.Note = ""
}
