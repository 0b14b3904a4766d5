package enrichment

import (
	"context"

	"romimport/internal/datfile"
	"romimport/internal/textutil"
)

// DatIndex is the subset of datfile.Index DatProvider reads.
type DatIndex interface {
	LookupMD5(md5 string) (datfile.Entry, bool)
	LookupTitle(system, title string) (datfile.Entry, bool)
}

// DatProvider answers from DAT file descriptions. It knows titles, regions
// and years but no artwork.
type DatProvider struct {
	index DatIndex
}

// NewDatProvider wraps a loaded DAT index.
func NewDatProvider(index DatIndex) *DatProvider {
	return &DatProvider{index: index}
}

// LookupDigest implements Provider.
func (p *DatProvider) LookupDigest(_ context.Context, md5 string) (*Result, error) {
	if p == nil || p.index == nil || md5 == "" {
		return nil, nil
	}
	entry, ok := p.index.LookupMD5(md5)
	if !ok {
		return nil, nil
	}
	return resultFromEntry(entry), nil
}

// LookupTitle implements Provider.
func (p *DatProvider) LookupTitle(_ context.Context, system, title string) (*Result, error) {
	if p == nil || p.index == nil {
		return nil, nil
	}
	entry, ok := p.index.LookupTitle(system, title)
	if !ok {
		return nil, nil
	}
	return resultFromEntry(entry), nil
}

func resultFromEntry(e datfile.Entry) *Result {
	title := textutil.StripTags(e.Title)
	if title == "" {
		title = textutil.StripTags(e.Game)
	}
	return &Result{
		Title:       title,
		Region:      e.Region,
		ReleaseDate: e.Year,
		Source:      "dat",
	}
}
