package enrichment

import (
	"context"

	"romimport/internal/services"
)

// Result is the metadata the pipeline consumes for one title.
type Result struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Developer    string   `json:"developer,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	Region       string   `json:"region,omitempty"`
	FrontArtURL  string   `json:"front_art_url,omitempty"`
	BackArtURL   string   `json:"back_art_url,omitempty"`
	ReferenceURL string   `json:"reference_url,omitempty"`
	Source       string   `json:"source"`
}

// Provider resolves metadata. A nil result with a nil error means no match.
type Provider interface {
	LookupDigest(ctx context.Context, md5 string) (*Result, error)
	LookupTitle(ctx context.Context, system, title string) (*Result, error)
}

// Chain tries providers in order and returns the first match. Errors from
// earlier providers are only reported when no later provider matches.
type Chain []Provider

// LookupDigest implements Provider.
func (c Chain) LookupDigest(ctx context.Context, md5 string) (*Result, error) {
	return c.first(ctx, func(p Provider) (*Result, error) { return p.LookupDigest(ctx, md5) })
}

// LookupTitle implements Provider.
func (c Chain) LookupTitle(ctx context.Context, system, title string) (*Result, error) {
	return c.first(ctx, func(p Provider) (*Result, error) { return p.LookupTitle(ctx, system, title) })
}

func (c Chain) first(ctx context.Context, call func(Provider) (*Result, error)) (*Result, error) {
	var errs services.MultiError
	for _, p := range c {
		if p == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs.Add(err)
			break
		}
		res, err := call(p)
		if err != nil {
			errs.Add(err)
			continue
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, errs.Err()
}
