// Package grouping resolves multi-file titles and system conflicts.
//
// Cue sheets and m3u playlists name the files that make up one title; the
// Resolver checks them against the files actually present and reports the
// title as grouped or partial. Multi-disc sets without a playlist are grouped
// by shared title stem. When no grouping settles which system an item
// belongs to, more than one candidate is a conflict for the caller to
// resolve.
package grouping
