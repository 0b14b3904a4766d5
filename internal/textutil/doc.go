// Package textutil normalizes ROM titles and file names.
//
// NormalizeTitle produces the comparison key used when matching titles
// across DAT files, the metadata provider, and sibling disc files: accents
// are folded away, No-Intro style tags in parentheses or brackets are
// removed, and punctuation collapses to single spaces. TitleSimilarity
// scores two titles with a token cosine so near-miss provider results can
// be ranked.
package textutil
