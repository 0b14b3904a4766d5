package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern       = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	separatorPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// StripTags removes parenthesized and bracketed annotations such as region,
// revision, or dump flags: "Super Mario Bros. 3 (USA) (Rev 1)" becomes
// "Super Mario Bros. 3".
func StripTags(title string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(title, ""))
}

// NormalizeTitle returns a lowercase, accent-free, tag-free comparison key.
func NormalizeTitle(title string) string {
	stripped := StripTags(title)
	if stripped == "" {
		stripped = strings.TrimSpace(title)
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, stripped)
	if err != nil {
		plain = stripped
	}
	plain = strings.ReplaceAll(plain, "'", "")
	plain = separatorPattern.ReplaceAllString(cases.Fold().String(plain), " ")
	return strings.TrimSpace(plain)
}

// TitleSimilarity returns the cosine similarity of the normalized token
// vectors of a and b, in the range [0, 1].
func TitleSimilarity(a, b string) float64 {
	va, na := tokenVector(a)
	vb, nb := tokenVector(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for token, count := range va {
		dot += count * vb[token]
	}
	return dot / (na * nb)
}

func tokenVector(title string) (map[string]float64, float64) {
	fields := strings.Fields(NormalizeTitle(title))
	if len(fields) == 0 {
		return nil, 0
	}
	counts := make(map[string]float64, len(fields))
	for _, token := range fields {
		counts[token]++
	}
	var sum float64
	for _, c := range counts {
		sum += c * c
	}
	return counts, math.Sqrt(sum)
}
