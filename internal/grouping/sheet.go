package grouping

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var cueFilePattern = regexp.MustCompile(`(?i)^\s*FILE\s+(?:"([^"]+)"|(\S+))`)

// ParseCue returns the file names referenced by FILE lines in a cue sheet, in
// order and without duplicates.
func ParseCue(r io.Reader) ([]string, error) {
	var refs []string
	seen := map[string]struct{}{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "\ufeff")
		m := cueFilePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if name == "" {
			name = m[2]
		}
		name = normalizeRef(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cue sheet: %w", err)
	}
	return refs, nil
}

// ParseM3U returns the entries of an m3u playlist. Blank lines and #
// directives are skipped.
func ParseM3U(r io.Reader) ([]string, error) {
	var refs []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if name := normalizeRef(line); name != "" {
			refs = append(refs, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	return refs, nil
}

// normalizeRef converts Windows separators so references resolve on any OS.
func normalizeRef(name string) string {
	name = strings.TrimSpace(name)
	return strings.ReplaceAll(name, `\`, "/")
}
