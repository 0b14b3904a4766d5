package identification

import (
	"path/filepath"
	"strings"
)

// ExtensionOf returns the lowercased text after the final dot of the base
// name. Names with no dot, a trailing dot, or only a leading dot have no
// extension.
func ExtensionOf(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

var artworkExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"webp": {},
	"bmp":  {},
}

var discImageExtensions = map[string]struct{}{
	"cue": {},
	"m3u": {},
	"iso": {},
	"chd": {},
	"ccd": {},
	"img": {},
	"gdi": {},
	"toc": {},
	"cdi": {},
}

// IsArtworkExtension reports whether ext names an image format imported as box art.
func IsArtworkExtension(ext string) bool {
	_, ok := artworkExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// IsSheetExtension reports whether ext names a cue sheet or m3u playlist.
func IsSheetExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return ext == "cue" || ext == "m3u"
}
