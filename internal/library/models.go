package library

import "time"

// Entry is one imported game.
type Entry struct {
	ID     int64
	MD5    string
	CRC32  string
	SHA1   string
	Size   int64
	System string
	Title  string
	// Stem is the file title stem used to pair loose artwork with the game.
	Stem string
	// Path is the primary file inside the library.
	Path string
	// Constituents lists every placed file of a multi-file title, primary first.
	Constituents []string
	SourceURL    string

	Region           string
	Description      string
	Developer        string
	Publisher        string
	ReleaseDate      string
	Genres           []string
	FrontArtURL      string
	BackArtURL       string
	ReferenceURL     string
	EnrichmentSource string

	ImportedAt time.Time
}

// BIOS is one firmware image placed under bios/<system>.
type BIOS struct {
	ID         int64
	MD5        string
	System     string
	Name       string
	Path       string
	ImportedAt time.Time
}

// ArtworkKind labels how an artwork file relates to its game.
type ArtworkKind string

const (
	ArtworkFront ArtworkKind = "front"
	ArtworkBack  ArtworkKind = "back"
	ArtworkOther ArtworkKind = "other"
)

// Artwork is an image stored in the library. GameID is zero when no game
// matched the image at import time.
type Artwork struct {
	ID        int64
	GameID    int64
	Kind      ArtworkKind
	Path      string
	CreatedAt time.Time
}
