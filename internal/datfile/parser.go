package datfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Header is the <header> element of a DAT file.
type Header struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
	Author      string `xml:"author"`
}

// Rom is one file of a game entry.
type Rom struct {
	Name  string `xml:"name,attr"`
	Size  int64  `xml:"size,attr"`
	CRC32 string `xml:"crc,attr"`
	MD5   string `xml:"md5,attr"`
	SHA1  string `xml:"sha1,attr"`
}

// Game is a <game> or <machine> element.
type Game struct {
	Name         string `xml:"name,attr"`
	CloneOf      string `xml:"cloneof,attr"`
	Description  string `xml:"description"`
	Year         string `xml:"year"`
	Manufacturer string `xml:"manufacturer"`
	Roms         []Rom  `xml:"rom"`
}

// Walk streams the DAT document from r, calling onHeader once when the header
// is seen and onGame for every game. Games are never collected in memory.
func Walk(r io.Reader, onHeader func(Header) error, onGame func(Game) error) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read DAT token: %w", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "header":
			var header Header
			if err := decoder.DecodeElement(&header, &start); err != nil {
				return fmt.Errorf("decode DAT header: %w", err)
			}
			if onHeader != nil {
				if err := onHeader(header); err != nil {
					return err
				}
			}
		case "game", "machine":
			var game Game
			if err := decoder.DecodeElement(&game, &start); err != nil {
				return fmt.Errorf("decode DAT game: %w", err)
			}
			if onGame != nil {
				if err := onGame(game); err != nil {
					return err
				}
			}
		}
	}
}
