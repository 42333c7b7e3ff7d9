// Package tags carries title/artist metadata from the uploaded file onto the
// extended MP3.
package tags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// Metadata is the subset of tags we preserve.
type Metadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Year   int    `json:"year,omitempty"`
	Format string `json:"format,omitempty"`
}

// Empty reports whether there is nothing worth writing.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Artist == "" && m.Album == "" && m.Genre == "" && m.Year == 0
}

// Read extracts metadata from any format dhowden/tag understands. Files with
// no tags return an empty Metadata and no error.
func Read(r io.ReadSeeker) (Metadata, error) {
	md, err := tag.ReadFrom(r)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read tags: %w", err)
	}
	return Metadata{
		Title:  strings.TrimSpace(md.Title()),
		Artist: strings.TrimSpace(md.Artist()),
		Album:  strings.TrimSpace(md.Album()),
		Genre:  strings.TrimSpace(md.Genre()),
		Year:   md.Year(),
		Format: string(md.Format()),
	}, nil
}

// Apply prefixes an ID3v2.4 tag built from md to an untagged MP3 stream.
func Apply(mp3 []byte, md Metadata) ([]byte, error) {
	if md.Empty() {
		return mp3, nil
	}

	t := id3v2.NewEmptyTag()
	t.SetVersion(4)
	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	if md.Title != "" {
		t.SetTitle(md.Title)
	}
	if md.Artist != "" {
		t.SetArtist(md.Artist)
	}
	if md.Album != "" {
		t.SetAlbum(md.Album)
	}
	if md.Genre != "" {
		t.SetGenre(md.Genre)
	}
	if md.Year != 0 {
		t.SetYear(strconv.Itoa(md.Year))
	}

	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write id3 tag: %w", err)
	}
	buf.Write(mp3)
	return buf.Bytes(), nil
}
