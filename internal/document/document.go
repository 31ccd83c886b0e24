// Package document loads, splices and saves the watched documents.
package document

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/tags"
)

// Document is a watched file, read fresh for every run.
type Document struct {
	// Path is absolute.
	Path string
	Text string

	mode fs.FileMode
	// enc is the BOM-carrying encoding the file was read with; nil means
	// plain bytes.
	enc  encoding.Encoding
}

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// detect returns the encoding announced by raw's byte order mark.
func detect(raw []byte) encoding.Encoding {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return unicode.UTF8BOM
	case bytes.HasPrefix(raw, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case bytes.HasPrefix(raw, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	}
	return nil
}

// Load reads path. A UTF-8 or UTF-16 byte order mark is removed and UTF-16
// content is decoded; anything else is kept byte-for-byte. Save writes the
// same encoding and mark back.
func Load(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, tagerrors.NewIOError(tagerrors.CodeDocumentRead, "cannot resolve document path", err).WithPath(path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, tagerrors.NewIOError(tagerrors.CodeDocumentRead, "cannot stat document", err).WithPath(abs)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, tagerrors.NewIOError(tagerrors.CodeDocumentRead, "cannot read document", err).WithPath(abs)
	}

	text, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		return nil, tagerrors.NewIOError(tagerrors.CodeDocumentRead, "cannot decode document", err).WithPath(abs)
	}

	return &Document{Path: abs, Text: string(text), mode: info.Mode().Perm(), enc: detect(raw)}, nil
}

// Dir is the directory includes and history files are resolved against.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Save writes the whole text back, keeping the file's permissions and the
// encoding it was loaded with.
func (d *Document) Save() error {
	mode := d.mode
	if mode == 0 {
		mode = 0o644
	}
	data := []byte(d.Text)
	if d.enc != nil {
		encoded, _, err := transform.Bytes(d.enc.NewEncoder(), data)
		if err != nil {
			return tagerrors.NewIOError(tagerrors.CodeDocumentWrite, "cannot encode document", err).WithPath(d.Path)
		}
		data = encoded
	}
	if err := os.WriteFile(d.Path, data, mode); err != nil {
		return tagerrors.NewIOError(tagerrors.CodeDocumentWrite, "cannot write document", err).WithPath(d.Path)
	}
	return nil
}

// Splice replaces exactly the located tag span of text with replacement.
// tag must have been located in text.
func Splice(text string, tag tags.Tag, replacement string) string {
	return text[:tag.Start] + replacement + text[tag.End:]
}

// Merge drops the tag span of text and writes replacement over the sentinel
// at offset at, which must lie outside the tag.
func Merge(text string, tag tags.Tag, at int, replacement string) string {
	end := at + len(tags.Sentinel)
	if at < tag.Start {
		return text[:at] + replacement + text[end:tag.Start] + text[tag.End:]
	}
	return text[:tag.Start] + text[tag.End:at] + replacement + text[end:]
}
