// Package history appends an audit record of every generation next to the
// document it changed.
package history

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/placeholder"
)

// Defaults used when the configuration leaves history unset.
const (
	DefaultFile     = "{filename}.history.md"
	DefaultTemplate = "\n---\nPrompt: {prompt}\nResult: {result}\nTimestamp: {timestamp}\n\n"

	TimestampLayout = "2006-01-02 15:04:05"
)

// Placeholder names.
var (
	FileKeys     = []string{"filename"}
	TemplateKeys = []string{"prompt", "result", "timestamp"}
)

// Entry is one generation record.
type Entry struct {
	Prompt    string
	Result    string
	Timestamp time.Time
}

// Recorder appends entries using a file name template and an entry
// template.
type Recorder struct {
	File     string
	Template string
}

// NewRecorder falls back to the defaults for empty templates.
func NewRecorder(file, template string) *Recorder {
	if file == "" {
		file = DefaultFile
	}
	if template == "" {
		template = DefaultTemplate
	}
	return &Recorder{File: file, Template: template}
}

// FileName returns the history file path for docPath: the file template
// filled with the document's base name, in the document's directory.
func (r *Recorder) FileName(docPath string) string {
	name := placeholder.Fill(r.File, map[string]string{"filename": filepath.Base(docPath)})
	return filepath.Join(filepath.Dir(docPath), name)
}

// Render formats e with the entry template.
func (r *Recorder) Render(e Entry) string {
	return placeholder.Fill(r.Template, map[string]string{
		"prompt":    e.Prompt,
		"result":    e.Result,
		"timestamp": e.Timestamp.Format(TimestampLayout),
	})
}

// Append writes e to the history file of docPath, creating it if needed,
// and returns the history file path.
func (r *Recorder) Append(docPath string, e Entry) (string, error) {
	path := r.FileName(docPath)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return path, tagerrors.NewIOError(tagerrors.CodeHistoryWrite, "cannot open history file", err).WithPath(path)
	}

	if _, err := f.WriteString(r.Render(e)); err != nil {
		_ = f.Close()
		return path, tagerrors.NewIOError(tagerrors.CodeHistoryWrite, "cannot append history entry", err).WithPath(path)
	}
	if err := f.Close(); err != nil {
		return path, tagerrors.NewIOError(tagerrors.CodeHistoryWrite, "cannot close history file", err).WithPath(path)
	}

	return path, nil
}

// Recorded reports whether the history file of docPath already holds an
// entry for prompt. The entry is matched on the prompt together with the
// literal template text around it, so with the default template a prompt
// never matches a longer one it prefixes.
func (r *Recorder) Recorded(docPath, prompt string) (bool, error) {
	segment, ok := r.promptSegment(prompt)
	if !ok {
		return false, nil
	}

	path := r.FileName(docPath)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, tagerrors.NewIOError(tagerrors.CodeHistoryRead, "cannot read history file", err).WithPath(path)
	}
	return strings.Contains(string(data), segment), nil
}

// promptSegment renders the part of the entry template between the
// placeholders around {prompt}, with prompt filled in.
func (r *Recorder) promptSegment(prompt string) (string, bool) {
	const (
		cut  = "\x00"
		mark = "\x01"
	)
	filled := placeholder.Fill(r.Template, map[string]string{
		"prompt":    mark,
		"result":    cut,
		"timestamp": cut,
	})
	for _, part := range strings.Split(filled, cut) {
		if strings.Contains(part, mark) {
			return strings.ReplaceAll(part, mark, prompt), true
		}
	}
	return "", false
}

// IsHistoryFile reports whether path is the history file of some document
// under the file template, i.e. a file the watcher must not process.
func (r *Recorder) IsHistoryFile(path string) bool {
	prefix, suffix := splitFileTemplate(r.File)
	base := filepath.Base(path)
	if len(base) <= len(prefix)+len(suffix) {
		return false
	}
	return base[:len(prefix)] == prefix && base[len(base)-len(suffix):] == suffix
}

// splitFileTemplate returns the literal text around the {filename}
// placeholder, limited to the final path element.
func splitFileTemplate(file string) (string, string) {
	const marker = "\x00"
	filled := placeholder.Fill(file, map[string]string{"filename": marker})
	i := strings.IndexByte(filled, marker[0])
	if i < 0 {
		return filepath.Base(filled), ""
	}
	prefix := filled[:i]
	if sep := strings.LastIndexAny(prefix, `/\`); sep >= 0 {
		prefix = prefix[sep+1:]
	}
	return prefix, filled[i+1:]
}
