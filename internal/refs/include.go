package refs

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/validation"
)

var includeTagRe = regexp.MustCompile(`(?s)<include>(.*?)</include>`)

// ExpandIncludes replaces every `<include>path</include>` with the raw
// contents of the file, resolved relative to baseDir. Each occurrence is
// read independently. The first file that cannot be read aborts the whole
// expansion with an include error; the returned text is then empty.
func ExpandIncludes(text, baseDir string) (string, error) {
	matches := includeTagRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		raw := text[m[2]:m[3]]
		content, err := readInclude(baseDir, raw)
		if err != nil {
			return "", err
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(content)
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String(), nil
}

func readInclude(baseDir, raw string) (string, error) {
	if err := validation.ValidateIncludePath(raw); err != nil {
		return "", tagerrors.NewIncludeError(tagerrors.CodeIncludeRead, strings.TrimSpace(raw), err)
	}

	path := validation.ResolveIncludePath(baseDir, raw)
	data, err := os.ReadFile(path)
	if err != nil {
		code := tagerrors.CodeIncludeRead
		if errors.Is(err, fs.ErrNotExist) {
			code = tagerrors.CodeIncludeMissing
		}
		return "", tagerrors.NewIncludeError(code, path, err)
	}

	return string(data), nil
}
