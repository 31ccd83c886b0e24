package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagwritingErrorError(t *testing.T) {
	err := NewIncludeError(CodeIncludeMissing, "/docs/part.md", os.ErrNotExist)

	msg := err.Error()
	assert.Contains(t, msg, "[INCLUDE_MISSING]")
	assert.Contains(t, msg, "/docs/part.md")
	assert.Contains(t, msg, "cannot resolve include")
	assert.Contains(t, msg, os.ErrNotExist.Error())
}

func TestTagwritingErrorUnwrap(t *testing.T) {
	err := NewIncludeError(CodeIncludeMissing, "a.md", os.ErrNotExist)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	wrapped := fmt.Errorf("run failed: %w", err)
	assert.True(t, IsIncludeError(wrapped))
	assert.False(t, IsRecoverable(wrapped))
}

func TestTagwritingErrorIs(t *testing.T) {
	a := NewGenerationError(CodeEmptyResponse, "empty", nil)
	b := NewGenerationError(CodeEmptyResponse, "different message", nil)
	c := NewGenerationError(CodeMissingAPIKey, "empty", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestTypePredicates(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
		typ   ErrorType
	}{
		{"include", NewIncludeError(CodeIncludeRead, "x", nil), IsIncludeError, ErrorTypeInclude},
		{"fetch", NewFetchError(CodeURLTransport, "down", nil), IsFetchError, ErrorTypeFetch},
		{"generation", NewGenerationError(CodeMissingAPIKey, "no key", nil), IsGenerationError, ErrorTypeGeneration},
		{"config", NewConfigError(CodePlaceholder, "bad"), IsConfigError, ErrorTypeConfig},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			assert.Equal(t, tc.typ, GetErrorType(tc.err))
		})
	}

	assert.Equal(t, ErrorTypeInternal, GetErrorType(errors.New("plain")))
	assert.True(t, IsRecoverable(NewFetchError(CodeWikipedia, "x", nil)))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "y"))

	inner := NewIncludeError(CodeIncludeMissing, "part.md", os.ErrNotExist).WithContext("tag", "include")
	outer := WrapIO(inner, CodeDocumentWrite, "save failed")

	require.NotNil(t, outer)
	assert.Equal(t, ErrorTypeIO, outer.Type)
	assert.Equal(t, "part.md", outer.FilePath)
	assert.Equal(t, "include", outer.Context["tag"])
	assert.True(t, errors.Is(outer, os.ErrNotExist))
}

func TestFormatError(t *testing.T) {
	assert.Empty(t, FormatError(nil))
	assert.Equal(t, "boom", FormatError(errors.New("boom")))

	err := NewFetchError(CodeURLTransport, "cannot fetch url", errors.New("refused")).
		WithContext("url", "https://example.com").
		WithContext("attempt", 1)
	assert.Equal(t, "[URL_TRANSPORT] cannot fetch url: refused (attempt=1, url=https://example.com)", FormatError(err))

	wrapped := fmt.Errorf("run: %w", err)
	assert.Equal(t, "run: [URL_TRANSPORT] cannot fetch url: refused (attempt=1, url=https://example.com)", FormatError(wrapped))

	plain := NewIOError(CodeDocumentRead, "cannot read document", nil).WithPath("a.md")
	assert.Equal(t, "[DOCUMENT_READ] a.md cannot read document", FormatError(plain))
}

func TestGetErrorContext(t *testing.T) {
	err := NewConfigError(CodePlaceholder, "unknown placeholder").WithPath("tagwriting.yml")

	ctx := GetErrorContext(err)
	assert.Equal(t, "config", ctx["type"])
	assert.Equal(t, CodePlaceholder, ctx["code"])
	assert.Equal(t, "tagwriting.yml", ctx["file"])

	plain := GetErrorContext(errors.New("boom"))
	assert.Equal(t, "unknown", plain["type"])
}

func TestErrorCollector(t *testing.T) {
	collector := NewErrorCollector()
	assert.False(t, collector.HasErrors())
	assert.NoError(t, collector.Err())

	collector.AddError(nil)
	assert.False(t, collector.HasErrors())

	first := NewConfigError(CodePlaceholder, "prompt is missing {context}")
	collector.AddError(first)
	assert.Equal(t, first, collector.Err())

	collector.AddError(NewConfigError(CodeRewriteRule, "rule 0 has no tag"))
	combined := collector.Err()
	require.Error(t, combined)
	assert.True(t, IsConfigError(combined))
	assert.Contains(t, combined.Error(), "2 errors")
	assert.Len(t, collector.GetAllErrors(), 2)
}

func TestCombineErrorsMixedTypes(t *testing.T) {
	err := CombineErrors(
		NewConfigError(CodeAttrs, "bad attrs"),
		errors.New("plain"),
	)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeInternal, GetErrorType(err))
	assert.NoError(t, CombineErrors(nil, nil))
}
