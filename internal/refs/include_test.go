package refs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
)

func TestExpandIncludes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("Alpha\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("<b>Beta</b>"), 0o644))

	t.Run("present file substituted verbatim", func(t *testing.T) {
		out, err := ExpandIncludes("before <include>a.md</include> after", dir)
		require.NoError(t, err)
		assert.Equal(t, "before Alpha\n after", out)
	})

	t.Run("multiple includes resolved independently", func(t *testing.T) {
		out, err := ExpandIncludes("<include>a.md</include>|<include> sub/b.md </include>|<include>a.md</include>", dir)
		require.NoError(t, err)
		assert.Equal(t, "Alpha\n|<b>Beta</b>|Alpha\n", out)
	})

	t.Run("no include is a no-op", func(t *testing.T) {
		out, err := ExpandIncludes("nothing here", dir)
		require.NoError(t, err)
		assert.Equal(t, "nothing here", out)
	})

	t.Run("missing include aborts", func(t *testing.T) {
		out, err := ExpandIncludes("<include>a.md</include><include>missing.md</include>", dir)
		require.Error(t, err)
		assert.Empty(t, out)
		assert.True(t, tagerrors.IsIncludeError(err))
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), tagerrors.CodeIncludeMissing)
	})

	t.Run("directory is a read error", func(t *testing.T) {
		_, err := ExpandIncludes("<include>sub</include>", dir)
		require.Error(t, err)
		assert.True(t, tagerrors.IsIncludeError(err))
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := ExpandIncludes("<include>  </include>", dir)
		require.Error(t, err)
		assert.True(t, tagerrors.IsIncludeError(err))
	})
}
