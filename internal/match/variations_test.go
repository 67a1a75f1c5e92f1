package match

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVariations(t *testing.T) {
	t.Parallel()

	v := DefaultVariations()
	require.Greater(t, v.Size(), 100)

	t.Run("canonical to alias", func(t *testing.T) {
		t.Parallel()
		assert.True(t, v.Equivalent("william", "bill"))
		assert.True(t, v.Equivalent("jonathan", "john"))
		assert.True(t, v.Equivalent("elizabeth", "liz"))
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		assert.True(t, v.Equivalent("bill", "william"))
		assert.True(t, v.Equivalent("john", "jonathan"))
	})

	t.Run("alias to alias within a group", func(t *testing.T) {
		t.Parallel()
		assert.True(t, v.Equivalent("bill", "will"))
		assert.True(t, v.Equivalent("rick", "dick"))
	})

	t.Run("no link across groups", func(t *testing.T) {
		t.Parallel()
		// "rick" sits in both richard and eric, but "dick" is richard-only.
		assert.False(t, v.Equivalent("dick", "eric"))
		assert.False(t, v.Equivalent("william", "robert"))
	})

	t.Run("identity for unknown names", func(t *testing.T) {
		t.Parallel()
		assert.True(t, v.Equivalent("zelda", "zelda"))
		assert.False(t, v.Equivalent("zelda", "link"))
		assert.False(t, v.Equivalent("", ""))
	})
}

func TestLoadVariations(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "variations.yaml")
		data := "variations:\n  theodore: [ted, teddy]\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		v, err := LoadVariations(path)
		require.NoError(t, err)
		assert.True(t, v.Equivalent("theodore", "teddy"))
		assert.True(t, v.Equivalent("ted", "teddy"))
		assert.False(t, v.Equivalent("theodore", "william"))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadVariations(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("variations: [not, a, map"), 0o644))

		_, err := LoadVariations(path)
		assert.Error(t, err)
	})
}
