package dirbrowser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go2tv.app/beamdeck/internal/domain"
)

func mkTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Movies", "Old"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Movies", "Anime"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Movies", "movie.mp4"), []byte("12345"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Movies", "Zulu.mkv"), []byte("1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Movies", "alpha.mp4"), []byte("12"), 0o600))
	return root
}

func TestList_DirectoriesFirstThenByName(t *testing.T) {
	b := New(mkTree(t))

	files, err := b.List([]string{"Movies"})
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Anime", "Old", "Zulu.mkv", "alpha.mp4", "movie.mp4"}, names)

	assert.Equal(t, domain.KindDirectory, files[0].Kind)
	assert.Equal(t, domain.KindFile, files[4].Kind)
	assert.Equal(t, int64(5), files[4].Size)
	assert.NotZero(t, files[4].ModifiedTime)
}

func TestList_DropsEntriesThatFailStat(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := mkTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "Movies", "broken.mp4")))

	files, err := New(root).List([]string{"Movies"})
	require.NoError(t, err)
	for _, f := range files {
		assert.NotEqual(t, "broken.mp4", f.Name)
	}
	assert.Len(t, files, 5)
}

func TestList_RootAndMissingDirectory(t *testing.T) {
	b := New(mkTree(t))

	files, err := b.List(nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Movies", files[0].Name)

	_, err = b.List([]string{"Nope"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeDirectory, domain.CodeOf(err))
}

func TestPath_RejectsEscapingTheRoot(t *testing.T) {
	b := New(mkTree(t))

	_, err := b.List([]string{"..", ".."})
	require.Error(t, err)
	assert.Equal(t, domain.CodeDirectory, domain.CodeOf(err))

	p, err := b.Path([]string{"Movies", "..", "Movies"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b.Root(), "Movies"), p)
}

func TestResolve(t *testing.T) {
	root := mkTree(t)
	b := New(root)

	got, err := b.Resolve([]string{"Movies"}, "movie.mp4")
	require.NoError(t, err)
	want, _ := filepath.Abs(filepath.Join(root, "Movies", "movie.mp4"))
	assert.Equal(t, want, got)

	for _, name := range []string{"", "..", "../Movies/movie.mp4", "missing.mp4", "Old"} {
		_, err := b.Resolve([]string{"Movies"}, name)
		require.Error(t, err, name)
		assert.Equal(t, domain.CodeValidation, domain.CodeOf(err), name)
	}
}
