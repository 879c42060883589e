package transfer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "flickshare/internal/errors"
)

func TestGetFileInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holiday.jpg")
	require.NoError(t, os.WriteFile(path, make([]byte, 12345), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)

	assert.Equal(t, "Success!\nFile Name: holiday.jpg\nSize: 12345 bytes", GetFileInfo(f, "holiday.jpg"))

	_, err = f.Stat()
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestGetFileInfoClosedHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	msg := GetFileInfo(f, "gone.txt")
	assert.Contains(t, msg, "Metadata Error: ")
}

func TestGetFileInfoDirectory(t *testing.T) {
	dir, err := os.Open(t.TempDir())
	require.NoError(t, err)

	msg := GetFileInfo(dir, "photos")
	assert.Equal(t, "Metadata Error: photos is a directory", msg)
}

type badStat struct{}

func (badStat) Stat() (fs.FileInfo, error) { return nil, errors.New("bad file descriptor") }

func TestInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# notes\n"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	info, err := Info(f, "")
	require.NoError(t, err)
	assert.Equal(t, FileInfo{Filename: "notes.md", Size: 8}, info)

	info, err = Info(f, "/storage/emulated/0/Download/renamed.md")
	require.NoError(t, err)
	assert.Equal(t, "renamed.md", info.Filename)

	_, err = Info(badStat{}, "x")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMetadata))
}
