package fd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_CloseOnce(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)

	h := Own(f)
	assert.True(t, h.Valid())
	assert.NoError(t, h.Close())
	assert.False(t, h.Valid())

	// Closing again must not reach the already closed file.
	assert.NoError(t, h.Close())
	assert.Nil(t, h.File())
}

func TestHandle_Zero(t *testing.T) {
	var h Handle
	assert.False(t, h.Valid())
	assert.NoError(t, h.Close())
	assert.Equal(t, os.Stdin, h.FileOr(os.Stdin))
	assert.Equal(t, "fd(unset)", h.String())
}

func TestHandle_Replace(t *testing.T) {
	dir := t.TempDir()
	a, err := os.Create(filepath.Join(dir, "a"))
	require.NoError(t, err)
	b, err := os.Create(filepath.Join(dir, "b"))
	require.NoError(t, err)

	h := Own(a)
	require.NoError(t, h.Replace(b))
	assert.Equal(t, b, h.File())

	// The replaced file was closed.
	_, err = a.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)

	require.NoError(t, h.Close())
}

func TestHandle_Release(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)

	h := Own(f)
	released := h.Release()
	assert.Equal(t, f, released)
	assert.False(t, h.Valid())
	assert.NoError(t, h.Close())

	// Ownership moved out, the file is still open.
	_, err = released.Write([]byte("still open"))
	assert.NoError(t, err)
	require.NoError(t, released.Close())
}

func TestPipe(t *testing.T) {
	r, w, err := Pipe()
	require.NoError(t, err)
	defer r.Close()

	_, err = w.File().Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	buf := make([]byte, 8)
	n, err := r.File().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))
}
