package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pet-photos")
	s := NewStore(dir)

	ref, err := s.Save(context.Background(), "../../1700000000.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, filepath.ToSlash(filepath.Join(dir, "1700000000.png")), ref)

	b, err := os.ReadFile(filepath.FromSlash(ref))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(b))

	require.NoError(t, s.Delete(context.Background(), ref))
	_, err = os.Stat(filepath.FromSlash(ref))
	require.True(t, os.IsNotExist(err))

	// idempotente
	require.NoError(t, s.Delete(context.Background(), ref))
}

func TestStore_DeleteOutsideRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "pet-photos"))
	require.ErrorIs(t, s.Delete(context.Background(), "/etc/passwd"), ErrOutsideRoot)
}
