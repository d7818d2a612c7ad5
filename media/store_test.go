package media

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func newTestStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{
		AssetTypeUpload:    "uploads",
		AssetTypeThumbnail: "thumbnails",
	}, nil)
	require.NoError(t, err)
	return store
}

func TestDatePartition(t *testing.T) {
	assert.Equal(t, "2024/03/07", DatePartition(time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)))
}

func TestLocalStorage_SaveComputesSizeAndChecksum(t *testing.T) {
	store := newTestStore(t)
	payload := "not really a jpeg"

	saved, err := store.Save(AssetTypeUpload, "2024/03/07", "cat.jpg", strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, "uploads/2024/03/07/cat.jpg", saved.RelativePath)
	assert.Equal(t, int64(len(payload)), saved.Size)
	sum := blake2b.Sum256([]byte(payload))
	assert.Equal(t, hex.EncodeToString(sum[:]), saved.Checksum)

	rc, info, err := store.Get(saved.RelativePath)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
	assert.Equal(t, int64(len(payload)), info.Size())
}

func TestLocalStorage_SaveCollisionAddsSuffix(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save(AssetTypeUpload, "2024/03/07", "cat.jpg", strings.NewReader("one"))
	require.NoError(t, err)
	second, err := store.Save(AssetTypeUpload, "2024/03/07", "cat.jpg", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first.RelativePath, second.RelativePath)
	assert.Regexp(t, `^uploads/2024/03/07/cat_[0-9a-f]{8}\.jpg$`, second.RelativePath)

	full, err := store.GetFullPath(first.RelativePath)
	require.NoError(t, err)
	body, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "one", string(body), "original file must not be overwritten")
}

func TestLocalStorage_SaveStripsClientDirectories(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(AssetTypeUpload, "", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/passwd", saved.RelativePath)

	_, err = store.Save(AssetTypeUpload, "../..", "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = store.Save(AssetTypeUpload, "", "..", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalStorage_GetFullPathRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFullPath("../outside.jpg")
	assert.ErrorIs(t, err, ErrInvalidPath)

	full, err := store.GetFullPath("uploads/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BasePath(), "uploads", "a.jpg"), full)
}

func TestLocalStorage_Delete(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(AssetTypeUpload, "", "gone.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(saved.RelativePath))

	_, _, err = store.Get(saved.RelativePath)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, store.Delete(saved.RelativePath), "deleting a missing file is not an error")
}

func TestLocalStorage_UnknownAssetType(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(AssetType("archive"), "", "a.zip", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "/media/uploads/2024/03/07/cat.jpg", URL("/media/", "uploads/2024/03/07/cat.jpg"))
	assert.Equal(t, "/media/a.jpg", URL("/media", "/a.jpg"))
}
