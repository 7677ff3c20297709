package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionFor(t *testing.T) {
	ext, err := ExtensionFor("image/png")
	require.NoError(t, err)
	assert.Equal(t, ".png", ext)

	ext, err = ExtensionFor("IMAGE/JPEG; charset=binary")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	_, err = ExtensionFor("image/gif")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDiskStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)
	ctx := context.Background()

	url, err := store.Save(ctx, "image/webp", strings.NewReader("webp-bytes"), 10)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".webp"))

	path := filepath.Join(dir, filepath.Base(url))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "webp-bytes", string(data))

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, url))
}

func TestDiskStoreRejectsUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir)

	_, err := store.Save(context.Background(), "application/pdf", strings.NewReader("%PDF"), 4)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewMinioStoreBuildsPublicURL(t *testing.T) {
	store, err := NewMinioStore(&config.Config{
		MinioEndpoint:  "localhost:9000",
		MinioAccessKey: "minio",
		MinioSecretKey: "minio123",
		MinioBucket:    "food-images",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/food-images/", store.baseURL)
}
