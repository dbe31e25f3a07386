package mediastore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func saveTestFile(t *testing.T, store *DiskStore, ownerID int, name, content string) *MediaFile {
	t.Helper()
	file, err := store.Save(context.Background(), SaveParams{
		OwnerID:     ownerID,
		Kind:        KindPhoto,
		Name:        name,
		ContentType: "image/jpeg",
		IsPrivate:   true,
		Content:     strings.NewReader(content),
	})
	require.NoError(t, err)
	return file
}

func TestDiskStore_SaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved := saveTestFile(t, store, 1, "front-2024-03.jpg", "jpeg bytes here")
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, int64(len("jpeg bytes here")), saved.Size)

	reader, file, err := store.Open(ctx, saved.ID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "front-2024-03.jpg", file.Name)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes here", string(content))
}

func TestDiskStore_Get_notFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDiskStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved := saveTestFile(t, store, 1, "side.jpg", "bytes")

	require.NoError(t, store.Delete(ctx, saved.ID))

	_, err := store.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.ErrorIs(t, store.Delete(ctx, saved.ID), ErrFileNotFound)
}

func TestDiskStore_ListByOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveTestFile(t, store, 1, "one.jpg", "a")
	saveTestFile(t, store, 1, "two.jpg", "b")
	saveTestFile(t, store, 2, "other.jpg", "c")

	_, err := store.Save(ctx, SaveParams{
		OwnerID:     1,
		Kind:        KindDocument,
		Name:        "plan.pdf",
		ContentType: "application/pdf",
		Content:     strings.NewReader("pdf"),
	})
	require.NoError(t, err)

	all, err := store.ListByOwner(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	photos, err := store.ListByOwner(ctx, 1, KindPhoto)
	require.NoError(t, err)
	assert.Len(t, photos, 2)

	docs, err := store.ListByOwner(ctx, 1, KindDocument)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "plan.pdf", docs[0].Name)
}

func TestDiskStore_IndexSurvivesRestart(t *testing.T) {
	rootPath := t.TempDir()
	ctx := context.Background()

	store, err := NewDiskStore(rootPath)
	require.NoError(t, err)
	saved := saveTestFile(t, store, 1, "front.jpg", "bytes")

	reopened, err := NewDiskStore(rootPath)
	require.NoError(t, err)

	reader, file, err := reopened.Open(ctx, saved.ID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, saved.Path, file.Path)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(content))
}

func TestDiskStore_RejectsBadNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "   "} {
		_, err := store.Save(ctx, SaveParams{
			OwnerID: 1,
			Kind:    KindPhoto,
			Name:    name,
			Content: strings.NewReader("x"),
		})
		assert.Error(t, err, "name %q", name)
	}

	// path components get stripped down to the base name
	saved, err := store.Save(ctx, SaveParams{
		OwnerID: 1,
		Kind:    KindPhoto,
		Name:    "../../etc/passwd",
		Content: strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "passwd", saved.Name)
}
