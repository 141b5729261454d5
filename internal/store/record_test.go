package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRecordStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "records.sqlite")
	s, err := NewSQLiteStore(t.Context(), dbPath, "images")
	require.NoError(t, err, "NewSQLiteStore error")

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(id, owner, date string, tags ...string) Record {
	rec := Record{
		ImageID:     id,
		UserID:      owner,
		Title:       "title " + id,
		Description: "description " + id,
		Tags:        []string{},
		UploadDate:  date,
		ContentType: "image/jpeg",
		Size:        42,
	}
	if len(tags) > 0 {
		rec.Tags = tags
		rec.PrimaryTag = tags[0]
	}
	return rec
}

func TestRecordPutGetRoundtrip(t *testing.T) {
	s := newTestRecordStore(t)

	want := testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z", "sunset", "nature")
	require.NoError(t, s.Put(t.Context(), want), "Put error")

	got, err := s.Get(t.Context(), "img-1")
	require.NoError(t, err, "Get error")
	require.Equal(t, want, got, "record mismatch after round-trip")
}

func TestRecordPutIsUpsert(t *testing.T) {
	s := newTestRecordStore(t)

	rec := testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z")
	require.NoError(t, s.Put(t.Context(), rec))

	rec.Title = "replaced"
	rec.Tags = []string{"new"}
	rec.PrimaryTag = "new"
	require.NoError(t, s.Put(t.Context(), rec), "second Put should upsert")

	got, err := s.Get(t.Context(), "img-1")
	require.NoError(t, err)
	require.Equal(t, "replaced", got.Title)
	require.Equal(t, []string{"new"}, got.Tags)
}

func TestRecordGetMissing(t *testing.T) {
	s := newTestRecordStore(t)

	_, err := s.Get(t.Context(), "no-such-id")
	require.Error(t, err, "expected error for missing record")
	require.True(t, IsNotFound(err), "missing record should classify as not found, got %v", KindOf(err))
}

func TestRecordDeleteIdempotent(t *testing.T) {
	s := newTestRecordStore(t)

	// Deleting an id that was never written is not an error.
	require.NoError(t, s.Delete(t.Context(), "no-such-id"))

	rec := testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z")
	require.NoError(t, s.Put(t.Context(), rec))
	require.NoError(t, s.Delete(t.Context(), "img-1"))

	_, err := s.Get(t.Context(), "img-1")
	require.True(t, IsNotFound(err), "record should be gone after delete")

	require.NoError(t, s.Delete(t.Context(), "img-1"), "repeat delete should still succeed")
}

func TestRecordQueryUnfiltered(t *testing.T) {
	s := newTestRecordStore(t)

	for i := range 5 {
		rec := testRecord(fmt.Sprintf("img-%d", i), "u1", fmt.Sprintf("2024-05-0%dT10:00:00.000000Z", i+1))
		require.NoError(t, s.Put(t.Context(), rec))
	}

	records, err := s.Query(t.Context(), Filter{})
	require.NoError(t, err, "Query error")
	require.Len(t, records, 5, "unfiltered query should return every record")
}

func TestRecordQueryByOwner(t *testing.T) {
	s := newTestRecordStore(t)

	require.NoError(t, s.Put(t.Context(), testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z")))
	require.NoError(t, s.Put(t.Context(), testRecord("img-2", "u2", "2024-05-02T10:00:00.000000Z")))
	require.NoError(t, s.Put(t.Context(), testRecord("img-3", "u1", "2024-05-03T10:00:00.000000Z")))

	records, err := s.Query(t.Context(), Filter{Owner: "u1"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	require.Equal(t, "img-3", records[0].ImageID)
	require.Equal(t, "img-1", records[1].ImageID)
}

func TestRecordQueryByTag(t *testing.T) {
	s := newTestRecordStore(t)

	require.NoError(t, s.Put(t.Context(), testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z", "a", "b")))
	require.NoError(t, s.Put(t.Context(), testRecord("img-2", "u1", "2024-05-02T10:00:00.000000Z", "b")))
	require.NoError(t, s.Put(t.Context(), testRecord("img-3", "u2", "2024-05-03T10:00:00.000000Z", "a")))

	records, err := s.Query(t.Context(), Filter{Tag: "a"})
	require.NoError(t, err)
	require.Len(t, records, 2, "only the first tag is indexed")
	require.Equal(t, "img-3", records[0].ImageID)
	require.Equal(t, "img-1", records[1].ImageID)

	// img-1 carries "b" as a secondary tag, but only its primary tag is
	// queryable.
	records, err = s.Query(t.Context(), Filter{Tag: "b"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "img-2", records[0].ImageID)
}

func TestRecordQueryOwnerWinsOverTag(t *testing.T) {
	s := newTestRecordStore(t)

	require.NoError(t, s.Put(t.Context(), testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z", "a")))
	require.NoError(t, s.Put(t.Context(), testRecord("img-2", "u2", "2024-05-02T10:00:00.000000Z", "a")))

	records, err := s.Query(t.Context(), Filter{Owner: "u1", Tag: "a"})
	require.NoError(t, err)
	require.Len(t, records, 1, "owner filter should take precedence")
	require.Equal(t, "img-1", records[0].ImageID)
}

func TestRecordEmptyTagsRoundtrip(t *testing.T) {
	s := newTestRecordStore(t)

	rec := testRecord("img-1", "u1", "2024-05-01T10:00:00.000000Z")
	require.NoError(t, s.Put(t.Context(), rec))

	got, err := s.Get(t.Context(), "img-1")
	require.NoError(t, err)
	require.NotNil(t, got.Tags, "tags should scan as an empty slice, not nil")
	require.Empty(t, got.Tags)
	require.Empty(t, got.PrimaryTag)
}
