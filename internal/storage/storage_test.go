package storage

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/notebridge/internal/types"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "notebridge.db")

	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file not found")

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}

func TestOpenDBTwiceIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "again.db")
	db, err := OpenDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, PutJSON(context.Background(), db, "k", "v"))
	db.Close()

	db, err = OpenDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var v string
	ok, err := GetJSON(context.Background(), db, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestEncodeValue(t *testing.T) {
	small := []byte(`{"summary":"short"}`)
	enc, err := encodeValue(small)
	require.NoError(t, err)
	assert.Equal(t, small, enc, "small values stay raw")

	large := []byte(`{"summary":"` + strings.Repeat("lorem ipsum dolor sit amet ", 200) + `"}`)
	enc, err = encodeValue(large)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(enc, lz4Magic))
	assert.Less(t, len(enc), len(large))

	dec, err := decodeValue(enc)
	require.NoError(t, err)
	assert.Equal(t, large, dec)
}

func TestDecodeValueCorrupt(t *testing.T) {
	bad := append(append([]byte{}, lz4Magic...), 0xff, 0xff, 0x00, 0x00, 0xf0, 0x01)
	_, err := decodeValue(bad)
	assert.Error(t, err)
}

func TestSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := &Store{DB: testDB(t)}

	got, err := s.LoadSummary(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	p := types.PersistedSummary{
		Summary:       strings.Repeat("# Title\n\nA long summary body. ", 100),
		URL:           "https://x",
		Title:         "T",
		IsExtractOnly: true,
		Timestamp:     time.Now().UnixMilli(),
	}
	require.NoError(t, s.SaveSummary(ctx, p))

	got, err = s.LoadSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	require.NoError(t, s.DeleteSummary(ctx))
	got, err = s.LoadSummary(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is fine.
	require.NoError(t, s.DeleteSummary(ctx))
}

func TestDraftRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := &Store{DB: testDB(t)}

	d, err := s.LoadDraft(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.Content)

	want := types.QuickNoteDraft{
		Content:     "idea",
		Attachments: []types.Attachment{{Name: "a.png", Path: "/f/a.png", Size: 1, Type: "image/png"}},
	}
	require.NoError(t, s.SaveDraft(ctx, want))
	want.Content = "idea, revised"
	require.NoError(t, s.SaveDraft(ctx, want))

	d, err = s.LoadDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, d)

	require.NoError(t, s.DeleteDraft(ctx))
	d, err = s.LoadDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.QuickNoteDraft{}, d)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, InsertNotification(ctx, db, NotificationRecord{ID: "a", Title: "first", Message: "m1", CreatedAt: base}))
	require.NoError(t, InsertNotification(ctx, db, NotificationRecord{ID: "b", Title: "second", Message: "m2", CreatedAt: base.Add(time.Minute)}))

	all, err := ListNotifications(ctx, db, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Title)
	assert.Nil(t, all[0].ReadAt)

	limited, err := ListNotifications(ctx, db, false, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := MarkNotificationsRead(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err := ListNotifications(ctx, db, true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err = ListNotifications(ctx, db, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[1].ReadAt)

	// Duplicate IDs are rejected.
	assert.Error(t, InsertNotification(ctx, db, NotificationRecord{ID: "a", Title: "dup"}))
}
