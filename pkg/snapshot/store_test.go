// ABOUTME: Tests for the snapshot catalog
// ABOUTME: Verifies newest-first listings, grouping and version assignment

package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nainya/mementod/pkg/memento"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(collection, resource string, version int, ts string) *Record {
	return &Record{
		Snapshot: memento.Snapshot{
			CollectionID: collection,
			ResourceID:   resource,
			Version:      version,
			Timestamp:    ts,
		},
		ContentType: "text/html",
		Payload:     []byte("<html>" + ts + "</html>"),
	}
}

func TestPutAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r := record("au1", "http://e.com/", 1, "Fri, 15 Sep 2000 00:00:00 GMT")
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	got, err := s.Get(ctx, "au1", "http://e.com/", 1)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.Timestamp != r.Timestamp {
		t.Errorf("Expected timestamp %q, got %q", r.Timestamp, got.Timestamp)
	}
	if string(got.Payload) != string(r.Payload) {
		t.Errorf("Expected payload %q, got %q", r.Payload, got.Payload)
	}
	if got.ContentType != "text/html" {
		t.Errorf("Expected text/html, got %s", got.ContentType)
	}
	if got.StoredAt.IsZero() {
		t.Error("Expected StoredAt to be set")
	}
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "au1", "http://e.com/", 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestPutAssignsNextVersion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := record("au1", "http://e.com/", 0, "")
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("Failed to put: %v", err)
		}
		if r.Version != i+1 {
			t.Errorf("Expected version %d, got %d", i+1, r.Version)
		}
	}
}

func TestPutRejectsIncompleteRecords(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, record("", "http://e.com/", 1, "")); err == nil {
		t.Error("Expected error for missing collection")
	}
	if err := s.Put(ctx, record("au1", "http://e.com/", -2, "")); err == nil {
		t.Error("Expected error for negative version")
	}
}

func TestVersionsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Insert out of order; a corrupt timestamp must still be listed
	s.Put(ctx, record("au1", "http://e.com/", 2, "Tue, 11 Sep 2001 20:30:00 GMT"))
	s.Put(ctx, record("au1", "http://e.com/", 3, "garbage"))
	s.Put(ctx, record("au1", "http://e.com/", 1, "Fri, 15 Sep 2000 00:00:00 GMT"))
	s.Put(ctx, record("au1", "http://other.com/", 1, ""))

	snaps, err := s.Versions(ctx, "au1", "http://e.com/")
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("Expected 3 versions, got %d", len(snaps))
	}
	for i, want := range []int{3, 2, 1} {
		if snaps[i].Version != want {
			t.Errorf("Index %d: expected version %d, got %d", i, want, snaps[i].Version)
		}
	}

	if _, err := s.Versions(ctx, "au2", "http://e.com/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestByResourceGroupsCollections(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	s.Put(ctx, record("au-b", "http://e.com/", 1, "Sun, 01 Dec 2002 00:00:00 GMT"))
	s.Put(ctx, record("au-a", "http://e.com/", 1, "Wed, 01 Jan 2003 00:00:00 GMT"))
	s.Put(ctx, record("au-b", "http://e.com/", 2, "Sat, 01 Feb 2003 00:00:00 GMT"))
	s.Put(ctx, record("au-a", "http://e.com/", 2, "Sat, 01 Mar 2003 00:00:00 GMT"))

	groups, err := s.ByResource(ctx, "http://e.com/")
	if err != nil {
		t.Fatalf("Failed to list resource: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("Expected 2 collections, got %d", len(groups))
	}
	if groups[0][0].CollectionID != "au-a" || groups[1][0].CollectionID != "au-b" {
		t.Errorf("Unexpected collection order: %s, %s", groups[0][0].CollectionID, groups[1][0].CollectionID)
	}
	for _, g := range groups {
		if len(g) != 2 || g[0].Version != 2 || g[1].Version != 1 {
			t.Errorf("Expected versions [2 1] in %s, got %+v", g[0].CollectionID, g)
		}
	}

	if _, err := s.ByResource(ctx, "http://missing/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLatest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	s.Put(ctx, record("au1", "http://e.com/", 1, "a"))
	s.Put(ctx, record("au1", "http://e.com/", 2, "b"))

	r, err := s.Latest(ctx, "au1", "http://e.com/")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if r.Version != 2 {
		t.Errorf("Expected version 2, got %d", r.Version)
	}

	if _, err := s.Latest(ctx, "", "http://e.com/"); err != nil {
		t.Errorf("Expected a capture from any collection, got %v", err)
	}
	if _, err := s.Latest(ctx, "", "http://missing/"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListingsAndStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	s.Put(ctx, record("au1", "http://e.com/a", 1, ""))
	s.Put(ctx, record("au1", "http://e.com/b", 1, ""))
	s.Put(ctx, record("au2", "http://e.com/a", 1, ""))

	resources, err := s.Resources(ctx, "au1")
	if err != nil {
		t.Fatalf("Failed to list resources: %v", err)
	}
	if len(resources) != 2 {
		t.Errorf("Expected 2 resources, got %v", resources)
	}

	collections, err := s.Collections(ctx)
	if err != nil {
		t.Fatalf("Failed to list collections: %v", err)
	}
	if len(collections) != 2 || collections[0] != "au1" {
		t.Errorf("Unexpected collections %v", collections)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if st.Snapshots != 3 || st.Resources != 2 || st.Collections != 2 {
		t.Errorf("Unexpected stats %+v", st)
	}
	if st.PayloadBytes != int64(3*len("<html></html>")) {
		t.Errorf("Unexpected payload bytes %d", st.PayloadBytes)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if err := s.Put(ctx, record("au1", "http://e.com/", 1, "x")); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(ctx, "au1", "http://e.com/", 1); err != nil {
		t.Errorf("Expected capture after reopen, got %v", err)
	}
}
