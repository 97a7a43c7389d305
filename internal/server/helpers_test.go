package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/nainya/mementod/internal/logger"
	"github.com/nainya/mementod/internal/metrics"
	"github.com/nainya/mementod/pkg/memento"
	"github.com/nainya/mementod/pkg/snapshot"
)

const (
	testURL   = "http://www.example.com/index.html"
	mergedURL = "http://e.org/"
)

// Five captures of testURL in one collection, mergedURL held by two
// collections with interleaved capture dates, and resources whose stored
// timestamps are partly or entirely unparsable
var fixtures = []struct {
	collection string
	resource   string
	version    int
	timestamp  string
}{
	{"au1", testURL, 1, "Fri, 15 Sep 2000 00:00:00 GMT"},
	{"au1", testURL, 2, "Tue, 11 Sep 2001 20:30:00 GMT"},
	{"au1", testURL, 3, "Tue, 11 Sep 2001 20:36:00 GMT"},
	{"au1", testURL, 4, "Tue, 11 Sep 2001 20:47:00 GMT"},
	{"au1", testURL, 5, "Tue, 08 Jul 2008 12:00:00 GMT"},

	{"au-a", mergedURL, 1, "Wed, 01 Jan 2003 00:00:00 GMT"},
	{"au-a", mergedURL, 2, "Sat, 01 Mar 2003 00:00:00 GMT"},
	{"au-b", mergedURL, 1, "Sun, 01 Dec 2002 00:00:00 GMT"},
	{"au-b", mergedURL, 2, "Sat, 01 Feb 2003 00:00:00 GMT"},
	{"au-b", mergedURL, 3, "Tue, 01 Apr 2003 00:00:00 GMT"},

	{"au1", "http://undated/", 1, ""},
	{"au1", "http://undated/", 2, "not a date"},

	{"au1", "http://mixed/", 1, "Fri, 15 Sep 2000 00:00:00 GMT"},
	{"au1", "http://mixed/", 2, "garbage"},
}

func payload(collection string, version int) []byte {
	return []byte("<html>" + collection + " v" + string(rune('0'+version)) + "</html>")
}

func setupTestService(t *testing.T) (*Service, *metrics.Metrics) {
	t.Helper()
	ctx := context.Background()

	store, err := snapshot.Open(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	catalog, err := snapshot.NewCached(store, 16)
	require.NoError(t, err)

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, f := range fixtures {
		err := catalog.Put(ctx, &snapshot.Record{
			Snapshot: memento.Snapshot{
				CollectionID: f.collection,
				ResourceID:   f.resource,
				Version:      f.version,
				Timestamp:    f.timestamp,
			},
			ContentType: "text/html",
			Payload:     payload(f.collection, f.version),
			StoredAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewService(catalog, m, logger.Nop(), "/"), m
}
