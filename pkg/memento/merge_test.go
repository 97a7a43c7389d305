package memento

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collection(id string, stamps ...string) []Snapshot {
	out := make([]Snapshot, len(stamps))
	for i, ts := range stamps {
		out[i] = Snapshot{CollectionID: id, ResourceID: testURL, Version: len(stamps) - i, Timestamp: ts}
	}
	return out
}

func twoCollections() [][]Snapshot {
	return [][]Snapshot{
		collection("au-a",
			"Sat, 01 Mar 2003 00:00:00 GMT",
			"Wed, 01 Jan 2003 00:00:00 GMT",
		),
		collection("au-b",
			"Tue, 01 Apr 2003 00:00:00 GMT",
			"Sat, 01 Feb 2003 00:00:00 GMT",
			"Sun, 01 Dec 2002 00:00:00 GMT",
		),
	}
}

func TestMergeBookends(t *testing.T) {
	mg, err := Merge(twoCollections(), nil)
	require.NoError(t, err)

	assert.Equal(t, "au-b", mg.First().CollectionID)
	assert.Equal(t, 1, mg.First().Version)
	assert.Equal(t, "au-b", mg.Last().CollectionID)
	assert.Equal(t, 3, mg.Last().Version)
	assert.Nil(t, mg.Selected())
	assert.Nil(t, mg.Next())
	assert.Nil(t, mg.Prev())
	assert.Len(t, mg.Stamped(), 5)
}

func TestMergeSelectsAcrossCollections(t *testing.T) {
	target := time.Date(2003, 2, 15, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(twoCollections(), &target)
	require.NoError(t, err)

	require.NotNil(t, mg.Selected())
	assert.Equal(t, Prior, mg.Outcome())
	assert.Equal(t, "au-b", mg.Selected().CollectionID)
	assert.Equal(t, time.February, mg.Selected().Time.Month())

	require.NotNil(t, mg.Next())
	assert.Equal(t, "au-a", mg.Next().CollectionID)
	assert.Equal(t, time.March, mg.Next().Time.Month())

	require.NotNil(t, mg.Prev())
	assert.Equal(t, "au-a", mg.Prev().CollectionID)
	assert.Equal(t, time.January, mg.Prev().Time.Month())
}

func TestMergeTargetBeforeAll(t *testing.T) {
	target := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(twoCollections(), &target)
	require.NoError(t, err)

	assert.True(t, mg.Selected().SameResourceAndVersion(mg.First()))
	assert.Equal(t, BeforeAll, mg.Outcome())
	assert.Nil(t, mg.Prev())
	require.NotNil(t, mg.Next())
	assert.Equal(t, time.January, mg.Next().Time.Month())
}

func TestMergeTargetAfterAll(t *testing.T) {
	target := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(twoCollections(), &target)
	require.NoError(t, err)

	assert.True(t, mg.Selected().SameResourceAndVersion(mg.Last()))
	assert.Equal(t, AfterAll, mg.Outcome())
	assert.Nil(t, mg.Next())
	require.NotNil(t, mg.Prev())
	assert.Equal(t, time.March, mg.Prev().Time.Month())
}

func TestMergeExactOutcome(t *testing.T) {
	target := time.Date(2003, 3, 1, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(twoCollections(), &target)
	require.NoError(t, err)

	assert.Equal(t, Exact, mg.Outcome())
	assert.Equal(t, "au-a", mg.Selected().CollectionID)
	assert.Equal(t, time.April, mg.Next().Time.Month())
	assert.Equal(t, time.February, mg.Prev().Time.Month())
}

func TestMergeCorruptOldestKeepsNext(t *testing.T) {
	groups := [][]Snapshot{collection("au-a",
		"Fri, 01 Jan 2010 00:00:00 GMT",
		"Sat, 01 Jan 2000 00:00:00 GMT",
		"garbage",
	)}
	target := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(groups, &target)
	require.NoError(t, err)

	assert.Equal(t, BeforeAll, mg.Outcome())
	require.NotNil(t, mg.Selected())
	assert.Equal(t, 2, mg.Selected().Version)
	assert.Nil(t, mg.Prev())
	require.NotNil(t, mg.Next())
	assert.Equal(t, 3, mg.Next().Version)
}

func TestMergeCorruptOldestAcrossCollections(t *testing.T) {
	groups := append(twoCollections(), collection("au-c",
		"Thu, 01 May 2003 00:00:00 GMT",
		"Tue, 01 Oct 2002 00:00:00 GMT",
		"",
	))
	target := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(groups, &target)
	require.NoError(t, err)

	assert.Equal(t, "au-c", mg.Selected().CollectionID)
	assert.Equal(t, time.October, mg.Selected().Time.Month())
	require.NotNil(t, mg.Next())
	assert.Equal(t, "au-b", mg.Next().CollectionID)
	assert.Equal(t, time.December, mg.Next().Time.Month())
}

func TestMergeSkipsUnstampedCollections(t *testing.T) {
	groups := append(twoCollections(), collection("au-c", "", "bogus"))
	target := time.Date(2003, 2, 15, 0, 0, 0, 0, time.UTC)

	mg, err := Merge(groups, &target)
	require.NoError(t, err)
	assert.Equal(t, "au-b", mg.Selected().CollectionID)
}

func TestMergeErrors(t *testing.T) {
	_, err := Merge(nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = Merge([][]Snapshot{collection("au-a", "x"), {}}, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = Merge([][]Snapshot{collection("au-a", "", "")}, nil)
	assert.True(t, errors.Is(err, ErrNoTimestamp))
}

func TestTimelineAndMergedAreNavigators(t *testing.T) {
	tl, err := NewTimeline(referenceSnapshots())
	require.NoError(t, err)
	mg, err := Merge([][]Snapshot{referenceSnapshots()}, nil)
	require.NoError(t, err)

	for _, nav := range []Navigator{tl, mg} {
		assert.Equal(t, 1, nav.First().Version)
		assert.Equal(t, 5, nav.Last().Version)
	}
}
