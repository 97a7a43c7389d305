// Package server exposes temporal navigation over HTTP and gRPC
package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nainya/mementod/internal/logger"
	"github.com/nainya/mementod/internal/metrics"
	"github.com/nainya/mementod/pkg/linkformat"
	"github.com/nainya/mementod/pkg/memento"
	"github.com/nainya/mementod/pkg/snapshot"
)

var (
	// ErrBadRequest marks caller mistakes such as an unparsable version
	ErrBadRequest = errors.New("bad request")
)

// Catalog turns a resource identifier into candidate snapshots
type Catalog interface {
	ByResource(ctx context.Context, resourceID string) ([][]memento.Snapshot, error)
	Versions(ctx context.Context, collectionID, resourceID string) ([]memento.Snapshot, error)
	Get(ctx context.Context, collectionID, resourceID string, version int) (*snapshot.Record, error)
	Latest(ctx context.Context, collectionID, resourceID string) (*snapshot.Record, error)
}

// Service implements TimeGate, TimeMap and content lookups shared by the
// HTTP and gRPC front ends
type Service struct {
	catalog Catalog
	metrics *metrics.Metrics
	log     *logger.Logger
	prefix  string
	parse   memento.TimestampParser
}

// NewService creates a Service. prefix is prepended to every link target.
func NewService(catalog Catalog, m *metrics.Metrics, log *logger.Logger, prefix string) *Service {
	return &Service{
		catalog: catalog,
		metrics: m,
		log:     log,
		prefix:  prefix,
		parse:   memento.ParseTimestamp,
	}
}

// Negotiation is the result of a TimeGate lookup
type Negotiation struct {
	ResourceID string
	Navigator  *memento.Merged
	// Location is the content URL of the selected memento
	Location string
	// Links is the comma-joined Link header value
	Links string
}

// Negotiate selects the memento of resourceID current as of target. A nil
// target selects the newest stamped memento.
func (s *Service) Negotiate(ctx context.Context, resourceID string, target *time.Time) (*Negotiation, error) {
	groups, err := s.lookup(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	if target == nil {
		bookends, err := memento.Merge(groups, nil, memento.WithParser(s.parse))
		if err != nil {
			return nil, err
		}
		newest := bookends.Last().Time
		target = &newest
	}

	mg, err := memento.Merge(groups, target, memento.WithParser(s.parse))
	if err != nil {
		return nil, err
	}
	s.recordSelection(resourceID, mg)

	first, last := mg.First().Time, mg.Last().Time
	links := []string{
		linkformat.OriginalLink(resourceID),
		linkformat.TimeMapLink(resourceID, false, s.prefix, &first, &last),
	}
	links = append(links, linkformat.FromNavigator(mg).Links(s.prefix)...)
	links = append(links, linkformat.MementoLink(mg.Selected(), linkformat.Memento, s.prefix))

	return &Negotiation{
		ResourceID: resourceID,
		Navigator:  mg,
		Location:   linkformat.ContentURL(mg.Selected(), s.prefix),
		Links:      linkformat.Join(links...),
	}, nil
}

// TimeMap renders the link-format listing of every stamped memento of
// resourceID, oldest first
func (s *Service) TimeMap(ctx context.Context, resourceID string) (string, error) {
	groups, err := s.lookup(ctx, resourceID)
	if err != nil {
		return "", err
	}
	mg, err := memento.Merge(groups, nil, memento.WithParser(s.parse))
	if err != nil {
		return "", err
	}

	stamped := mg.Stamped()
	slices.SortStableFunc(stamped, func(a, b memento.Memento) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return strings.Compare(a.CollectionID, b.CollectionID)
	})

	first, last := mg.First().Time, mg.Last().Time
	lines := []string{
		linkformat.OriginalLink(resourceID),
		linkformat.TimeGateLink(resourceID, s.prefix),
		linkformat.TimeMapLink(resourceID, true, s.prefix, &first, &last),
	}
	for i := range stamped {
		rel := linkformat.Memento
		switch i {
		case 0:
			rel = linkformat.FirstMemento
		case len(stamped) - 1:
			rel = linkformat.LastMemento
		}
		lines = append(lines, linkformat.MementoLink(&stamped[i], rel, s.prefix))
	}
	return strings.Join(lines, ",\n") + "\n", nil
}

// Content is one capture ready to be served
type Content struct {
	Record *snapshot.Record
	// MementoDatetime is empty unless this was a versioned request for a
	// capture with a parsable timestamp
	MementoDatetime string
	Links           string
}

// Content looks up a capture. An empty version serves the newest capture
// without Memento metadata.
func (s *Service) Content(ctx context.Context, resourceID, collectionID, version string) (*Content, error) {
	if resourceID == "" {
		return nil, fmt.Errorf("%w: url is required", ErrBadRequest)
	}

	if version == "" {
		rec, err := s.timed("latest", func() (*snapshot.Record, error) {
			return s.catalog.Latest(ctx, collectionID, resourceID)
		})
		if err != nil {
			return nil, err
		}
		return &Content{Record: rec}, nil
	}

	if collectionID == "" {
		return nil, fmt.Errorf("%w: requests containing a version must also include auid", ErrBadRequest)
	}
	n, err := strconv.Atoi(version)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't parse version string: %s", ErrBadRequest, version)
	}

	rec, err := s.timed("get", func() (*snapshot.Record, error) {
		return s.catalog.Get(ctx, collectionID, resourceID, n)
	})
	if err != nil {
		return nil, err
	}

	out := &Content{Record: rec}
	links := []string{
		linkformat.OriginalLink(resourceID),
		linkformat.TimeGateLink(resourceID, s.prefix),
	}

	snaps, err := s.catalog.Versions(ctx, collectionID, resourceID)
	if err != nil {
		return nil, err
	}

	captured, stamped := s.parse(rec.Timestamp)
	var tl *memento.Timeline
	if stamped {
		out.MementoDatetime = linkformat.FormatDate(captured)
		tl, err = memento.NewTimelineAt(snaps, captured, memento.WithParser(s.parse))
	} else {
		tl, err = memento.NewTimeline(snaps, memento.WithParser(s.parse))
	}
	if err != nil {
		return nil, err
	}

	nav := linkformat.FromNavigator(tl)
	if nav.First.HasTime() && nav.Last.HasTime() {
		links = append(links, linkformat.TimeMapLink(resourceID, false, s.prefix, &nav.First.Time, &nav.Last.Time))
	} else {
		links = append(links, linkformat.TimeMapLink(resourceID, false, s.prefix, nil, nil))
	}
	links = append(links, nav.Links(s.prefix)...)
	out.Links = linkformat.Join(links...)
	return out, nil
}

func (s *Service) lookup(ctx context.Context, resourceID string) ([][]memento.Snapshot, error) {
	start := time.Now()
	groups, err := s.catalog.ByResource(ctx, resourceID)
	s.observe("by_resource", start, len(groups), err)
	return groups, err
}

func (s *Service) timed(op string, fn func() (*snapshot.Record, error)) (*snapshot.Record, error) {
	start := time.Now()
	rec, err := fn()
	count := 0
	if rec != nil {
		count = 1
	}
	s.observe(op, start, count, err)
	return rec, err
}

func (s *Service) observe(op string, start time.Time, count int, err error) {
	duration := time.Since(start)
	status := "success"
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		status = "not_found"
		err = nil
	case err != nil:
		status = "error"
	}
	s.metrics.RecordCatalogOperation(op, status, duration)
	s.log.LogCatalogOperation(op, duration, count, err)
}

func (s *Service) recordSelection(resourceID string, mg *memento.Merged) {
	corrupt := 0
	for _, tl := range mg.Timelines() {
		corrupt += tl.Len() - tl.Stamped()
	}
	if corrupt > 0 {
		s.log.Debug("Skipped snapshots with unparsable timestamps").
			Str("resource", resourceID).
			Int("count", corrupt).
			Send()
	}
	s.metrics.RecordSelection(mg.Outcome().String(), corrupt)
}
