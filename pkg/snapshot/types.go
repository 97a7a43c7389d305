// ABOUTME: Snapshot catalog data model
// ABOUTME: Stored captures with payloads, grouped per collection and resource

package snapshot

import (
	"errors"
	"time"

	"github.com/nainya/mementod/pkg/memento"
)

// ErrNotFound is returned when no capture matches a lookup
var ErrNotFound = errors.New("snapshot: not found")

// Record is one stored capture plus its content
type Record struct {
	memento.Snapshot
	ContentType string    // MIME type of Payload
	Payload     []byte    // Captured bytes
	StoredAt    time.Time // When the capture entered the catalog
}

// Stats summarizes catalog contents
type Stats struct {
	Snapshots    int64
	Resources    int64
	Collections  int64
	PayloadBytes int64
}
