// ABOUTME: Memento protocol Link header values
// ABOUTME: TimeGate, TimeMap and per-snapshot memento relations

package linkformat

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nainya/mementod/pkg/memento"
)

// Relation is a memento link relation type
type Relation string

const (
	FirstMemento Relation = "first-memento"
	PrevMemento  Relation = "prev-memento"
	Memento      Relation = "memento"
	NextMemento  Relation = "next-memento"
	LastMemento  Relation = "last-memento"
)

// LinkFormat is the TimeMap media type
const LinkFormat = "application/link-format"

// DateLayout renders dates the way HTTP date headers do
const DateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatDate renders t in GMT using DateLayout
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// TimeGateLink returns <prefix timegate/resource>; rel="timegate"
func TimeGateLink(resourceID, prefix string) string {
	return "<" + prefix + "timegate/" + resourceID + `>; rel="timegate"`
}

// TimeMapLink returns the link to a resource's TimeMap. rel is "self" when the
// response being written is that TimeMap. from and until are only rendered
// when both are known.
func TimeMapLink(resourceID string, isSelf bool, prefix string, first, last *time.Time) string {
	rel := "timemap"
	if isSelf {
		rel = "self"
	}

	var sb strings.Builder
	sb.WriteString("<" + prefix + "timemap/" + resourceID + ">")
	sb.WriteString(`; rel="` + rel + `"`)
	sb.WriteString(`; type="` + LinkFormat + `"`)
	if first != nil && last != nil {
		sb.WriteString(`; from="` + FormatDate(*first) + `"`)
		sb.WriteString(`; until="` + FormatDate(*last) + `"`)
	}
	return sb.String()
}

// MementoLink returns the link to one snapshot's content. A memento without a
// parsable timestamp is rendered without the datetime attribute.
func MementoLink(m *memento.Memento, rel Relation, prefix string) string {
	var sb strings.Builder
	sb.WriteString("<" + ContentURL(m, prefix) + ">")
	sb.WriteString(`; rel="` + string(rel) + `"`)
	if m.HasTime() {
		sb.WriteString(`; datetime="` + FormatDate(m.Time) + `"`)
	}
	return sb.String()
}

// ContentURL is the ServeContent location of one snapshot
func ContentURL(m *memento.Memento, prefix string) string {
	return prefix + "ServeContent?url=" + url.QueryEscape(m.ResourceID) +
		"&auid=" + m.CollectionID +
		"&version=" + strconv.Itoa(m.Version)
}

// OriginalLink points at the live resource
func OriginalLink(resourceID string) string {
	return "<" + resourceID + `>; rel="original"`
}

// Join assembles link values into one Link header value
func Join(links ...string) string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, ", ")
}
