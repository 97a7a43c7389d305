// ABOUTME: YAML ingest manifests describing captures to load into the catalog
// ABOUTME: Payloads come from files next to the manifest or inline bodies

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nainya/mementod/pkg/memento"
)

// Manifest lists captures of one collection
type Manifest struct {
	Collection  string          `yaml:"collection"`
	ContentType string          `yaml:"content_type"`
	Snapshots   []ManifestEntry `yaml:"snapshots"`

	dir string
}

// ManifestEntry is one capture in a manifest
type ManifestEntry struct {
	URL         string `yaml:"url"`
	Version     int    `yaml:"version"`
	Timestamp   string `yaml:"timestamp"`
	ContentType string `yaml:"content_type"`
	File        string `yaml:"file"`
	Body        string `yaml:"body"`
}

// LoadManifest parses a manifest file. Relative payload paths resolve against
// the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Collection == "" {
		return nil, fmt.Errorf("manifest %s: collection is required", path)
	}
	for i, e := range m.Snapshots {
		if e.URL == "" {
			return nil, fmt.Errorf("manifest %s: snapshot %d has no url", path, i)
		}
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

// Records materializes the manifest, reading payload files
func (m *Manifest) Records() ([]*Record, error) {
	records := make([]*Record, 0, len(m.Snapshots))
	for _, e := range m.Snapshots {
		payload := []byte(e.Body)
		if e.File != "" {
			p := e.File
			if !filepath.IsAbs(p) {
				p = filepath.Join(m.dir, p)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read payload for %s: %w", e.URL, err)
			}
			payload = data
		}

		contentType := e.ContentType
		if contentType == "" {
			contentType = m.ContentType
		}

		records = append(records, &Record{
			Snapshot: memento.Snapshot{
				CollectionID: m.Collection,
				ResourceID:   e.URL,
				Version:      e.Version,
				Timestamp:    e.Timestamp,
			},
			ContentType: contentType,
			Payload:     payload,
		})
	}
	return records, nil
}
