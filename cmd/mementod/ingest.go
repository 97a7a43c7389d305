package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/mementod/pkg/snapshot"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <manifest.yaml>...",
	Short: "Load captures described by YAML manifests into the catalog",
	Example: `  mementod ingest captures/au1.yaml
  mementod --db /var/lib/mementod/catalog.db ingest a.yaml b.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		for _, path := range args {
			m, err := snapshot.LoadManifest(path)
			if err != nil {
				return err
			}
			records, err := m.Records()
			if err != nil {
				return err
			}

			mlog := log.CatalogLogger("ingest").WithFields(map[string]interface{}{
				"manifest":   path,
				"collection": m.Collection,
			})
			start := time.Now()
			for _, r := range records {
				if err := store.Put(cmd.Context(), r); err != nil {
					mlog.Error("Capture rejected").Err(err).Int("version", r.Version).Send()
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			mlog.Info("Manifest ingested").
				Int("captures", len(records)).
				Dur("duration_ms", time.Since(start)).
				Send()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d captures into %s\n", path, len(records), m.Collection)
		}
		return nil
	},
}
