package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gosuri/uitable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nainya/mementod/internal/metrics"
	"github.com/nainya/mementod/internal/server"
	"github.com/nainya/mementod/pkg/linkformat"
	"github.com/nainya/mementod/pkg/memento"
)

var timemapCmd = &cobra.Command{
	Use:   "timemap <url>",
	Short: "List every capture of a resource across collections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, catalog, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		groups, err := catalog.ByResource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		mg, err := memento.Merge(groups, nil)
		if err != nil {
			return err
		}

		table := uitable.New()
		table.MaxColWidth = 60
		table.AddRow("COLLECTION", "VERSION", "DATETIME", "STORED AS", "RELATION")
		for _, tl := range mg.Timelines() {
			for _, m := range tl.Mementos() {
				datetime, rel := "-", "corrupt"
				if m.HasTime() {
					datetime = linkformat.FormatDate(m.Time)
					rel = relationOf(&m, mg)
				}
				table.AddRow(m.CollectionID, strconv.Itoa(m.Version), datetime, m.Timestamp, rel)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}

func relationOf(m *memento.Memento, nav memento.Navigator) string {
	switch {
	case m.SameResourceAndVersion(nav.First()):
		return string(linkformat.FirstMemento)
	case m.SameResourceAndVersion(nav.Last()):
		return string(linkformat.LastMemento)
	}
	return string(linkformat.Memento)
}

var timegateAt string

var timegateCmd = &cobra.Command{
	Use:   "timegate <url>",
	Short: "Show where the TimeGate would redirect and the links it would send",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target *time.Time
		if timegateAt != "" {
			t, ok := memento.ParseTimestamp(timegateAt)
			if !ok {
				return fmt.Errorf("unrecognized date %q; use e.g. %q", timegateAt, time.Now().UTC().Format(http.TimeFormat))
			}
			target = &t
		}

		store, catalog, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		svc := server.NewService(catalog, metrics.NewMetrics(prometheus.NewRegistry()), log, manager.Get().Prefix())
		neg, err := svc.Negotiate(cmd.Context(), args[0], target)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Outcome:  %s\n", neg.Navigator.Outcome())
		fmt.Fprintf(out, "Location: %s\n", neg.Location)
		fmt.Fprintf(out, "Link:     %s\n", neg.Links)
		return nil
	},
}

func init() {
	timegateCmd.Flags().StringVar(&timegateAt, "at", "", "target date, e.g. \"Tue, 11 Sep 2001 20:40:00 GMT\" (default: newest)")
}
