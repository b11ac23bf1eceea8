package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"assistant/pkg/metrics"
)

func newStatsCmd() *cobra.Command {
	var (
		prometheusURL string
		window        time.Duration
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize command traffic from a Prometheus server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := metrics.NewQueryService(prometheusURL)
			if err != nil {
				return err
			}
			summary, err := q.Summarize(cmd.Context(), window)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd, summary)
		},
	}

	cmd.Flags().StringVar(&prometheusURL, "prometheus-url", "http://localhost:9090", "Prometheus server address")
	cmd.Flags().DurationVar(&window, "window", time.Hour, "lookback window")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, s *metrics.Summary) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📊 Commands over the last %s\n\n", s.Window)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLOCAL\tUPSTREAM\tTOTAL")
	for _, k := range s.Kinds {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", k.Kind, k.Local, k.Upstream, k.Total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	for _, name := range sortedKeys(s.Outcomes) {
		fmt.Fprintf(out, "  %-16s %d\n", name, s.Outcomes[name])
	}
	for _, name := range sortedKeys(s.UpstreamByStatus) {
		fmt.Fprintf(out, "  upstream %-7s %d\n", name, s.UpstreamByStatus[name])
	}
	fmt.Fprintf(out, "  rejections       %d\n", s.AdmissionRejections)
	if s.BreakerOpen {
		fmt.Fprintln(out, "  ⚠️  upstream breaker is OPEN")
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
