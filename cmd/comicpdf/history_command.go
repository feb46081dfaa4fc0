package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"comicpdf/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	var counts bool
	var pruneAge time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if pruneAge > 0 {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-pruneAge))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d finished requests\n", removed)
				return nil
			}

			if counts {
				stats, err := store.Counts(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildCountRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No requests recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			}

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if entries == nil {
					entries = []history.Entry{}
				}
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(out, "No requests recorded in %s\n", store.Path())
				return nil
			}
			headers := []string{"Created", "Album", "Chapters", "Status", "Title", "Sent", "Size", "Detail"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
			fmt.Fprintln(out, renderTable(out, headers, buildHistoryRows(entries, time.Now()), aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of requests to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&counts, "counts", false, "Show the number of requests per status")
	cmd.Flags().DurationVar(&pruneAge, "prune-older-than", 0, "Delete finished requests older than this instead of listing")
	return cmd
}

func buildHistoryRows(entries []history.Entry, now time.Time) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		sent := "-"
		if e.PDFCount > 0 {
			sent = fmt.Sprintf("%d/%d", e.SentCount, e.PDFCount)
		}
		size := "-"
		if e.TotalSize > 0 {
			size = humanize.IBytes(uint64(e.TotalSize))
		}
		rows = append(rows, []string{
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			e.AlbumID,
			fmt.Sprintf("%d-%d", e.StartChapter, e.EndChapter),
			string(e.Status),
			truncate(e.Title, 32),
			sent,
			size,
			historyDetail(e),
		})
	}
	return rows
}

func historyDetail(e history.Entry) string {
	switch {
	case e.ErrorKind != "":
		return truncate(e.ErrorKind+": "+e.ErrorMessage, 48)
	case e.Tier != "":
		return e.Tier
	default:
		return e.Requester
	}
}

func buildCountRows(stats map[history.Status]int) [][]string {
	keys := make([]string, 0, len(stats))
	for status := range stats {
		keys = append(keys, string(status))
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", stats[history.Status(key)])})
	}
	return rows
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
