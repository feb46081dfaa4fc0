package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"comicpdf/internal/logging"
	"comicpdf/internal/logs"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var requestID string
	var albumID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logFileName)
			match := logs.All(
				logs.FieldMatcher(logging.FieldRequestID, requestID),
				logs.FieldMatcher(logging.FieldAlbumID, albumID),
			)

			runCtx := cmd.Context()
			if follow {
				var stop context.CancelFunc
				runCtx, stop = signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
				defer stop()
			}

			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Match: match}
			for {
				result, err := logs.Tail(runCtx, path, opts)
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				if !follow || runCtx.Err() != nil {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: followWait, Match: match}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&requestID, "request", "", "Only lines for this request id")
	cmd.Flags().StringVar(&albumID, "album", "", "Only lines for this album id")
	return cmd
}
