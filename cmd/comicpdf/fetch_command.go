package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"comicpdf/internal/config"
	"comicpdf/internal/pipeline"
	"comicpdf/internal/request"
	"comicpdf/internal/services"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var peer bool
	var keep bool
	var noDelay bool
	var copyTo string

	cmd := &cobra.Command{
		Use:   "fetch <album> [start-end]",
		Short: "Convert an album and print the delivery to the terminal",
		Long: "Runs one request through the worker and delivery pipeline with the terminal as the chat.\n" +
			"Produced PDFs are removed when the command exits unless --keep is set; use --copy-to to keep copies.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var bounds *request.Bounds
			if len(args) == 2 {
				if bounds, err = request.ParseBounds(args[1]); err != nil {
					return err
				}
			}
			if copyTo != "" {
				if copyTo, err = config.ExpandPath(copyTo); err != nil {
					return err
				}
			}

			logger, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, logger, runtimeOptions{noDelay: noDelay, holdCleanup: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			ch := newConsoleChannel(out, copyTo, peer)
			outcome, fetchErr := rt.pipeline.Fetch(runCtx, pipeline.Submission{
				AlbumID:   args[0],
				Bounds:    bounds,
				Source:    "cli",
				Requester: cliRequester(),
			}, ch)

			if keep {
				if n := rt.cleanup.Discard(); n > 0 && outcome.OutputDir != "" {
					fmt.Fprintf(out, "Kept output in %s\n", outcome.OutputDir)
				}
			} else {
				rt.cleanup.Flush(context.WithoutCancel(runCtx))
			}

			if fetchErr != nil {
				if services.UserCorrectable(fetchErr) {
					return fmt.Errorf("%w (run %q for usage)", fetchErr, "comicpdf fetch --help")
				}
				return fetchErr
			}
			printOutcome(cmd, outcome, len(ch.Copied()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&peer, "peer", false, "Deliver like a direct chat (one message at a time)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the produced files instead of cleaning up at exit")
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "Disable pacing between sends")
	cmd.Flags().StringVar(&copyTo, "copy-to", "", "Copy delivered PDFs into this directory")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome pipeline.Outcome, copied int) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Request:   %s\n", outcome.RequestID)
	fmt.Fprintf(out, "Status:    %s\n", outcome.Status)
	if outcome.Report != nil {
		fmt.Fprintf(out, "Tier:      %s\n", outcome.Report.Tier)
		fmt.Fprintf(out, "Delivered: %d/%d PDFs\n", outcome.Report.Sent(), len(outcome.Report.Artifacts))
	}
	if outcome.Result != nil {
		fmt.Fprintf(out, "Size:      %s\n", humanize.IBytes(uint64(max(outcome.Result.TotalSize, 0))))
	}
	if copied > 0 {
		fmt.Fprintf(out, "Copied:    %d files\n", copied)
	}
}

func cliRequester() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}
