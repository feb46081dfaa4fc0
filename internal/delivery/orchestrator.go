package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"comicpdf/internal/logging"
	"comicpdf/internal/worker"
)

// Options configures pacing and labels.
type Options struct {
	// UnitInterval spaces sequential summary sends.
	UnitInterval time.Duration
	// ArtifactInterval spaces file sends.
	ArtifactInterval time.Duration
	BotName          string
}

// Orchestrator delivers conversion results.
type Orchestrator struct {
	unitInterval     time.Duration
	artifactInterval time.Duration
	botName          string
	logger           *slog.Logger
}

// New constructs an Orchestrator.
func New(opts Options, logger *slog.Logger) *Orchestrator {
	if opts.BotName == "" {
		opts.BotName = "comicpdf"
	}
	return &Orchestrator{
		unitInterval:     opts.UnitInterval,
		artifactInterval: opts.ArtifactInterval,
		botName:          opts.BotName,
		logger:           logging.NewComponentLogger(logger, "delivery"),
	}
}

// pacer keeps at least interval between the end of one send and the start
// of the next. The first send goes out immediately.
type pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval, limiter: rate.NewLimiter(rate.Inf, 1)}
}

// Wait blocks until the next send may start or ctx ends.
func (p *pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Sent restarts the interval from the end of the send that just finished.
func (p *pacer) Sent() {
	if p.interval <= 0 {
		return
	}
	p.limiter = rate.NewLimiter(rate.Every(p.interval), 1)
	p.limiter.Allow()
}

// Deliver sends result to dest. Per-unit and per-artifact failures are
// recorded in the report; the returned error is non-nil only when ctx ends
// before delivery finishes.
func (o *Orchestrator) Deliver(ctx context.Context, dest Destination, caps Capabilities, result *worker.ConversionResult) (Report, error) {
	logger := logging.WithContext(ctx, o.logger)
	plan := BuildPlan(result, o.botName)
	var report Report

	if err := o.sendSummary(ctx, logger, dest, caps, plan, &report); err != nil {
		return report, err
	}
	if err := o.sendArtifacts(ctx, logger, dest, plan, &report); err != nil {
		return report, err
	}

	done := Message{Text: completionNotice(plan.Title, report.Sent(), len(plan.Artifacts)), Mention: caps.Mention}
	if err := dest.Send(ctx, done); err != nil {
		logging.WarnWithContext(logger, "completion notice failed", "delivery_notice_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the messaging endpoint"),
			logging.String(logging.FieldImpact, "requester was not told delivery finished"),
		)
	}
	logger.Info("delivery finished",
		logging.String("tier", string(report.Tier)),
		logging.Int("artifacts_sent", report.Sent()),
		logging.Int("artifacts_total", len(plan.Artifacts)),
		logging.Int("unit_failures", len(report.UnitFailures)),
	)
	return report, nil
}

func (o *Orchestrator) sendSummary(ctx context.Context, logger *slog.Logger, dest Destination, caps Capabilities, plan Plan, report *Report) error {
	nodes := plan.Nodes()
	for _, step := range caps.ladder() {
		err := trySend(ctx, dest, step.builder, nodes)
		if err == nil {
			report.Tier = step.tier
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		report.FailedTiers = append(report.FailedTiers, TierAttempt{Tier: step.tier, Err: err})
		logging.WarnWithContext(logger, "batch delivery failed; trying next tier", "delivery_tier_fallback",
			logging.String("tier", string(step.tier)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the endpoint may not support forward messages for this chat"),
			logging.String(logging.FieldImpact, "summary falls back to the next delivery tier"),
		)
	}

	report.Tier = TierSequential
	pacer := newPacer(o.unitInterval)
	for i, unit := range plan.Units {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		msg := Message{Text: unit.Text, Mention: unit.Mention && caps.Mention}
		err := dest.Send(ctx, msg)
		pacer.Sent()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			report.UnitFailures = append(report.UnitFailures, UnitFailure{Index: i, Err: err})
			logging.WarnWithContext(logger, "summary unit send failed", "delivery_unit_failed",
				logging.Int("unit", i),
				logging.Error(err),
				logging.String(logging.FieldImpact, "one summary message was skipped"),
			)
		}
	}
	return nil
}

// trySend builds and sends one batch. A panicking builder counts as a
// failed tier.
func trySend(ctx context.Context, dest Destination, build BatchBuilder, nodes []Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch builder panicked: %v", r)
		}
	}()
	msg, err := build(ctx, nodes)
	if err != nil {
		return fmt.Errorf("build batch: %w", err)
	}
	if len(msg.Forward) == 0 {
		return errors.New("build batch: empty forward message")
	}
	if err := dest.Send(ctx, msg); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (o *Orchestrator) sendArtifacts(ctx context.Context, logger *slog.Logger, dest Destination, plan Plan, report *Report) error {
	pacer := newPacer(o.artifactInterval)
	for _, step := range plan.Artifacts {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		outcome := o.sendArtifact(ctx, logger, dest, step)
		pacer.Sent()
		report.Artifacts = append(report.Artifacts, outcome)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// sendArtifact opens the file right before use so a file renamed or removed
// after the worker reported it is detected here rather than by the endpoint.
func (o *Orchestrator) sendArtifact(ctx context.Context, logger *slog.Logger, dest Destination, step ArtifactStep) ArtifactOutcome {
	outcome := ArtifactOutcome{Chapter: step.Chapter, Filename: step.Ref.Filename}

	file, size, err := openArtifact(step.Ref.Path)
	if err != nil {
		outcome.Status = ArtifactMissing
		outcome.Err = err
		logging.WarnWithContext(logger, "artifact missing at send time", "artifact_missing",
			logging.String("path", step.Ref.Path),
			logging.Int("chapter", step.Chapter),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the worker may have renamed or removed the file"),
			logging.String(logging.FieldImpact, "this chapter is not delivered"),
		)
		o.notify(ctx, logger, dest, missingNotice(step))
		return outcome
	}
	defer file.Close()

	err = dest.Send(ctx, Message{Text: chapterHeader(step, size)})
	if err == nil {
		err = dest.Send(ctx, Message{File: &FileAttachment{
			Path:    step.Ref.Path,
			Name:    step.Ref.Filename,
			Size:    size,
			Content: file,
		}})
	}
	if err != nil {
		outcome.Status = ArtifactSendFailed
		outcome.Err = err
		logging.WarnWithContext(logger, "artifact send failed", "artifact_send_failed",
			logging.String("path", step.Ref.Path),
			logging.Int("chapter", step.Chapter),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the messaging endpoint file upload limits"),
			logging.String(logging.FieldImpact, "this chapter is not delivered"),
		)
		if ctx.Err() == nil {
			o.notify(ctx, logger, dest, sendFailedNotice(step, err))
		}
		return outcome
	}
	outcome.Status = ArtifactSent
	logger.Debug("artifact sent", logging.Int("chapter", step.Chapter), logging.Int64("size", size))
	return outcome
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, dest Destination, text string) {
	if err := dest.Send(ctx, Message{Text: text}); err != nil {
		logger.Debug("failure notice not delivered", logging.Error(err))
	}
}

func openArtifact(path string) (*os.File, int64, error) {
	if path == "" {
		return nil, 0, errors.New("artifact path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return file, info.Size(), nil
}
