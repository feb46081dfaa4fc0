package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"comicpdf/internal/delivery"
	"comicpdf/internal/history"
	"comicpdf/internal/lifecycle"
	"comicpdf/internal/logging"
	"comicpdf/internal/notifications"
	"comicpdf/internal/request"
	"comicpdf/internal/services"
	"comicpdf/internal/worker"
)

// Channel is where replies for one request go.
type Channel interface {
	delivery.Destination
	Capabilities() delivery.Capabilities
}

// Invoker runs the conversion worker.
type Invoker interface {
	Invoke(ctx context.Context, req request.FetchRequest, outputDir string) (*worker.ConversionResult, error)
}

// Deliverer sends a conversion result.
type Deliverer interface {
	Deliver(ctx context.Context, dest delivery.Destination, caps delivery.Capabilities, result *worker.ConversionResult) (delivery.Report, error)
}

// Scheduler registers deferred cleanup.
type Scheduler interface {
	Schedule(job lifecycle.Job, delay time.Duration)
}

// Locker serializes requests that share an album and output directory.
type Locker interface {
	Acquire(ctx context.Context, albumID, dir string) (func(), error)
}

// Recorder persists request history.
type Recorder interface {
	Record(ctx context.Context, entry *history.Entry) error
	Update(ctx context.Context, id string, fn func(*history.Entry)) error
}

// Options configures directory layout and cleanup timing.
type Options struct {
	OutputDir string
	// PerRequestDir places each request in its own subdirectory of OutputDir.
	PerRequestDir bool
	CleanupDelay  time.Duration
}

// Deps are the collaborators a pipeline drives. History and Notifier are
// optional.
type Deps struct {
	Invoker   Invoker
	Deliverer Deliverer
	Cleanup   Scheduler
	Locker    Locker
	History   Recorder
	Notifier  notifications.Service
}

// Pipeline runs fetch requests.
type Pipeline struct {
	opts   Options
	deps   Deps
	logger *slog.Logger
}

// New constructs a pipeline.
func New(opts Options, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	if deps.Invoker == nil || deps.Deliverer == nil || deps.Cleanup == nil || deps.Locker == nil {
		return nil, errors.New("pipeline requires invoker, deliverer, cleanup scheduler, and locker")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("pipeline requires an output directory")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		opts:   opts,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Inbound is one chat message.
type Inbound struct {
	Text      string
	Source    string
	Requester string
}

// Submission is a fetch request as supplied by the requester, before
// validation.
type Submission struct {
	AlbumID   string
	Bounds    *request.Bounds
	Source    string
	Requester string
}

// Outcome reports how a request ended.
type Outcome struct {
	RequestID string
	Status    history.Status
	Request   request.FetchRequest
	OutputDir string
	Result    *worker.ConversionResult
	Report    *delivery.Report
}

// HandleMessage answers one chat message. Text that is not a command is
// ignored and yields a zero Outcome.
func (p *Pipeline) HandleMessage(ctx context.Context, in Inbound, ch Channel) (Outcome, error) {
	cmd := request.ParseCommand(in.Text)
	switch cmd.Kind {
	case request.CommandHelp:
		return Outcome{}, p.reply(ctx, ch, request.HelpText, false)
	case request.CommandUsage:
		return Outcome{}, p.reply(ctx, ch, request.UsageText, false)
	case request.CommandFetch:
		return p.Fetch(ctx, Submission{
			AlbumID:   cmd.AlbumID,
			Bounds:    cmd.Bounds,
			Source:    in.Source,
			Requester: in.Requester,
		}, ch)
	default:
		return Outcome{}, nil
	}
}

// Fetch runs one request to completion. The returned error is the
// validation error for rejected requests, the terminal failure for failed
// ones, and nil once delivery finished (even when some artifacts could not
// be sent; see Outcome.Report).
func (p *Pipeline) Fetch(ctx context.Context, sub Submission, ch Channel) (Outcome, error) {
	started := time.Now()
	id := uuid.NewString()
	ctx = services.WithRequestID(ctx, id)
	ctx = services.WithAlbumID(ctx, sub.AlbumID)
	logger := logging.WithContext(ctx, p.logger)
	out := Outcome{RequestID: id}

	caps := ch.Capabilities()

	req, err := request.Validate(sub.AlbumID, sub.Bounds)
	if err != nil {
		out.Status = history.StatusRejected
		logger.Info("request rejected",
			logging.String("reason", err.Error()),
			logging.String(logging.FieldEventType, "request_rejected"),
		)
		p.record(ctx, logger, &history.Entry{
			ID:           id,
			AlbumID:      sub.AlbumID,
			StartChapter: boundStart(sub.Bounds),
			EndChapter:   boundEnd(sub.Bounds),
			Source:       sub.Source,
			Requester:    sub.Requester,
			Status:       history.StatusRejected,
			ErrorKind:    rejectionKind(err),
			ErrorMessage: err.Error(),
		})
		if sendErr := p.reply(ctx, ch, rejectionText(err), false); sendErr != nil {
			logging.WarnWithContext(logger, "rejection reply failed", "reply_failed",
				logging.Error(sendErr),
				logging.String(logging.FieldImpact, "requester was not told why the request was rejected"),
			)
		}
		return out, err
	}
	out.Request = req
	out.OutputDir = p.outputDir(req, id)

	logger.Info("request accepted",
		logging.Int("start_chapter", req.StartChapter),
		logging.Int("end_chapter", req.EndChapter),
		logging.String("output_dir", out.OutputDir),
		logging.String("source", sub.Source),
		logging.String(logging.FieldEventType, "request_accepted"),
	)
	p.record(ctx, logger, &history.Entry{
		ID:           id,
		AlbumID:      req.AlbumID,
		StartChapter: req.StartChapter,
		EndChapter:   req.EndChapter,
		Source:       sub.Source,
		Requester:    sub.Requester,
		Status:       history.StatusRunning,
		OutputDir:    out.OutputDir,
	})
	if err := p.reply(ctx, ch, ackText(req), false); err != nil {
		logging.WarnWithContext(logger, "acknowledgement failed", "reply_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "requester was not told the request started"),
		)
	}

	release, err := p.deps.Locker.Acquire(ctx, req.AlbumID, out.OutputDir)
	if err != nil {
		return p.fail(ctx, logger, ch, caps, out, fmt.Errorf("wait for album lock: %w", err))
	}
	defer release()

	result, err := p.deps.Invoker.Invoke(ctx, req, out.OutputDir)
	if err == nil {
		err = worker.ValidateResult(result)
	}
	if err != nil {
		if p.opts.PerRequestDir {
			p.deps.Cleanup.Schedule(lifecycle.Job{Key: id, AlbumID: req.AlbumID, Dir: out.OutputDir}, p.opts.CleanupDelay)
		}
		return p.fail(ctx, logger, ch, caps, out, err)
	}
	out.Result = result

	p.deps.Cleanup.Schedule(lifecycle.JobFor(id, req.AlbumID, out.OutputDir, result), p.opts.CleanupDelay)
	p.update(ctx, logger, id, func(e *history.Entry) {
		e.Status = history.StatusDelivering
		e.Title = result.Title
		e.PDFCount = len(result.PDFFiles)
		e.TotalSize = result.TotalSize
	})

	report, err := p.deps.Deliverer.Deliver(ctx, ch, caps, result)
	out.Report = &report
	if err != nil {
		return p.fail(ctx, logger, ch, caps, out, fmt.Errorf("delivery interrupted: %w", err))
	}

	out.Status = history.StatusCompleted
	p.update(ctx, logger, id, func(e *history.Entry) {
		e.Status = history.StatusCompleted
		e.SentCount = report.Sent()
		e.Tier = string(report.Tier)
	})
	summary := notifications.DeliverySummary{
		AlbumID:   req.AlbumID,
		Title:     result.Title,
		Sent:      report.Sent(),
		Total:     len(report.Artifacts),
		SizeBytes: result.TotalSize,
		Tier:      string(report.Tier),
		Elapsed:   time.Since(started),
	}
	if err := p.deps.Notifier.NotifyDeliveryCompleted(ctx, summary); err != nil {
		logging.WarnWithContext(logger, "delivery notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator was not notified"),
		)
	}
	logger.Info("request completed",
		logging.Int("artifacts_sent", report.Sent()),
		logging.Int("artifacts_total", len(report.Artifacts)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "request_completed"),
	)
	return out, nil
}

// fail records a post-launch failure and reports it to the requester and the
// operator.
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, ch Channel, caps delivery.Capabilities, out Outcome, cause error) (Outcome, error) {
	out.Status = history.StatusFailed
	kind := failureKind(cause)

	attrs := []logging.Attr{
		logging.Error(cause),
		logging.String("error_kind", kind),
	}
	var workerErr *worker.Error
	if errors.As(cause, &workerErr) && workerErr.Stderr != "" {
		attrs = append(attrs, logging.String("worker_stderr", workerErr.Stderr))
	}
	logging.ErrorWithContext(logger, "request failed", "request_failed", attrs...)

	p.update(ctx, logger, out.RequestID, func(e *history.Entry) {
		e.Status = history.StatusFailed
		e.ErrorKind = kind
		e.ErrorMessage = causeText(cause)
		if out.Report != nil {
			e.SentCount = out.Report.Sent()
			e.Tier = string(out.Report.Tier)
		}
	})

	// A cancelled context cannot carry the reply; the requester's chat
	// endpoint is shutting down with us.
	if ctx.Err() == nil {
		if err := p.reply(ctx, ch, failureText(cause), caps.Mention); err != nil {
			logging.WarnWithContext(logger, "failure reply failed", "reply_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "requester was not told the request failed"),
			)
		}
		if err := p.deps.Notifier.NotifyRequestFailed(ctx, out.Request.AlbumID, kind, errors.New(causeText(cause))); err != nil {
			logging.WarnWithContext(logger, "failure notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator was not notified"),
			)
		}
	}
	return out, cause
}

func (p *Pipeline) reply(ctx context.Context, ch Channel, text string, mention bool) error {
	return ch.Send(ctx, delivery.Message{Text: text, Mention: mention})
}

func (p *Pipeline) outputDir(req request.FetchRequest, id string) string {
	if !p.opts.PerRequestDir {
		return p.opts.OutputDir
	}
	return filepath.Join(p.opts.OutputDir, lifecycle.RequestDirName(req.AlbumID, id))
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, entry *history.Entry) {
	if p.deps.History == nil {
		return
	}
	if err := p.deps.History.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "request missing from history"),
		)
	}
}

func (p *Pipeline) update(ctx context.Context, logger *slog.Logger, id string, fn func(*history.Entry)) {
	if p.deps.History == nil {
		return
	}
	// The ledger write must land even when the request context was cancelled.
	writeCtx := context.WithoutCancel(ctx)
	if err := p.deps.History.Update(writeCtx, id, fn); err != nil {
		logging.WarnWithContext(logger, "history update failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "history shows a stale status"),
		)
	}
}

func boundStart(b *request.Bounds) int {
	if b == nil {
		return request.DefaultStart
	}
	return b.Start
}

func boundEnd(b *request.Bounds) int {
	if b == nil {
		return request.DefaultEnd
	}
	return b.End
}
