package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"comicpdf/internal/logging"
	"comicpdf/internal/request"
)

// Options describes how the worker is launched.
type Options struct {
	// Commands are tried in order; a later one is used only when the earlier
	// one cannot be started.
	Commands   []string
	Script     string
	ConfigPath string
	Timeout    time.Duration
}

// Option configures the invoker.
type Option func(*Invoker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(i *Invoker) {
		if exec != nil {
			i.exec = exec
		}
	}
}

// Invoker runs the conversion worker for validated requests.
type Invoker struct {
	commands []string
	script   string
	config   string
	timeout  time.Duration
	exec     Executor
	logger   *slog.Logger
}

// NewInvoker constructs an Invoker.
func NewInvoker(opts Options, logger *slog.Logger, options ...Option) (*Invoker, error) {
	commands := make([]string, 0, len(opts.Commands))
	for _, c := range opts.Commands {
		if c = strings.TrimSpace(c); c != "" {
			commands = append(commands, c)
		}
	}
	if len(commands) == 0 {
		return nil, errors.New("worker command required")
	}
	if strings.TrimSpace(opts.Script) == "" {
		return nil, errors.New("worker script required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	inv := &Invoker{
		commands: commands,
		script:   opts.Script,
		config:   opts.ConfigPath,
		timeout:  opts.Timeout,
		exec:     commandExecutor{},
		logger:   logging.NewComponentLogger(logger, "worker"),
	}
	for _, opt := range options {
		opt(inv)
	}
	return inv, nil
}

// Invoke runs the worker for req, writing artifacts into outputDir, and
// returns the parsed result. The output directory is created and probed for
// writability before anything is launched.
func (i *Invoker) Invoke(ctx context.Context, req request.FetchRequest, outputDir string) (*ConversionResult, error) {
	logger := logging.WithContext(ctx, i.logger)
	if err := ensureWritable(outputDir); err != nil {
		return nil, &Error{Kind: KindOutputDirUnwritable, Message: fmt.Sprintf("output directory %s is not writable", outputDir), Err: err}
	}

	args := []string{
		i.script,
		req.AlbumID,
		i.config,
		itoa(req.StartChapter),
		itoa(req.EndChapter),
		outputDir,
	}

	runCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	capture := newOutputCapture(runCtx, logger)
	started := time.Now()
	var runErr error
	launched := ""
	for _, command := range i.commands {
		runErr = i.exec.Run(runCtx, command, args, capture.onStdout, capture.onStderr)
		var startErr *StartError
		if errors.As(runErr, &startErr) && runCtx.Err() == nil {
			logging.WarnWithContext(logger, "worker command unavailable", "worker_command_unavailable",
				logging.String("command", command),
				logging.Error(startErr.Err),
				logging.String(logging.FieldErrorHint, "install the interpreter or adjust worker.commands"),
				logging.String(logging.FieldImpact, "trying the next configured command"),
			)
			continue
		}
		launched = command
		break
	}
	if launched == "" && runCtx.Err() == nil {
		return nil, &Error{
			Kind:    KindWorkerUnavailable,
			Message: fmt.Sprintf("none of %s could be started", strings.Join(i.commands, ", ")),
			Err:     runErr,
		}
	}

	stdout := capture.stdoutText()
	stderr := capture.stderrTail()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &Error{
			Kind:    KindWorkerTimeout,
			Message: fmt.Sprintf("worker did not finish within %s", i.timeout),
			Stdout:  stdout,
			Stderr:  stderr,
			Err:     runCtx.Err(),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("worker canceled: %w", err)
	}

	logger.Debug("worker exited",
		logging.String("command", launched),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("stderr_lines", capture.stderrLines()),
		logging.Error(runErr),
	)

	result, err := parseResult(stdout)
	if err != nil {
		if runErr != nil {
			err = errors.Join(err, runErr)
		}
		return nil, &Error{
			Kind:    KindMalformedOutput,
			Message: "worker output could not be parsed",
			Stdout:  stdout,
			Stderr:  stderr,
			Err:     err,
		}
	}
	if !result.Success {
		reason := strings.TrimSpace(result.Error)
		if reason == "" {
			reason = "worker reported failure without a reason"
		}
		if result.Traceback != "" {
			logger.Debug("worker traceback", logging.String("traceback", result.Traceback))
		}
		return nil, &Error{Kind: KindWorkerReportedFailure, Message: reason, Stdout: stdout, Stderr: stderr}
	}

	result.normalize(outputDir)
	logger.Info("worker finished",
		logging.String("title", result.Title),
		logging.Int("pdf_count", len(result.PDFFiles)),
		logging.Int64("total_size", result.TotalSize),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// ensureWritable creates dir if needed and proves it accepts new files.
func ensureWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	name := probe.Name()
	_, writeErr := probe.WriteString("probe")
	closeErr := probe.Close()
	removeErr := os.Remove(name)
	if err := errors.Join(writeErr, closeErr); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	if removeErr != nil {
		return fmt.Errorf("probe cleanup: %w", removeErr)
	}
	return nil
}
