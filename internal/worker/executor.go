package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error
}

// StartError reports that a command could not be launched at all.
type StartError struct {
	Binary string
	Err    error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Binary, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

const (
	maxLineBytes = 16 << 20
	// killGrace bounds how long Wait blocks on pipes after the process group
	// was killed.
	killGrace = 5 * time.Second
)

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid targets the whole group so interpreter children die too.
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &StartError{Binary: binary, Err: err}
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			if forward != nil {
				forward(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
			// Keep draining so the process never blocks on a full pipe.
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)

	wg.Wait()
	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if scanErr != nil {
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if waitErr != nil {
		return fmt.Errorf("wait command: %w", waitErr)
	}
	return nil
}
