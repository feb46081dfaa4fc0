package preflight

import (
	"context"

	"comicpdf/internal/config"
	"comicpdf/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckWorkerCommand(cfg.Worker.Commands))
	results = append(results, CheckFile("Worker script", cfg.Worker.Script))
	results = append(results, CheckWorkerConfig(cfg.Worker.Config))
	results = append(results, CheckOutputDirectory(cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// OneBot is only needed by serve, but an unreachable endpoint is worth
	// reporting whenever one is configured.
	if cfg.OneBot.APIURL != "" {
		results = append(results, CheckOneBotFromConfig(ctx, cfg))
	}
	results = append(results, CheckNotificationsFromConfig(cfg))

	return results
}

// CheckWorkerCommand converts the interpreter lookup into a Result.
func CheckWorkerCommand(commands []string) Result {
	status := deps.ResolveWorkerCommand(commands)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	detail := status.Command
	if status.Detail != "" {
		detail += " (" + status.Detail + ")"
	}
	return Result{Name: status.Name, Passed: true, Detail: detail}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
