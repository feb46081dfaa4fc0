// Package main hosts the comicpdf CLI entrypoint and command graph.
//
// The Cobra command tree covers one-shot conversions printed to the terminal
// (fetch), the long-running OneBot webhook server (serve), request history,
// environment preflight checks, and configuration scaffolding. Configuration
// resolution, .env loading, and logger construction live in the shared
// command context so subcommands only wire their own behavior.
package main
