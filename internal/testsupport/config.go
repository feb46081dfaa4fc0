package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"comicpdf/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Pacing and cleanup delays are zeroed so tests run without sleeping.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Worker.Script = filepath.Join(base, "worker", "jmcomic_download_pdf.py")
	cfgVal.Worker.Config = filepath.Join(base, "worker", "jmcomic_config.yml")
	cfgVal.Delivery.UnitIntervalMS = 0
	cfgVal.Delivery.ArtifactIntervalMS = 0
	cfgVal.Delivery.CleanupDelaySeconds = 0
	cfgVal.OneBot.Listen = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkerCommands overrides the interpreter fallback list.
func WithWorkerCommands(commands ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Commands = commands
	}
}

// WithNtfyTopic sets the ntfy topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithWorkerFiles writes a placeholder script and worker config at the
// configured locations.
func WithWorkerFiles(configYAML string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.MkdirAll(filepath.Dir(b.cfg.Worker.Script), 0o755); err != nil {
			b.t.Fatalf("mkdir worker dir: %v", err)
		}
		if err := os.WriteFile(b.cfg.Worker.Script, []byte("print('ok')\n"), 0o644); err != nil {
			b.t.Fatalf("write worker script: %v", err)
		}
		if err := os.WriteFile(b.cfg.Worker.Config, []byte(configYAML), 0o644); err != nil {
			b.t.Fatalf("write worker config: %v", err)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, python3 is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"python3"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WithShellWorker configures /bin/sh as the worker interpreter running body
// as the script. The script receives album id, worker config, start chapter,
// end chapter, and output directory as $1..$5. A worker config with an
// img2pdf plugin is written alongside it.
func WithShellWorker(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Commands = []string{"/bin/sh"}
		b.cfg.Worker.Script = filepath.Join(b.baseDir, "worker", "fake_worker.sh")
		if err := os.MkdirAll(filepath.Dir(b.cfg.Worker.Script), 0o755); err != nil {
			b.t.Fatalf("mkdir worker dir: %v", err)
		}
		if err := os.WriteFile(b.cfg.Worker.Script, []byte(body), 0o755); err != nil {
			b.t.Fatalf("write worker script: %v", err)
		}
		yaml := "plugins:\n  after_album:\n    - plugin: img2pdf\n      kwargs:\n        pdf_dir: " + b.cfg.Paths.OutputDir + "\n"
		if err := os.WriteFile(b.cfg.Worker.Config, []byte(yaml), 0o644); err != nil {
			b.t.Fatalf("write worker config: %v", err)
		}
	}
}
