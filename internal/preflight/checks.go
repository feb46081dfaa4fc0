package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"comicpdf/internal/lifecycle"
	"comicpdf/internal/onebot"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutputDirectory verifies the output directory, or the closest existing
// ancestor when the directory has not been created yet. A passing result
// includes how much disk the leftover artifacts use.
func CheckOutputDirectory(path string) Result {
	const name = "Output directory"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		ancestor := existingAncestor(path)
		if ancestor == "" {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
		}
		if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first request)", path)}
	}

	result := CheckDirectoryAccess(name, path)
	if !result.Passed {
		return result
	}
	usage, err := lifecycle.Usage(path)
	if err != nil {
		return result
	}
	result.Detail = fmt.Sprintf("%s (read/write ok, %d files, %s)", path, usage.Files, humanize.IBytes(uint64(usage.Bytes)))
	return result
}

func existingAncestor(path string) string {
	dir := filepath.Clean(path)
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
}

// CheckFile verifies that a regular file exists and is readable.
func CheckFile(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// workerOption is the part of the worker's YAML option file the conversion
// depends on.
type workerOption struct {
	Plugins map[string][]struct {
		Plugin string         `yaml:"plugin"`
		Kwargs map[string]any `yaml:"kwargs"`
	} `yaml:"plugins"`
}

// pdfHooks are the plugin phases where img2pdf produces per-chapter or
// per-album PDFs.
var pdfHooks = []string{"after_photo", "after_album"}

// CheckWorkerConfig verifies the worker YAML parses and enables the img2pdf
// plugin with a pdf_dir.
func CheckWorkerConfig(path string) Result {
	const name = "Worker config"

	base := CheckFile(name, path)
	if !base.Passed {
		return base
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: read: %v)", path, err)}
	}
	var opt workerOption
	if err := yaml.Unmarshal(raw, &opt); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: invalid yaml: %v)", path, err)}
	}

	for _, hook := range pdfHooks {
		for _, entry := range opt.Plugins[hook] {
			if entry.Plugin != "img2pdf" {
				continue
			}
			dir, _ := entry.Kwargs["pdf_dir"].(string)
			if strings.TrimSpace(dir) == "" {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: img2pdf in %s has no pdf_dir)", path, hook)}
			}
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("img2pdf %s -> %s", hook, dir)}
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (error: img2pdf plugin not enabled)", path)}
}

// CheckOneBot verifies the endpoint answers get_status.
func CheckOneBot(ctx context.Context, client *onebot.Client) Result {
	const name = "OneBot endpoint"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Call(checkCtx, "get_status", map[string]any{}); err != nil {
		return Result{Name: name, Detail: summarizeCallError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeCallError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "status check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "status check timed out (endpoint unreachable)"
	}
	return err.Error()
}
