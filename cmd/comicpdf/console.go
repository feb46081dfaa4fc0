package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"comicpdf/internal/delivery"
	"comicpdf/internal/fileutil"
	"comicpdf/internal/textutil"
)

// consoleChannel prints delivered messages to a terminal. File sends are
// copied into copyTo when it is set.
type consoleChannel struct {
	out      io.Writer
	copyTo   string
	peerOnly bool

	mu     sync.Mutex
	copied []string
}

func newConsoleChannel(out io.Writer, copyTo string, peerOnly bool) *consoleChannel {
	return &consoleChannel{out: out, copyTo: copyTo, peerOnly: peerOnly}
}

func (c *consoleChannel) Capabilities() delivery.Capabilities {
	if c.peerOnly {
		return delivery.Capabilities{PeerOnly: true}
	}
	return delivery.Capabilities{Default: c.batch}
}

func (c *consoleChannel) batch(_ context.Context, nodes []delivery.Node) (delivery.Message, error) {
	return delivery.Message{Forward: nodes, Scope: delivery.ScopeDefault}, nil
}

func (c *consoleChannel) Send(ctx context.Context, msg delivery.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case msg.File != nil:
		return c.sendFile(msg.File)
	case len(msg.Forward) > 0:
		fmt.Fprintf(c.out, "┌ forward (%s, %d messages)\n", msg.Scope, len(msg.Forward))
		for _, node := range msg.Forward {
			for i, line := range strings.Split(node.Text, "\n") {
				if i == 0 {
					fmt.Fprintf(c.out, "│ %s: %s\n", node.Label, line)
					continue
				}
				fmt.Fprintf(c.out, "│   %s\n", line)
			}
		}
		fmt.Fprintln(c.out, "└")
	default:
		fmt.Fprintln(c.out, msg.Text)
	}
	return nil
}

func (c *consoleChannel) sendFile(file *delivery.FileAttachment) error {
	if c.copyTo == "" {
		fmt.Fprintf(c.out, "[file] %s (%s)\n", file.Name, textutil.FormatMB(file.Size))
		return nil
	}
	if err := os.MkdirAll(c.copyTo, 0o755); err != nil {
		return fmt.Errorf("create copy directory: %w", err)
	}
	name := textutil.SanitizeFileName(file.Name)
	if name == "" {
		name = textutil.SanitizeFileName(filepath.Base(file.Path))
	}
	if name == "" {
		name = "chapter.pdf"
	}
	dst := fileutil.UniquePath(filepath.Join(c.copyTo, name))
	sum, err := fileutil.WriteVerified(file.Content, dst, file.Size)
	if err != nil {
		return fmt.Errorf("copy %s: %w", file.Name, err)
	}
	c.copied = append(c.copied, dst)
	fmt.Fprintf(c.out, "[file] %s -> %s (%s, sha256 %s)\n", file.Name, dst, textutil.FormatMB(file.Size), sum[:12])
	return nil
}

// Copied returns the paths written under copyTo.
func (c *consoleChannel) Copied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.copied...)
}
