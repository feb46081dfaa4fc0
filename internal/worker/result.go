package worker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"comicpdf/internal/textutil"
)

// ArtifactRef points at one produced PDF. Existence on disk is not guaranteed
// and must be rechecked before every read.
type ArtifactRef struct {
	Path         string `json:"path"`
	Filename     string `json:"filename"`
	SizeBytes    int64  `json:"size"`
	ChapterIndex int    `json:"chapter_index,omitempty"`
}

// PhotoInfo summarizes one chapter the worker collected.
type PhotoInfo struct {
	Title      string `json:"title"`
	Index      int    `json:"index"`
	ImageCount int    `json:"image_count"`
}

// ConversionResult is the structured document the worker prints last.
type ConversionResult struct {
	Success             bool          `json:"success"`
	AlbumID             flexString    `json:"album_id,omitempty"`
	Title               string        `json:"title"`
	Author              string        `json:"author"`
	TotalChapters       int           `json:"total_chapters"`
	StartChapter        int           `json:"start_chapter"`
	EndChapter          int           `json:"end_chapter,omitempty"`
	RequestedEndChapter int           `json:"requested_end_chapter,omitempty"`
	DownloadedChapters  int           `json:"downloaded_chapters,omitempty"`
	SizeLimitReached    bool          `json:"size_limit_reached,omitempty"`
	TotalImages         int           `json:"total_images,omitempty"`
	Photos              []PhotoInfo   `json:"photos,omitempty"`
	PDFCount            int           `json:"pdf_count"`
	TotalSize           int64         `json:"total_size"`
	PDFDir              string        `json:"pdf_dir,omitempty"`
	Mode                string        `json:"mode,omitempty"`
	PDFFiles            []ArtifactRef `json:"pdf_files"`
	Error               string        `json:"error,omitempty"`
	Traceback           string        `json:"traceback,omitempty"`
}

// ChapterNumber returns the chapter label for the artifact at position i.
func (r *ConversionResult) ChapterNumber(i int) int {
	start := r.StartChapter
	if start < 1 {
		start = 1
	}
	return start + i
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("album_id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// String returns the underlying value.
func (f flexString) String() string { return string(f) }

var (
	errEmptyOutput    = errors.New("worker produced no output on stdout")
	errMissingSuccess = errors.New("result line is not an object with a success field")
)

// lastNonEmptyLine returns the final line of buf that contains anything but
// whitespace.
func lastNonEmptyLine(buf string) string {
	for buf != "" {
		idx := strings.LastIndexByte(buf, '\n')
		line := strings.TrimSpace(buf[idx+1:])
		if line != "" {
			return line
		}
		if idx < 0 {
			break
		}
		buf = buf[:idx]
	}
	return ""
}

// parseResult decodes the last non-empty stdout line. Earlier lines are
// ignored since libraries used by the worker may print to stdout.
func parseResult(stdout string) (*ConversionResult, error) {
	line := lastNonEmptyLine(stdout)
	if line == "" {
		return nil, errEmptyOutput
	}
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return nil, fmt.Errorf("decode result line: %w", err)
	}
	if probe.Success == nil {
		return nil, errMissingSuccess
	}
	var result ConversionResult
	if err := json.Unmarshal([]byte(line), &result); err != nil {
		return nil, fmt.Errorf("decode result line: %w", err)
	}
	return &result, nil
}

// normalize cleans display fields and resolves relative artifact paths
// against the directory the worker was told to use.
func (r *ConversionResult) normalize(outputDir string) {
	r.Title = textutil.OrDefault(textutil.NormalizeDisplay(r.Title), "Unknown title")
	r.Author = textutil.OrDefault(textutil.NormalizeDisplay(r.Author), "Unknown author")
	base := strings.TrimSpace(r.PDFDir)
	if base == "" {
		base = outputDir
	}
	for i := range r.PDFFiles {
		ref := &r.PDFFiles[i]
		ref.Path = strings.TrimSpace(ref.Path)
		ref.Filename = strings.TrimSpace(ref.Filename)
		if ref.Path == "" && ref.Filename != "" {
			ref.Path = filepath.Join(base, ref.Filename)
		}
		if ref.Path != "" && !filepath.IsAbs(ref.Path) {
			ref.Path = filepath.Join(base, ref.Path)
		}
		if ref.Filename == "" && ref.Path != "" {
			ref.Filename = filepath.Base(ref.Path)
		}
		if ref.SizeBytes < 0 {
			ref.SizeBytes = 0
		}
	}
	if r.PDFCount == 0 {
		r.PDFCount = len(r.PDFFiles)
	}
	if r.TotalSize <= 0 {
		var total int64
		for _, ref := range r.PDFFiles {
			total += ref.SizeBytes
		}
		r.TotalSize = total
	}
}

// ValidateResult rejects results that carry no artifacts, even when the
// worker reported success.
func ValidateResult(result *ConversionResult) error {
	if result == nil || len(result.PDFFiles) == 0 {
		msg := "no PDF files were produced"
		if result != nil && result.Success {
			msg = "worker reported success but produced no PDF files"
		}
		return &Error{Kind: KindNoArtifacts, Message: msg}
	}
	return nil
}

func itoa(v int) string { return strconv.Itoa(v) }
