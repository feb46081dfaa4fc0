package delivery

import (
	"fmt"
	"strings"

	"comicpdf/internal/textutil"
	"comicpdf/internal/worker"
)

const divider = "━━━━━━━━━━━━━━━"

// Unit is one summary message.
type Unit struct {
	Label   string
	Text    string
	Mention bool
}

// ArtifactStep is one file send.
type ArtifactStep struct {
	Chapter int
	Ref     worker.ArtifactRef
}

// Plan is the ordered set of sends derived from a result.
type Plan struct {
	Title     string
	Units     []Unit
	Artifacts []ArtifactStep
}

// Nodes converts the summary units into forward-message nodes.
func (p Plan) Nodes() []Node {
	nodes := make([]Node, 0, len(p.Units))
	for _, u := range p.Units {
		nodes = append(nodes, Node{Label: u.Label, Text: u.Text})
	}
	return nodes
}

// BuildPlan derives the info, per-chapter, and closing units plus the
// artifact sends for result. botName labels the info unit.
func BuildPlan(result *worker.ConversionResult, botName string) Plan {
	plan := Plan{Title: result.Title}
	totalSize := textutil.FormatMB(result.TotalSize)

	info := []string{
		"📚 Comic info",
		divider,
		"Title: " + result.Title,
		"Author: " + result.Author,
		fmt.Sprintf("Total chapters: %d", result.TotalChapters),
		"Total size: " + totalSize,
	}
	if result.SizeLimitReached {
		info = append(info, fmt.Sprintf("⚠️ Stopped after chapter %d because the size limit was reached (requested up to %d)",
			result.EndChapter, result.RequestedEndChapter))
	}
	plan.Units = append(plan.Units, Unit{Label: botName, Text: strings.Join(info, "\n")})

	for i, ref := range result.PDFFiles {
		chapter := result.ChapterNumber(i)
		plan.Units = append(plan.Units, Unit{
			Label: fmt.Sprintf("Chapter %d", chapter),
			Text: strings.Join([]string{
				fmt.Sprintf("📄 Chapter %d", chapter),
				"File: " + ref.Filename,
				"Size: " + textutil.FormatMB(ref.SizeBytes),
			}, "\n"),
		})
		plan.Artifacts = append(plan.Artifacts, ArtifactStep{Chapter: chapter, Ref: ref})
	}

	closing := []string{
		"✅ All set!",
		divider,
		"📚 " + result.Title,
		fmt.Sprintf("📑 %d chapter PDFs", len(result.PDFFiles)),
		"💾 Total size: " + totalSize,
		"",
		"⚠️ PDFs are sent individually below",
	}
	plan.Units = append(plan.Units, Unit{Label: "📥 Download notice", Text: strings.Join(closing, "\n"), Mention: true})
	return plan
}

func chapterHeader(step ArtifactStep, size int64) string {
	return fmt.Sprintf("📄 Chapter %d (%s)", step.Chapter, textutil.FormatMB(size))
}

func missingNotice(step ArtifactStep) string {
	return fmt.Sprintf("❌ Chapter %d file is missing", step.Chapter)
}

func sendFailedNotice(step ArtifactStep, err error) string {
	return fmt.Sprintf("❌ Chapter %d failed to send: %v", step.Chapter, err)
}

func completionNotice(title string, sent, total int) string {
	return strings.Join([]string{
		"✅ All files sent!",
		"📚 " + title,
		fmt.Sprintf("📑 Sent %d/%d chapter PDFs", sent, total),
	}, "\n")
}
