// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/logger"
	"github.com/jonathan/cv-ranker/internal/ranking"
	"github.com/jonathan/cv-ranker/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

var (
	titleColor    = color.New(color.FgCyan, color.Bold).SprintFunc()
	degradedColor = color.New(color.FgYellow).SprintFunc()
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", titleColor(pad(title, inner)))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		if utf8.RuneCountInString(line) > inner {
			line = logger.Truncate(line, inner-3)
		}
		line = pad(line, inner)
		if strings.HasPrefix(strings.TrimSpace(line), "! ") {
			line = degradedColor(line)
		}
		fmt.Fprintf(p.out, "│ %s │\n", line)
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s to width runes; %-*s counts bytes, which misaligns accents
func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func joinShort(items []string, limit int) string {
	if len(items) == 0 {
		return "-"
	}
	return logger.Truncate(strings.Join(items, ", "), limit)
}

// PrintRequirement outputs the requirement being ranked against
func (p *Printer) PrintRequirement(req types.Requirement) {
	var sb strings.Builder
	if req.ID != "" {
		sb.WriteString(fmt.Sprintf("ID:       %s\n", req.ID))
	}
	sb.WriteString(fmt.Sprintf("Skills:   %s\n", joinShort(req.RequiredSkills, 50)))
	sb.WriteString(fmt.Sprintf("Years:    %g\n", req.RequiredYears))
	sb.WriteString(fmt.Sprintf("Text:     %s", logger.Truncate(strings.ReplaceAll(req.Text.String(), "\n", " "), 50)))

	p.printBox("REQUIREMENT", sb.String())
}

// PrintRankedResults outputs the top ranked candidates with score breakdowns
func (p *Printer) PrintRankedResults(results []types.RankedResult) {
	if len(results) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total candidates ranked: %d\n\n", len(results)))

	count := min(len(results), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := results[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", r.Rank, r.CandidateID))
		sb.WriteString(fmt.Sprintf("    Score: %.2f (text %.2f, skills %.2f, exp %.2f)\n",
			r.Score.Composite, r.Score.TextSimilarity, r.Score.SkillOverlap, r.Score.ExperienceScore))
		sb.WriteString(fmt.Sprintf("    Matched: %s\n", joinShort(r.MatchedSkills, 50)))
		if len(r.MissingSkills) > 0 {
			sb.WriteString(fmt.Sprintf("    Missing: %s\n", joinShort(r.MissingSkills, 50)))
		}
		if len(r.Justification) > 0 {
			j := r.Justification[0]
			sb.WriteString(fmt.Sprintf("    Why: %s (%.2f)\n", logger.Truncate(j.ChunkText, 45), j.Relevance))
		}
		for _, d := range r.Degraded {
			sb.WriteString(fmt.Sprintf("    ! %s\n", d))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(results) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more\n", len(results)-maxItemsToShow))
	}

	p.printBox("RANKED CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary outputs aggregate figures of a ranking run
func (p *Printer) PrintSummary(runID string, s ranking.Summary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", runID))
	sb.WriteString(fmt.Sprintf("Ranked:    %d\n", s.Count))
	if s.Count > 0 {
		sb.WriteString(fmt.Sprintf("Top:       %s (%.2f)\n", s.TopCandidateID, s.TopComposite))
		sb.WriteString(fmt.Sprintf("Mean:      %.2f\n", s.MeanComposite))
	}
	sb.WriteString(fmt.Sprintf("Degraded:  %d", s.Degraded))

	p.printBox("RUN SUMMARY", sb.String())
}

// PrintCacheStats outputs cache occupancy
func (p *Printer) PrintCacheStats(s cache.Stats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Backend:   %s\n", s.Backend))
	sb.WriteString(fmt.Sprintf("Entries:   %d\n", s.EntryCount))
	sb.WriteString(fmt.Sprintf("Size:      %s\n", formatBytes(s.TotalSize)))
	sb.WriteString(fmt.Sprintf("TTL:       %s", s.TTL))

	p.printBox("CACHE", sb.String())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
