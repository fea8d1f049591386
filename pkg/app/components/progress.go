package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/kerbaras/mangas-dl/pkg/app/styles"
	"github.com/kerbaras/mangas-dl/pkg/services"
)

const minBarWidth = 10

// ProgressTracker keeps the latest state of a download session and renders
// it as a progress bar with the current chapter.
type ProgressTracker struct {
	current *services.DownloadProgress
	bar     progress.Model
	width   int
}

func NewProgressTracker(width int) *ProgressTracker {
	p := &ProgressTracker{
		bar: progress.New(progress.WithDefaultGradient()),
	}
	p.SetWidth(width)
	return p
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
	p.bar.Width = max(width-4, minBarWidth)
}

func (p *ProgressTracker) Update(update services.DownloadProgress) {
	prog := update // Copy
	if prog.ChapterName == "" && p.current != nil && prog.Status != services.StatusPreparing {
		prog.ChapterName = p.current.ChapterName
		if prog.Chapter == 0 {
			prog.Chapter = p.current.Chapter
		}
	}
	p.current = &prog
}

// HasActive reports whether a session is running, i.e. it has started and
// not reached a final status.
func (p *ProgressTracker) HasActive() bool {
	if p.current == nil {
		return false
	}
	return !IsFinal(p.current.Status)
}

// Percent is the share of pages done, 0 while the total is unknown.
func (p *ProgressTracker) Percent() float64 {
	if p.current == nil || p.current.Total <= 0 {
		return 0
	}
	return min(float64(p.current.Done)/float64(p.current.Total), 1)
}

func (p *ProgressTracker) View() string {
	if p.current == nil {
		return ""
	}
	cur := p.current

	var b strings.Builder
	switch {
	case cur.ChapterName != "" && cur.Chapters > 0:
		fmt.Fprintf(&b, "%s %s\n", styles.LabelStyle.Render(fmt.Sprintf("Chapter %d/%d:", cur.Chapter, cur.Chapters)), styles.TextStyle.Render(cur.ChapterName))
	case cur.Chapters > 0:
		fmt.Fprintf(&b, "%s\n", styles.LabelStyle.Render(fmt.Sprintf("%d chapters", cur.Chapters)))
	}

	b.WriteString(p.bar.ViewAs(p.Percent()))
	b.WriteString("\n")

	statusText := cur.Status
	if cur.Total > 0 {
		statusText = fmt.Sprintf("%s (%d/%d pages)", cur.Status, cur.Done, cur.Total)
	}
	b.WriteString(styles.StatusStyle(cur.Status).Render(statusText))
	b.WriteString("\n")

	if cur.Error != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", cur.Error)))
		b.WriteString("\n")
	}
	return b.String()
}

// IsFinal reports whether status ends a session.
func IsFinal(status string) bool {
	switch status {
	case services.StatusComplete, services.StatusError, services.StatusCancelled:
		return true
	}
	return false
}
