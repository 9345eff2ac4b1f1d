package components

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kerbaras/bukadown/pkg/app/styles"
	"github.com/kerbaras/bukadown/pkg/services"
)

// maxErrors is how many recent failures the tracker keeps on screen.
const maxErrors = 5

// stageOrder is the order stages run in and are displayed.
var stageOrder = []string{
	services.StageCopy,
	services.StageExtract,
	services.StageDecode,
	services.StageClassify,
	services.StageRename,
}

// ProgressTracker keeps the latest event of every stage of a run.
type ProgressTracker struct {
	stages map[string]services.Event
	errors []string
	failed int
	done   bool
	width  int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		stages: make(map[string]services.Event),
		width:  width,
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

func (p *ProgressTracker) Update(ev services.Event) {
	if ev.Stage == services.StageDone {
		p.done = true
		return
	}
	if ev.Err != nil {
		p.failed++
		p.errors = append(p.errors, fmt.Sprintf("%s: %s", filepath.Base(ev.Path), ev.Err))
		if len(p.errors) > maxErrors {
			p.errors = p.errors[len(p.errors)-maxErrors:]
		}
	}
	p.stages[ev.Stage] = ev
}

func (p *ProgressTracker) Clear() {
	p.stages = make(map[string]services.Event)
	p.errors = nil
	p.failed = 0
	p.done = false
}

// HasActive reports whether a run has reported progress and not finished.
func (p *ProgressTracker) HasActive() bool {
	return len(p.stages) > 0 && !p.done
}

func (p *ProgressTracker) Done() bool {
	return p.done
}

// Failed is the number of events that carried an error.
func (p *ProgressTracker) Failed() int {
	return p.failed
}

func (p *ProgressTracker) View() string {
	if len(p.stages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Progress"))
	b.WriteString("\n\n")

	for _, stage := range stageOrder {
		ev, ok := p.stages[stage]
		if !ok {
			continue
		}

		status := "processing"
		if p.done || (ev.Total > 0 && ev.Done >= ev.Total) {
			status = "completed"
		}
		text := stage
		if ev.Total > 0 {
			percentage := float64(ev.Done) / float64(ev.Total) * 100
			text = fmt.Sprintf("%s (%d/%d - %.0f%%)", stage, ev.Done, ev.Total, percentage)
		}
		b.WriteString(styles.StatusStyle(status).Render(text))
		b.WriteString("\n")
		if ev.Total > 0 {
			b.WriteString(renderProgressBar(ev.Done, ev.Total, p.width-4))
			b.WriteString("\n")
		}
		if ev.Path != "" {
			b.WriteString(styles.MutedStyle.Render(truncate(ev.Path, p.width-4)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if p.failed > 0 {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("%d failures", p.failed)))
		b.WriteString("\n")
		for _, msg := range p.errors {
			b.WriteString(styles.StatusError.Render("  " + truncate(msg, p.width-6)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// SimpleProgress renders a bare progress bar.
func SimpleProgress(current, total, width int) string {
	return renderProgressBar(current, total, width)
}
