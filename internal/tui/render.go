package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/jacinta/internal/task"
)

// RenderSummaries renders the `task list` table.
func RenderSummaries(s Styles, tasks []task.Summary) string {
	if len(tasks) == 0 {
		return s.Muted.Render("No tasks.")
	}

	idWidth, titleWidth := len("ID"), len("TITLE")
	for _, t := range tasks {
		idWidth = max(idWidth, len(t.ID))
		titleWidth = max(titleWidth, lipgloss.Width(t.Title))
	}

	var b strings.Builder
	row := func(id, title, status string) {
		fmt.Fprintf(&b, "%-*s  %-*s  %s\n", idWidth, id, titleWidth, title, status)
	}
	row("ID", "TITLE", "STATUS")
	for _, t := range tasks {
		title := t.Title + strings.Repeat(" ", titleWidth-lipgloss.Width(t.Title))
		fmt.Fprintf(&b, "%-*s  %s  %s\n", idWidth, t.ID, title,
			s.ForStatus(t.Status).Render(statusIcon(t.Status)+" "+string(t.Status)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTask renders the `task show` view including every job.
func RenderTask(s Styles, t *task.Task) string {
	var b strings.Builder

	b.WriteString(s.Title.Render(t.Title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", s.Muted.Render("ID:     "), t.ID)
	fmt.Fprintf(&b, "%s %s\n", s.Muted.Render("Status: "),
		s.ForStatus(t.Status).Render(statusIcon(t.Status)+" "+string(t.Status)))
	done, total := t.Progress()
	fmt.Fprintf(&b, "%s %d/%d jobs\n", s.Muted.Render("Progress:"), done, total)
	if t.Attempts > 0 {
		fmt.Fprintf(&b, "%s %d\n", s.Muted.Render("Attempts:"), t.Attempts)
	}
	if t.LastError != "" {
		b.WriteString(s.Error.Render("Last error: ") + t.LastError + "\n")
	}
	b.WriteString("\n" + t.Description + "\n")

	if len(t.Jobs) == 0 {
		b.WriteString("\n" + s.Muted.Render("Not planned yet."))
		return b.String()
	}

	b.WriteString("\n" + s.Header.Render("Jobs") + "\n")
	for i, j := range t.Jobs {
		mark := s.Pending.Render("[ ]")
		if j.Completed {
			mark = s.Completed.Render("[✓]")
		}
		fmt.Fprintf(&b, "%s %d. %-8s %s\n", mark, i+1, j.Type, j.Description)
		if j.Completed && j.Result != "" {
			for _, line := range strings.Split(j.Result, "\n") {
				b.WriteString("       " + s.Muted.Render(line) + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProgressBar renders done/total as a fixed-width bar.
func ProgressBar(done, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
