// Package report renders human-readable run and bench summaries.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/regenrek/termflow/internal/pipeline"
)

// Row is one label/value line. Warn highlights the value.
type Row struct {
	Label string
	Value string
	Warn  bool
}

// Render lays rows out as an aligned two-column box under a title.
func Render(title string, rows []Row) string {
	width := 0
	for _, row := range rows {
		width = max(width, lipgloss.Width(row.Label))
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		value := Value.Render(row.Value)
		if row.Warn {
			value = Alert.Render(row.Value)
		}
		lines = append(lines, Label.Width(width+2).Render(row.Label)+value)
	}
	body := Box.Render(strings.Join(lines, "\n"))
	if title == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, Title.Render(title), body)
}

// PipelineRows formats a snapshot. Rows that indicate pressure are flagged.
func PipelineRows(s pipeline.Snapshot, underStress bool, limits pipeline.Config) []Row {
	lastTrim := "never"
	if !s.LastGCTime.IsZero() {
		lastTrim = s.LastGCTime.Local().Format(time.TimeOnly)
	}
	memWarn := float64(limits.Memory.MaxMemoryMB) * limits.Memory.WarningThreshold
	return []Row{
		{Label: "buffer lines", Value: fmt.Sprintf("%d / %d", s.BufferLines, limits.Buffer.MaxLines)},
		{Label: "memory", Value: fmt.Sprintf("%.2f MB / %d MB", s.MemoryUsageMB, limits.Memory.MaxMemoryMB), Warn: s.MemoryUsageMB > memWarn},
		{Label: "throttled", Value: yesNo(s.Throttled), Warn: s.Throttled},
		{Label: "queued", Value: fmt.Sprintf("%d chunks, %s", s.QueuedCount, humanBytes(s.QueuedBytes))},
		{Label: "dropped frames", Value: fmt.Sprintf("%d", s.DroppedFrames)},
		{Label: "trims", Value: fmt.Sprintf("%d (last %s)", s.Trims, lastTrim)},
		{Label: "memory warnings", Value: fmt.Sprintf("%d", s.Warnings), Warn: s.Warnings > 0},
		{Label: "under stress", Value: yesNo(underStress), Warn: underStress},
	}
}

// Status renders a one-word outcome, green for success.
func Status(ok bool, text string) string {
	if ok {
		return Good.Render(text)
	}
	return Alert.Render(text)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
