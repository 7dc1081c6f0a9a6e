package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tidwall/pretty"

	"github.com/fpang/social-graph-bridge/internal/profiler"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("9"))
)

// FormatDurationMs formats a duration as milliseconds with one decimal.
func FormatDurationMs(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}

// ProfileTable renders profiles as a table, one row per Graph call, with a
// totals line underneath.
func ProfileTable(profiles []profiler.Profile) string {
	if len(profiles) == 0 {
		return "No Graph calls recorded\n"
	}

	var total time.Duration
	rows := make([][]string, 0, len(profiles))
	failed := make(map[int]bool)
	for i, p := range profiles {
		duration, code, outcome := "-", "-", "in flight"
		if p.Duration != nil {
			duration = FormatDurationMs(*p.Duration)
			total += *p.Duration
		}
		if p.Code != nil {
			code = strconv.Itoa(*p.Code)
		}
		if p.Completed() {
			outcome = p.Outcome.String()
			failed[i] = p.Outcome != profiler.OutcomeResponse
		}
		request := ""
		if p.Request != nil {
			request = p.Request.String()
		}
		rows = append(rows, []string{strconv.Itoa(p.ID), request, code, outcome, duration})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "REQUEST", "CODE", "OUTCOME", "DURATION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case failed[row]:
				return failStyle
			default:
				return cellStyle
			}
		})

	return fmt.Sprintf("%s\n%d calls, %s total\n", t.String(), len(profiles), FormatDurationMs(total))
}

// PrintJSON writes body indented, colored when color is set.
func PrintJSON(w io.Writer, body []byte, color bool) error {
	out := pretty.Pretty(body)
	if color {
		out = pretty.Color(out, nil)
	}
	_, err := w.Write(out)
	return err
}
