package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/tally/internal/activity"
	"github.com/nixlim/tally/internal/tracker"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	d := m.dims()

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n\n")
	sb.WriteString(m.renderCounters())
	sb.WriteByte('\n')
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")
	sb.WriteString(m.renderTable(d.tableRows))
	if d.activityRows > 0 {
		sb.WriteByte('\n')
		sb.WriteString(m.renderActivity(d.activityRows))
	}
	return sb.String()
}

func (m Model) headerIndicators() string {
	var parts []string
	if !m.isPersistent {
		parts = append(parts, "[memory]")
	}
	if m.st.Pending > 0 {
		parts = append(parts, fmt.Sprintf("[%d pending]", m.st.Pending))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func (m Model) renderHeader() string {
	width := clampWidth(m.width)
	title := " tally"
	if !m.st.Today.IsZero() {
		title += "  " + m.st.Today.MDY()
	}
	indicators := m.headerIndicators()
	help := "1:t1 2:t2 e:Export r:Refresh q:Quit "
	padding := width - lipgloss.Width(title) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}
	return headerStyle.Width(width).Render(title + indicators + strings.Repeat(" ", padding) + help)
}

func (m Model) renderCounters() string {
	return fmt.Sprintf("  Today   %s %s   %s %s",
		dimStyle.Render("t1"), t1Style.Render(fmt.Sprintf("%d", m.st.Totals.T1)),
		dimStyle.Render("t2"), t2Style.Render(fmt.Sprintf("%d", m.st.Totals.T2)))
}

func (m Model) renderStatus() string {
	var line string
	switch m.st.Status {
	case tracker.StatusError:
		if m.st.Err == tracker.MsgNotLoggedIn {
			line = errorStyle.Render(m.st.Err) + dimStyle.Render("  run `tally login <user-id>`")
		} else {
			line = errorStyle.Render("Error: " + m.st.Err)
		}
	case tracker.StatusLoading:
		line = busyStyle.Render("Loading...")
	case tracker.StatusSaving:
		line = busyStyle.Render("Saving...")
	default:
		if m.message != "" {
			line = okStyle.Render(m.message)
		} else {
			line = dimStyle.Render("Ready")
		}
	}
	if m.st.Truncated {
		line += dimStyle.Render("  (older events beyond the read limit are not counted)")
	}
	return "  " + line
}

func (m Model) renderTable(rows int) string {
	var sb strings.Builder
	sb.WriteString(panelTitleStyle.Render("  Daily"))
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s %5s %5s %6s", "Date", "t1", "t2", "total")))

	if len(m.st.Series) == 0 {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  No days to show"))
		return sb.String()
	}

	start := m.clampScroll(m.tableScroll)
	end := min(len(m.st.Series), start+rows)
	for _, b := range m.st.Series[start:end] {
		line := fmt.Sprintf("  %-12s %5d %5d %6d", b.Day.MDY(), b.T1, b.T2, b.Total())
		if b.Day == m.st.Today {
			line = todayRowStyle.Render(line)
		}
		sb.WriteByte('\n')
		sb.WriteString(line)
	}
	if end < len(m.st.Series) {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(m.st.Series)-end)))
	}
	return sb.String()
}

func (m Model) renderActivity(rows int) string {
	var sb strings.Builder
	sb.WriteByte('\n')
	sb.WriteString(panelTitleStyle.Render("  Recent"))

	var entries []activity.Entry
	if m.activity != nil {
		entries = m.activity.Recent(rows)
	}
	if len(entries) == 0 {
		sb.WriteByte('\n')
		sb.WriteString(dimStyle.Render("  Nothing logged this session"))
		return sb.String()
	}
	for _, e := range entries {
		sb.WriteByte('\n')
		sb.WriteString(formatEntry(e))
	}
	return sb.String()
}

func formatEntry(e activity.Entry) string {
	subject := e.EventID
	if e.Kind.Valid() {
		subject = e.Kind.String()
		if !e.Day.IsZero() {
			subject += " " + e.Day.MDY()
		}
	}
	line := fmt.Sprintf("  %s  %-6s %-16s", e.At.Format("15:04:05"), e.Action, subject)
	if e.OK() {
		return line + okStyle.Render(" ok")
	}
	return line + errorStyle.Render(" failed: "+e.Err)
}
