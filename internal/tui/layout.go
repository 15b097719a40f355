package tui

type panelDimensions struct {
	tableRows    int
	activityRows int
}

const (
	minWidth  = 40
	minHeight = 12

	// header, blank, counters, status, blank, table title, column header
	fixedAboveTable = 7

	maxActivityRows = 5
)

// computeDimensions splits the vertical space between the daily table and
// the activity list. The table always keeps at least three rows.
func computeDimensions(totalW, totalH int) panelDimensions {
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{activityRows: maxActivityRows}

	// blank line and title above the activity list
	usable := totalH - fixedAboveTable - 2
	if usable-d.activityRows < 3 {
		d.activityRows = max(0, usable-3)
	}
	d.tableRows = max(3, usable-d.activityRows)
	return d
}

func clampWidth(w int) int {
	if w < minWidth {
		return minWidth
	}
	return w
}
