package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"nftview/pkg/models"
	"nftview/pkg/utils"
)

const cardHeight = 5

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	if m.restoringBackup {
		return lipgloss.Place(
			m.width,
			m.height,
			lipgloss.Center,
			lipgloss.Center,
			boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
				titleStyle.Render("Confirm Restore"),
				"\n",
				"Are you sure you want to restore the last backup?",
				"Current configuration will be overwritten.",
				"\n",
				subtleStyle.Render("(y) Yes • (n) No"),
			)),
		)
	}

	if m.searching {
		return lipgloss.Place(
			m.width,
			m.height,
			lipgloss.Center,
			lipgloss.Center,
			boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
				titleStyle.Render(fmt.Sprintf("Search %s", viewLabel(m.state.View))),
				"\n",
				m.searchInput.View(),
				"\n",
				m.statusLine(),
				subtleStyle.Render("Enter to search • Esc to cancel"),
			)),
		)
	}

	if m.showDetail {
		return m.viewDetail()
	}

	if m.showHistory {
		if m.showGraph {
			return m.viewHistoryGraph()
		}
		return m.viewHistory()
	}

	targetWidth := m.width - 4
	if targetWidth < cardWidth+4 {
		targetWidth = cardWidth + 4
	}

	title := fmt.Sprintf("NFT Viewer - %s", viewLabel(m.state.View))
	header := titleStyle.Render(title)
	scope := fmt.Sprintf("Scope: %s", m.state.Scope)
	if m.state.Scope == "" {
		scope = "Scope: (none) • press / to search"
	}

	var body string
	switch {
	case len(m.state.Tokens.Tokens) > 0:
		body = m.renderGrid()
	case m.state.Loading:
		body = "Loading tokens..."
	case m.state.Tokens.Status == models.StatusFailed:
		body = lipgloss.JoinVertical(lipgloss.Center,
			errStyle.Render("Error fetching tokens:"),
			m.state.Tokens.Reason,
		)
	default:
		body = subtleStyle.Render("No tokens to show")
	}

	content := boxStyle.Width(targetWidth).Align(lipgloss.Center).Render(
		lipgloss.JoinVertical(lipgloss.Center, header, scope, m.statusLine(), "\n", body),
	)

	// Footer
	line1 := "/:search • v:view • r:ref • ent:dt • H:hist • c:cpy • o:img • ?:hlp • q:quit"
	line2 := fmt.Sprintf("S:save • B:bak • arrows:move • v%s", Version)

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}

	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	h := m.height - 1
	if h < 0 {
		h = 0
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.topBar(),
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

func viewLabel(v models.ViewKind) string {
	if v == models.ViewOwner {
		return "Owner"
	}
	return "Collection"
}

func (m model) topBar() string {
	left := subtleStyle.Render(fmt.Sprintf(" %s • %s", viewLabel(m.state.View), utils.CropMiddle(m.state.Scope, 6, 4)))

	spinnerView := ""
	if m.state.Loading {
		spinnerView = m.spinner.View() + " "
	}
	updated := "never"
	if !m.lastUpdate.IsZero() {
		updated = m.lastUpdate.Format("15:04:05")
	}
	right := subtleStyle.Render(fmt.Sprintf("%sLast updated: %s ", spinnerView, updated))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), right)
}

func (m model) statusLine() string {
	text := tokenStatusText(m.state)
	switch m.state.Tokens.Status {
	case models.StatusOK:
		return infoStyle.Render(text)
	case models.StatusFailed:
		return errStyle.Render(text)
	case models.StatusEmpty:
		return warnStyle.Render(text)
	}
	return subtleStyle.Render(text)
}

func (m model) renderCard(i int, rec models.TokenRecord) string {
	name := utils.TruncateString(displayName(rec), cardWidth-4)
	owner := fmt.Sprintf("Owner: %s", utils.CropMiddle(rec.Owner, 6, 4))
	meta := infoStyle.Render("metadata ✓")
	if rec.Metadata.IsEmpty() {
		meta = subtleStyle.Render("no metadata")
	} else if rec.Metadata.Image == "" {
		meta = warnStyle.Render("no image")
	}

	style := cardStyle
	if i == m.cursor {
		style = selectedCardStyle
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lipgloss.NewStyle().Bold(true).Render(name), owner, meta))
}

func (m model) renderGrid() string {
	tokens := m.state.Tokens.Tokens
	cols := gridColumns(m.width)

	visibleRows := (m.height - 12) / cardHeight
	if visibleRows < 1 {
		visibleRows = 1
	}
	cursorRow := m.cursor / cols
	firstRow := 0
	if cursorRow >= visibleRows {
		firstRow = cursorRow - visibleRows + 1
	}

	var rows []string
	for r := firstRow; r < firstRow+visibleRows; r++ {
		start := r * cols
		if start >= len(tokens) {
			break
		}
		end := start + cols
		if end > len(tokens) {
			end = len(tokens)
		}
		var cards []string
		for i := start; i < end; i++ {
			cards = append(cards, m.renderCard(i, tokens[i]))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	pos := subtleStyle.Render(fmt.Sprintf("%d/%d", m.cursor+1, len(tokens)))
	return lipgloss.JoinVertical(lipgloss.Center, append(rows, pos)...)
}

func (m model) viewDetail() string {
	rec, _ := m.selectedToken()
	header := titleStyle.Render(fmt.Sprintf("Token: %s", displayName(rec)))

	footer := subtleStyle.Render("c: copy owner • o: open image • Press 'enter' or 'esc' to return")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", m.viewport.View()))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func (m model) viewHistory() string {
	header := titleStyle.Render(fmt.Sprintf("Transfers: %s", utils.CropMiddle(m.state.Scope, 6, 4)))
	status := subtleStyle.Render(historyStatusText(m.state.History))
	if m.state.History.Status == models.StatusFailed {
		status = errStyle.Render(historyStatusText(m.state.History))
	}

	rows := historyRows(m.state.History.Events, m.cfg.HistoryLimit)
	if len(rows) == 0 {
		content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", status))
		footer := subtleStyle.Render("r: refresh • q/esc: back")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
	}

	format := "%-9s %-19s %-8s %-13s %-13s %-8s %14s %-13s"
	headers := tableHeaderStyle.Render(fmt.Sprintf(format, "BLOCK", "TIME", "TOKEN", "FROM", "TO", "TAG", "VALUE (ETH)", "TX"))

	visible := m.height - 12
	if visible < 1 {
		visible = 1
	}
	first := 0
	if m.historyIdx >= visible {
		first = m.historyIdx - visible + 1
	}

	var lines []string
	for i := first; i < len(rows) && i < first+visible; i++ {
		ev := rows[i]
		line := fmt.Sprintf(format,
			utils.AddCommas(fmt.Sprint(ev.BlockNumber)),
			utils.FormatTimestamp(ev.Timestamp),
			utils.TruncateString(ev.TokenID, 8),
			utils.CropMiddle(ev.FromAddr, 6, 4),
			utils.CropMiddle(ev.ToAddr, 6, 4),
			utils.TruncateString(ev.Tag, 8),
			utils.FormatEther(ev.Value, m.cfg.EtherDecimals),
			utils.CropMiddle(ev.TxHash, 6, 4),
		)
		if i == m.historyIdx {
			line = selectedRowStyle.Render(line)
		}
		lines = append(lines, " "+line)
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, status, "\n", headers, strings.Join(lines, "\n")))
	footer := subtleStyle.Render("↑/↓: move • c: copy tx hash • g: chart • r: refresh • q/esc: back")
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewHistoryGraph() string {
	header := titleStyle.Render("Transfer Values")
	series := historySeries(m.state.History.Events)

	var graph string
	if len(series) > 0 {
		width := m.width - 20
		if width < 10 {
			width = 10
		}
		height := m.height - 12
		if height < 1 {
			height = 1
		}
		graph = asciigraph.Plot(series,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption("Transfer value (ETH), oldest first"),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", graph))
	footer := subtleStyle.Render("g: table • q/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewHelp() string {
	var title string
	var shortcuts []string

	if m.showDetail {
		title = "Detail View"
		shortcuts = []string{"↑/k: Scroll Up", "↓/j: Scroll Down", "c: Copy Owner", "o: Open Image", "enter/esc/q: Close"}
	} else if m.showHistory {
		title = "Transfer History"
		shortcuts = []string{"↑/k: Up", "↓/j: Down", "c: Copy Tx Hash", "g: Toggle Chart", "r: Refresh", "H/q/esc: Back"}
	} else {
		title = "Main View"
		shortcuts = []string{
			"/: Search Address",
			"v: Toggle Collection/Owner",
			"r: Refresh",
			"arrows/hjkl: Move",
			"enter: Token Details",
			"H: Transfer History",
			"c: Copy Owner Address",
			"o: Open Image",
			"S: Save Scope to Config",
			"B: Restore Backup",
			"q: Quit",
			"?: Toggle Help",
		}
	}

	header := titleStyle.Render(fmt.Sprintf("Help: %s", title))
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
