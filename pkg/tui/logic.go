package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"nftview/pkg/coordinator"
	"nftview/pkg/models"
	"nftview/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const cardWidth = 30

func listenForEvents(sub coordinator.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func initializeCmd(ctx context.Context, c *coordinator.Coordinator) tea.Cmd {
	return func() tea.Msg {
		c.Initialize(ctx)
		return nil
	}
}

func refreshCmd(ctx context.Context, c *coordinator.Coordinator) tea.Cmd {
	return func() tea.Msg {
		c.Refresh(ctx)
		return nil
	}
}

func searchCmd(ctx context.Context, c *coordinator.Coordinator, scope string) tea.Cmd {
	return func() tea.Msg {
		c.Search(ctx, scope)
		return nil
	}
}

// gridColumns is how many token cards fit side by side.
func gridColumns(width int) int {
	cols := (width - 4) / (cardWidth + 2)
	if cols < 1 {
		return 1
	}
	return cols
}

// moveCursor returns the new grid position after key, clamped to n items.
func moveCursor(cursor, n, cols int, key string) int {
	if n == 0 {
		return 0
	}
	switch key {
	case "left", "h":
		cursor--
	case "right", "l", "tab":
		cursor++
	case "up", "k":
		cursor -= cols
	case "down", "j":
		cursor += cols
	case "home":
		cursor = 0
	case "end":
		cursor = n - 1
	}
	if cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}

func otherView(v models.ViewKind) models.ViewKind {
	if v == models.ViewOwner {
		return models.ViewCollection
	}
	return models.ViewOwner
}

// tokenStatusText describes the committed token listing for the status line.
func tokenStatusText(s coordinator.State) string {
	switch s.Tokens.Status {
	case models.StatusOK:
		n := len(s.Tokens.Tokens)
		if n == 1 {
			return "1 token"
		}
		return fmt.Sprintf("%s tokens", utils.AddCommas(fmt.Sprint(n)))
	case models.StatusEmpty:
		return "No tokens found"
	case models.StatusFailed:
		return "Request failed: " + s.Tokens.Reason
	}
	if s.Loading {
		return "Loading..."
	}
	return "Idle"
}

func historyStatusText(h models.HistoryList) string {
	switch h.Status {
	case models.StatusOK:
		return fmt.Sprintf("%d transfers", len(h.Events))
	case models.StatusEmpty:
		return "No transfers found"
	case models.StatusFailed:
		return "Request failed: " + h.Reason
	}
	return "Not loaded"
}

// historyRows caps the table to the newest limit events.
func historyRows(events []models.TransferEvent, limit int) []models.TransferEvent {
	rows := append([]models.TransferEvent{}, events...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].BlockNumber > rows[j].BlockNumber
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// historySeries is the transfer values in ether, oldest first.
func historySeries(events []models.TransferEvent) []float64 {
	rows := append([]models.TransferEvent{}, events...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].BlockNumber < rows[j].BlockNumber
	})
	series := make([]float64, 0, len(rows))
	for _, ev := range rows {
		series = append(series, ev.Ether().InexactFloat64())
	}
	return series
}

func displayName(rec models.TokenRecord) string {
	if name := strings.TrimSpace(rec.Metadata.Name); name != "" {
		return name
	}
	return "Unnamed"
}

func (m model) selectedToken() (models.TokenRecord, bool) {
	tokens := m.state.Tokens.Tokens
	if m.cursor < 0 || m.cursor >= len(tokens) {
		return models.TokenRecord{}, false
	}
	return tokens[m.cursor], true
}

func (m model) selectedEvent() (models.TransferEvent, bool) {
	rows := historyRows(m.state.History.Events, m.cfg.HistoryLimit)
	if m.historyIdx < 0 || m.historyIdx >= len(rows) {
		return models.TransferEvent{}, false
	}
	return rows[m.historyIdx], true
}

func (m *model) updateDetailViewport() {
	rec, ok := m.selectedToken()
	if !ok {
		m.viewport.SetContent("No token selected.")
		return
	}

	md := rec.Metadata
	orNone := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return subtleStyle.Render("(none)")
		}
		return s
	}

	lines := []string{
		fmt.Sprintf("Name:         %s", orNone(md.Name)),
		fmt.Sprintf("Owner:        %s", rec.Owner),
		fmt.Sprintf("Token URI:    %s", orNone(rec.TokenURI)),
		fmt.Sprintf("Image:        %s", orNone(utils.ResolveURI(md.Image, m.cfg.IPFSGateway))),
		fmt.Sprintf("External URL: %s", orNone(md.ExternalURL)),
	}
	if md.IsEmpty() {
		lines = append(lines, "", subtleStyle.Render("No metadata could be loaded for this token."))
	}
	if md.Description != "" {
		w := m.viewport.Width
		if w <= 0 {
			w = 60
		}
		lines = append(lines, "", lipgloss.NewStyle().Width(w).Render(md.Description))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// syncState pulls a fresh snapshot and keeps cursors in range.
func (m *model) syncState() {
	m.state = m.coord.Snapshot()
	if n := len(m.state.Tokens.Tokens); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if n := len(historyRows(m.state.History.Events, m.cfg.HistoryLimit)); m.historyIdx >= n {
		m.historyIdx = n - 1
	}
	if m.historyIdx < 0 {
		m.historyIdx = 0
	}
}
