package tui

import (
	"fmt"
	"time"

	"nftview/pkg/config"
	"nftview/pkg/coordinator"
	"nftview/pkg/models"
	"nftview/pkg/utils"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 10
		m.viewport.Height = msg.Height - 10
		if m.showDetail {
			m.updateDetailViewport()
		}

	case coordinator.Event:
		cmds = append(cmds, listenForEvents(m.sub))
		m.syncState()
		m.lastUpdate = time.Now()
		if msg.Type == coordinator.EventTokensUpdated && m.state.Tokens.Status == models.StatusFailed {
			m.statusMessage = "Token request failed"
			cmds = append(cmds, clearStatusAfter(3*time.Second))
		}
		if m.showDetail {
			m.updateDetailViewport()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case clearStatusMsg:
		m.statusMessage = ""

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.searching {
		switch key {
		case "esc":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		case "enter":
			scope, err := utils.NormalizeAddress(m.searchInput.Value())
			if err != nil {
				m.statusMessage = fmt.Sprintf("Invalid address: %s", m.searchInput.Value())
				return m, clearStatusAfter(3 * time.Second)
			}
			m.searching = false
			m.searchInput.Blur()
			m.cfg.SetScope(m.state.View, scope)
			m.cursor, m.historyIdx = 0, 0
			return m, searchCmd(m.ctx, m.coord, scope)
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	if key == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if key == "q" || key == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if m.restoringBackup {
		switch key {
		case "y", "Y", "enter":
			m.restoringBackup = false
			return m.restoreBackup()
		case "n", "N", "q", "esc":
			m.restoringBackup = false
		}
		return m, nil
	}

	if m.showDetail {
		switch key {
		case "q", "esc", "enter", "backspace":
			m.showDetail = false
			return m, nil
		case "c":
			return m.copySelectedOwner()
		case "o":
			return m.openSelectedImage()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.showHistory {
		switch key {
		case "q", "esc", "H":
			m.showHistory = false
			m.showGraph = false
			return m, nil
		case "g":
			m.showGraph = !m.showGraph
			return m, nil
		case "up", "k":
			if m.historyIdx > 0 {
				m.historyIdx--
			}
		case "down", "j":
			if m.historyIdx < len(historyRows(m.state.History.Events, m.cfg.HistoryLimit))-1 {
				m.historyIdx++
			}
		case "c":
			if ev, ok := m.selectedEvent(); ok {
				m.statusMessage = copyStatus(clipboard.WriteAll(ev.TxHash), "Transaction hash")
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		case "r":
			m.statusMessage = "Refreshing..."
			cmds = append(cmds, refreshCmd(m.ctx, m.coord), clearStatusAfter(2*time.Second))
		}
		return m, tea.Batch(cmds...)
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "/":
		m.searching = true
		m.searchInput.SetValue(m.state.Scope)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()
	case "r":
		m.statusMessage = "Refreshing..."
		cmds = append(cmds, refreshCmd(m.ctx, m.coord), clearStatusAfter(2*time.Second))
	case "v":
		next := otherView(m.state.View)
		if err := m.coord.SetView(next); err != nil {
			m.statusMessage = err.Error()
			return m, clearStatusAfter(2 * time.Second)
		}
		m.cfg.View = next
		m.coord.SetScope(m.cfg.Scope())
		m.cursor, m.historyIdx = 0, 0
		m.syncState()
		cmds = append(cmds, refreshCmd(m.ctx, m.coord))
	case "H":
		if m.state.View != models.ViewCollection {
			m.statusMessage = "Transfer history is only available for collections"
			return m, clearStatusAfter(2 * time.Second)
		}
		m.showHistory = true
	case "enter":
		if _, ok := m.selectedToken(); ok {
			m.showDetail = true
			m.updateDetailViewport()
			m.viewport.YOffset = 0
		}
	case "c":
		return m.copySelectedOwner()
	case "o":
		return m.openSelectedImage()
	case "S":
		m.cfg.SetScope(m.state.View, m.state.Scope)
		if err := config.SaveConfig(m.cfg, m.configPath); err != nil {
			m.statusMessage = fmt.Sprintf("Save failed: %v", err)
		} else {
			m.statusMessage = "Scope saved to " + m.configPath
		}
		cmds = append(cmds, clearStatusAfter(3*time.Second))
	case "B":
		m.restoringBackup = true
	default:
		m.cursor = moveCursor(m.cursor, len(m.state.Tokens.Tokens), gridColumns(m.width), key)
	}

	return m, tea.Batch(cmds...)
}

func (m model) copySelectedOwner() (tea.Model, tea.Cmd) {
	rec, ok := m.selectedToken()
	if !ok {
		return m, nil
	}
	m.statusMessage = copyStatus(clipboard.WriteAll(rec.Owner), "Owner address")
	return m, clearStatusAfter(2 * time.Second)
}

func (m model) openSelectedImage() (tea.Model, tea.Cmd) {
	rec, ok := m.selectedToken()
	if !ok {
		return m, nil
	}
	if rec.Metadata.Image == "" {
		m.statusMessage = "Token has no image"
		return m, clearStatusAfter(2 * time.Second)
	}
	if err := openBrowser(utils.ResolveURI(rec.Metadata.Image, m.cfg.IPFSGateway)); err != nil {
		m.statusMessage = fmt.Sprintf("Failed to open browser: %v", err)
	} else {
		m.statusMessage = "Opened in browser"
	}
	return m, clearStatusAfter(2 * time.Second)
}

func (m model) restoreBackup() (tea.Model, tea.Cmd) {
	if err := config.RestoreLastBackup(m.configPath); err != nil {
		m.statusMessage = fmt.Sprintf("Restore failed: %v", err)
		return m, clearStatusAfter(3 * time.Second)
	}
	cfg, err := config.LoadConfigFromFile(m.configPath)
	if err != nil {
		m.statusMessage = fmt.Sprintf("Reload failed: %v", err)
		return m, clearStatusAfter(3 * time.Second)
	}
	config.ApplyEnv(&cfg)
	m.cfg = cfg
	_ = m.coord.SetView(cfg.View)
	m.coord.SetScope(cfg.Scope())
	m.cursor, m.historyIdx = 0, 0
	m.syncState()
	m.statusMessage = "Backup restored"
	return m, tea.Batch(refreshCmd(m.ctx, m.coord), clearStatusAfter(3*time.Second))
}

func copyStatus(err error, what string) string {
	if err != nil {
		return "Failed to copy to clipboard"
	}
	return what + " copied to clipboard!"
}
