package tui

import (
	"context"
	"time"

	"nftview/pkg/config"
	"nftview/pkg/coordinator"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{}

// --- Model ---

type model struct {
	ctx        context.Context
	coord      *coordinator.Coordinator
	sub        coordinator.Subscriber
	cfg        config.Config
	configPath string

	state      coordinator.State
	lastUpdate time.Time

	width           int
	height          int
	spinner         spinner.Model
	searchInput     textinput.Model
	searching       bool
	viewport        viewport.Model
	cursor          int
	historyIdx      int
	showDetail      bool
	showHistory     bool
	showGraph       bool
	showHelp        bool
	restoringBackup bool
	statusMessage   string
}

func initialModel(ctx context.Context, c *coordinator.Coordinator, cfg config.Config, configPath string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "0x... (collection or owner address)"
	ti.CharLimit = 42
	ti.Width = 44

	return model{
		ctx:         ctx,
		coord:       c,
		sub:         c.Subscribe(),
		cfg:         cfg,
		configPath:  configPath,
		state:       c.Snapshot(),
		spinner:     s,
		searchInput: ti,
		viewport:    viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForEvents(m.sub),
		m.spinner.Tick,
		initializeCmd(m.ctx, m.coord),
	)
}
