package tui

import (
	"context"
	"fmt"

	"nftview/pkg/config"
	"nftview/pkg/coordinator"

	tea "github.com/charmbracelet/bubbletea"
)

func Start(ctx context.Context, c *coordinator.Coordinator, cfg config.Config, configPath, version string) error {
	Version = version
	m := initialModel(ctx, c, cfg, configPath)
	defer c.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
