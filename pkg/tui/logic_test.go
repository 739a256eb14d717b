package tui

import (
	"context"
	"testing"

	"nftview/pkg/backend"
	"nftview/pkg/config"
	"nftview/pkg/coordinator"
	"nftview/pkg/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	tokens models.TokenList
}

func (s *stubSource) FetchTokens(ctx context.Context, req models.Request) models.TokenList {
	return s.tokens
}

func (s *stubSource) FetchHistory(ctx context.Context, req models.Request) models.HistoryList {
	return models.HistoryList{Events: []models.TransferEvent{}, Status: models.StatusEmpty}
}

func newTestModel(t *testing.T, tokens []models.TokenRecord) model {
	t.Helper()
	cfg := config.Default()
	c := coordinator.NewCoordinator(backend.NewClient(cfg.APIURL, cfg.IPFSGateway, nil, nil, nil), cfg.Scope(), cfg.View, nil, nil)
	c.SetDataSource(&stubSource{tokens: models.TokenList{Tokens: tokens, Status: models.StatusOK}})
	c.RefreshTokens(context.Background())
	m := initialModel(context.Background(), c, cfg, t.TempDir()+"/"+config.ConfigFileName)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(model)
}

func TestGridColumns(t *testing.T) {
	assert.Equal(t, 1, gridColumns(0))
	assert.Equal(t, 1, gridColumns(40))
	assert.Equal(t, 3, gridColumns(100))
}

func TestMoveCursor(t *testing.T) {
	tests := []struct {
		name   string
		cursor int
		key    string
		want   int
	}{
		{"right", 0, "right", 1},
		{"left at start", 0, "left", 0},
		{"down a row", 1, "down", 4},
		{"down past end", 5, "j", 6},
		{"up a row", 4, "k", 1},
		{"up past start", 1, "up", 0},
		{"end", 2, "end", 6},
		{"home", 5, "home", 0},
		{"other key", 3, "x", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moveCursor(tt.cursor, 7, 3, tt.key))
		})
	}
	assert.Equal(t, 0, moveCursor(3, 0, 3, "right"))
}

func TestTokenStatusText(t *testing.T) {
	s := coordinator.State{}
	assert.Equal(t, "Idle", tokenStatusText(s))

	s.Loading = true
	assert.Equal(t, "Loading...", tokenStatusText(s))

	s.Tokens = models.TokenList{Status: models.StatusEmpty}
	assert.Equal(t, "No tokens found", tokenStatusText(s))

	s.Tokens = models.TokenList{Status: models.StatusFailed, Reason: "server error (500): boom"}
	assert.Equal(t, "Request failed: server error (500): boom", tokenStatusText(s))

	s.Tokens = models.TokenList{Status: models.StatusOK, Tokens: make([]models.TokenRecord, 1200)}
	assert.Equal(t, "1,200 tokens", tokenStatusText(s))
}

func TestHistoryRowsAndSeries(t *testing.T) {
	events := []models.TransferEvent{
		{BlockNumber: 10, Value: "1000000000000000000"},
		{BlockNumber: 30, Value: "2710500000000000"},
		{BlockNumber: 20, Value: "0"},
	}

	rows := historyRows(events, 2)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(30), rows[0].BlockNumber)
	assert.Equal(t, uint64(20), rows[1].BlockNumber)
	assert.Equal(t, uint64(10), events[0].BlockNumber, "input must not be reordered")

	assert.Len(t, historyRows(events, 0), 3)

	series := historySeries(events)
	assert.Equal(t, []float64{1, 0, 0.0027105}, series)
}

func TestOtherView(t *testing.T) {
	assert.Equal(t, models.ViewOwner, otherView(models.ViewCollection))
	assert.Equal(t, models.ViewCollection, otherView(models.ViewOwner))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Foo", displayName(models.TokenRecord{Metadata: models.Metadata{Name: " Foo "}}))
	assert.Equal(t, "Unnamed", displayName(models.TokenRecord{}))
}

func TestUpdateCursorAndDetail(t *testing.T) {
	m := newTestModel(t, []models.TokenRecord{
		{Owner: "0xa", Metadata: models.Metadata{Name: "One"}},
		{Owner: "0xb", Metadata: models.Metadata{Name: "Two", Image: "ipfs://cid/2.png"}},
	})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	assert.True(t, m.showDetail)
	assert.Contains(t, m.viewport.View(), "Two")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(model)
	assert.False(t, m.showDetail)
}

func TestSearchRejectsInvalidAddress(t *testing.T) {
	m := newTestModel(t, nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m = next.(model)
	require.True(t, m.searching)

	m.searchInput.SetValue("not-an-address")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	assert.True(t, m.searching)
	assert.Contains(t, m.statusMessage, "Invalid address")
}

func TestHistoryOnlyInCollectionView(t *testing.T) {
	m := newTestModel(t, nil)
	require.NoError(t, m.coord.SetView(models.ViewOwner))
	m.syncState()

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'H'}})
	m = next.(model)
	assert.False(t, m.showHistory)
	assert.NotEmpty(t, m.statusMessage)
}

func TestCoordinatorEventSyncsState(t *testing.T) {
	m := newTestModel(t, []models.TokenRecord{{Owner: "0xa"}, {Owner: "0xb"}})
	m.cursor = 5

	next, cmd := m.Update(coordinator.Event{Type: coordinator.EventTokensUpdated})
	m = next.(model)
	assert.NotNil(t, cmd)
	assert.Len(t, m.state.Tokens.Tokens, 2)
	assert.Equal(t, 1, m.cursor)
	assert.False(t, m.lastUpdate.IsZero())
}

func TestSaveScope(t *testing.T) {
	m := newTestModel(t, nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'S'}})
	m = next.(model)
	assert.Contains(t, m.statusMessage, "Scope saved")

	cfg, err := config.LoadConfigFromFile(m.configPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCollectionAddress, cfg.CollectionAddress)
}

func TestViewRenders(t *testing.T) {
	m := newTestModel(t, []models.TokenRecord{{Owner: "0x8fdd8db198b292d233fb5dc191e31bebc41e1144", Metadata: models.Metadata{Name: "Foo"}}})
	out := m.View()
	assert.Contains(t, out, "NFT Viewer - Collection")
	assert.Contains(t, out, "Foo")
}
