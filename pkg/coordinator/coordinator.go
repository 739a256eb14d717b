package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"nftview/pkg/backend"
	"nftview/pkg/metrics"
	"nftview/pkg/models"
)

// DataSource defines the interface for fetching data.
type DataSource interface {
	FetchTokens(ctx context.Context, req models.Request) models.TokenList
	FetchHistory(ctx context.Context, req models.Request) models.HistoryList
}

// BackendDataSource implements DataSource using the backend package.
type BackendDataSource struct {
	Client *backend.Client
}

func (d *BackendDataSource) FetchTokens(ctx context.Context, req models.Request) models.TokenList {
	list := d.Client.ListTokens(ctx, d.Client.TokensEndpoint(req.View, req.Scope))
	list.Request = req
	return list
}

func (d *BackendDataSource) FetchHistory(ctx context.Context, req models.Request) models.HistoryList {
	list := d.Client.ListHistory(ctx, d.Client.HistoryEndpoint(req.Scope))
	list.Request = req
	return list
}

// State is a point-in-time copy of what the coordinator owns.
type State struct {
	Scope   string             `json:"scope"`
	View    models.ViewKind    `json:"view"`
	Loading bool               `json:"loading"`
	Tokens  models.TokenList   `json:"tokens"`
	History models.HistoryList `json:"history"`
}

// Coordinator owns the current search scope and the token and history
// results shown for it. Only the coordinator mutates that state; readers
// take a Snapshot or subscribe to events.
//
// Every refresh is stamped with a sequence number. A result is committed
// only when it answers the latest request of its kind and its scope and
// view still match the current ones; anything else is discarded.
//
// eventMu is held across each state change and the events it emits, so
// subscribers see events in commit order. Lock order is eventMu, then mu.
type Coordinator struct {
	eventMu sync.Mutex
	mu      sync.RWMutex
	scope   string
	view    models.ViewKind
	loading bool
	tokens  models.TokenList
	history models.HistoryList

	tokenIssued    uint64
	tokenApplied   uint64
	historyIssued  uint64
	historyApplied uint64

	initOnce    sync.Once
	subscribers []Subscriber
	dataSource  DataSource
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewCoordinator creates a Coordinator backed by client.
// logger and m may be nil.
func NewCoordinator(client *backend.Client, scope string, view models.ViewKind, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if !view.Valid() {
		view = models.ViewCollection
	}
	return &Coordinator{
		scope:      strings.TrimSpace(scope),
		view:       view,
		tokens:     models.TokenList{Tokens: []models.TokenRecord{}},
		history:    models.HistoryList{Events: []models.TransferEvent{}},
		dataSource: &BackendDataSource{Client: client},
		logger:     logger,
		metrics:    m,
	}
}

// SetDataSource allows overriding the data source (useful for testing).
func (c *Coordinator) SetDataSource(ds DataSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataSource = ds
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (c *Coordinator) Subscribe() Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(Subscriber, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (c *Coordinator) Unsubscribe(ch Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (c *Coordinator) notify(event Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscriber; it will catch up from the next Snapshot.
		}
	}
}

// Start runs Initialize in the background.
func (c *Coordinator) Start(ctx context.Context) {
	go c.Initialize(ctx)
}

// Initialize performs the first load for the current scope. Calls after
// the first are no-ops.
func (c *Coordinator) Initialize(ctx context.Context) {
	c.initOnce.Do(func() {
		c.Refresh(ctx)
	})
}

// Refresh re-runs the token and history refreshes concurrently for the
// current scope and waits for both.
func (c *Coordinator) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.RefreshTokens(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshHistory(ctx)
	}()
	wg.Wait()
}

// Search sets the scope and refreshes everything for it.
func (c *Coordinator) Search(ctx context.Context, scope string) {
	c.SetScope(scope)
	c.Refresh(ctx)
}

// RefreshTokens lists the tokens of the current scope and view. It reports
// whether the result was committed.
func (c *Coordinator) RefreshTokens(ctx context.Context) bool {
	c.eventMu.Lock()
	c.mu.Lock()
	c.tokenIssued++
	req := models.Request{Scope: c.scope, View: c.view, Seq: c.tokenIssued}
	startedLoading := !c.loading
	c.loading = true
	ds := c.dataSource
	c.mu.Unlock()
	if startedLoading {
		c.notify(Event{Type: EventLoadingChanged, Data: true})
	}
	c.eventMu.Unlock()

	list := ds.FetchTokens(ctx, req)
	list.Request = req

	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	applied := c.isCurrent(req, c.tokenIssued, c.tokenApplied)
	if applied {
		c.tokens = list
		c.tokenApplied = req.Seq
	}
	finishedLoading := req.Seq == c.tokenIssued && c.loading
	if finishedLoading {
		c.loading = false
	}
	c.mu.Unlock()

	if applied {
		c.logger.Debug("tokens updated", "scope", req.Scope, "view", req.View, "seq", req.Seq, "status", list.Status, "count", len(list.Tokens))
		c.notify(Event{Type: EventTokensUpdated, Data: list})
	} else {
		c.logger.Debug("discarding stale token result", "scope", req.Scope, "view", req.View, "seq", req.Seq)
		c.metrics.RecordStaleResult("tokens")
	}
	if finishedLoading {
		c.notify(Event{Type: EventLoadingChanged, Data: false})
	}
	return applied
}

// RefreshHistory lists the transfer history of the current collection.
// In owner view there is no collection to ask about and nothing happens.
func (c *Coordinator) RefreshHistory(ctx context.Context) bool {
	c.mu.Lock()
	if c.view != models.ViewCollection {
		c.mu.Unlock()
		return false
	}
	c.historyIssued++
	req := models.Request{Scope: c.scope, View: c.view, Seq: c.historyIssued}
	ds := c.dataSource
	c.mu.Unlock()

	list := ds.FetchHistory(ctx, req)
	list.Request = req

	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	applied := c.isCurrent(req, c.historyIssued, c.historyApplied)
	if applied {
		c.history = list
		c.historyApplied = req.Seq
	}
	c.mu.Unlock()

	if applied {
		c.logger.Debug("history updated", "scope", req.Scope, "seq", req.Seq, "status", list.Status, "count", len(list.Events))
		c.notify(Event{Type: EventHistoryUpdated, Data: list})
	} else {
		c.logger.Debug("discarding stale history result", "scope", req.Scope, "view", req.View, "seq", req.Seq)
		c.metrics.RecordStaleResult("history")
	}
	return applied
}

// isCurrent reports whether req is the latest issued request of its kind
// and still matches the current scope and view. Caller holds mu.
func (c *Coordinator) isCurrent(req models.Request, issued, applied uint64) bool {
	return req.Seq == issued && req.Seq > applied && req.Scope == c.scope && req.View == c.view
}

// SetScope changes the scope without fetching anything.
func (c *Coordinator) SetScope(scope string) {
	scope = strings.TrimSpace(scope)
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.scope == scope {
		c.mu.Unlock()
		return
	}
	c.scope = scope
	c.mu.Unlock()
	c.notify(Event{Type: EventScopeChanged, Data: c.Snapshot()})
}

// SetView switches between collection and owner listings without
// fetching anything. Owner view has no history, so leaving collection
// view drops the history shown for the old collection.
func (c *Coordinator) SetView(view models.ViewKind) error {
	if !view.Valid() {
		return fmt.Errorf("unknown view %q", view)
	}
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.view == view {
		c.mu.Unlock()
		return nil
	}
	c.view = view
	if view == models.ViewOwner {
		c.history = models.HistoryList{Events: []models.TransferEvent{}}
	}
	c.mu.Unlock()
	c.notify(Event{Type: EventScopeChanged, Data: c.Snapshot()})
	return nil
}

// Scope returns the current scope.
func (c *Coordinator) Scope() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scope
}

// View returns the current view.
func (c *Coordinator) View() models.ViewKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Loading reports whether the latest token refresh is still running.
func (c *Coordinator) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tokens := c.tokens
	tokens.Tokens = append([]models.TokenRecord{}, c.tokens.Tokens...)
	history := c.history
	history.Events = append([]models.TransferEvent{}, c.history.Events...)
	return State{
		Scope:   c.scope,
		View:    c.view,
		Loading: c.loading,
		Tokens:  tokens,
		History: history,
	}
}
