package coordinator

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventScopeChanged   EventType = "scope_changed"
	EventLoadingChanged EventType = "loading_changed"
	EventTokensUpdated  EventType = "tokens_updated"
	EventHistoryUpdated EventType = "history_updated"
)

// Event represents a coordinator state change. Data carries the new
// value: a State for scope changes, a bool for loading, a
// models.TokenList or models.HistoryList for updates.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
