package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ViewKind selects which backend listing a scope is resolved against.
type ViewKind string

const (
	ViewCollection ViewKind = "collection"
	ViewOwner      ViewKind = "owner"
)

// Valid reports whether v is a known view.
func (v ViewKind) Valid() bool {
	return v == ViewCollection || v == ViewOwner
}

// Status distinguishes a successful listing from an empty or failed one.
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Request is the immutable parameter set of a single retrieval.
// It travels with the result so consumers can tell which scope and
// which refresh a result belongs to.
type Request struct {
	Scope string   `json:"scope"`
	View  ViewKind `json:"view"`
	Seq   uint64   `json:"seq"`
}

// Metadata is the off-chain JSON document a token URI points to.
// The zero value is the empty metadata object.
type Metadata struct {
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// UnmarshalJSON decodes the known fields leniently: numbers are kept as
// text and any other non-string value leaves the field empty.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        json.RawMessage `json:"name"`
		Image       json.RawMessage `json:"image"`
		Description json.RawMessage `json:"description"`
		ExternalURL json.RawMessage `json:"external_url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{
		Name:        lenientString(raw.Name),
		Image:       lenientString(raw.Image),
		Description: lenientString(raw.Description),
		ExternalURL: lenientString(raw.ExternalURL),
	}
	return nil
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// IsEmpty reports whether no field of the metadata is set.
func (m Metadata) IsEmpty() bool {
	return m == Metadata{}
}

// TokenRecord is one ownership row, hydrated with its metadata.
type TokenRecord struct {
	Owner    string   `json:"owner"`
	TokenURI string   `json:"tokenURI,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// TransferEvent is one entry of a collection's transfer history.
// TokenID and Value are decimal strings and may exceed 64 bits.
type TransferEvent struct {
	BlockNumber uint64 `json:"blockNumber"`
	Collection  string `json:"collection"`
	FromAddr    string `json:"fromAddr"`
	ToAddr      string `json:"toAddr"`
	Tag         string `json:"tag"`
	TokenID     string `json:"tokenId"`
	Timestamp   int64  `json:"timestamp"`
	TxHash      string `json:"txHash"`
	Value       string `json:"value"`
}

// Time returns the block time of the event.
func (e TransferEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Ether returns Value (wei) scaled to ether without losing precision.
func (e TransferEvent) Ether() decimal.Decimal {
	wei, err := decimal.NewFromString(e.Value)
	if err != nil {
		return decimal.Zero
	}
	return wei.Shift(-18)
}

// TokenList is the result of listing tokens for a scope.
type TokenList struct {
	Request  Request       `json:"request"`
	Endpoint string        `json:"endpoint,omitempty"`
	Tokens   []TokenRecord `json:"tokens"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Err      error         `json:"-"`
}

// HistoryList is the result of listing a collection's transfer history.
type HistoryList struct {
	Request  Request         `json:"request"`
	Endpoint string          `json:"endpoint,omitempty"`
	Events   []TransferEvent `json:"events"`
	Status   Status          `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Err      error           `json:"-"`
}

// ScopeResult holds the outcome of probing one configured scope.
type ScopeResult struct {
	View    ViewKind `json:"view"`
	Scope   string   `json:"scope"`
	Status  Status   `json:"status"`
	Count   int      `json:"count"`
	Error   string   `json:"error,omitempty"`
	Updated bool     `json:"updated"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath      string        `json:"config_path"`
	APIURL          string        `json:"api_url"`
	ValidStructure  bool          `json:"valid_structure"`
	StructureErrors []string      `json:"structure_errors,omitempty"`
	Scopes          []ScopeResult `json:"scopes,omitempty"`
	ConfigUpdated   bool          `json:"config_updated"`
	SaveError       string        `json:"save_error,omitempty"`
	DryRun          bool          `json:"dry_run"`
}
