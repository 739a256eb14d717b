package models

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// The backend speaks in Go-exported field names (Owner, TxHash, ...).
// These types mirror that shape and are only used at the decoding edge.

// WireToken is a raw ownership row as served by the indexer.
type WireToken struct {
	Owner    string    `json:"Owner"`
	URI      string    `json:"URI"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// WireEvent is a raw transfer row as served by the indexer.
type WireEvent struct {
	BlockNumber uint64 `json:"BlockNumber"`
	Collection  string `json:"Collection"`
	FromAddr    string `json:"FromAddr"`
	ToAddr      string `json:"ToAddr"`
	Tag         string `json:"Tag"`
	TokenId     string `json:"TokenId"`
	Timestamp   int64  `json:"Timestamp"`
	TxHash      string `json:"TxHash"`
	Value       string `json:"Value"`
}

// Envelope is the {"data": ...} wrapper every backend response uses.
// Other keys such as "message" are ignored.
type Envelope[T any] struct {
	Data []T `json:"data"`
}

// TokenRecordFromWire maps a raw row to a TokenRecord. The second return
// value reports whether the row carried embedded metadata; rows without
// it still need hydration from their URI.
func TokenRecordFromWire(w WireToken) (TokenRecord, bool) {
	rec := TokenRecord{
		Owner:    strings.TrimSpace(w.Owner),
		TokenURI: strings.TrimSpace(w.URI),
	}
	if w.Metadata == nil {
		return rec, false
	}
	rec.Metadata = *w.Metadata
	return rec, true
}

// TransferEventFromWire validates and maps a raw history row.
func TransferEventFromWire(w WireEvent) (TransferEvent, error) {
	for _, a := range []struct{ field, val string }{
		{"Collection", w.Collection},
		{"FromAddr", w.FromAddr},
		{"ToAddr", w.ToAddr},
	} {
		if !common.IsHexAddress(a.val) {
			return TransferEvent{}, fmt.Errorf("%s: invalid address %q", a.field, a.val)
		}
	}

	hash, err := hexutil.Decode(w.TxHash)
	if err != nil {
		return TransferEvent{}, fmt.Errorf("TxHash: %w", err)
	}
	if len(hash) != common.HashLength {
		return TransferEvent{}, fmt.Errorf("TxHash: want %d bytes, got %d", common.HashLength, len(hash))
	}

	if err := checkUnsignedInteger(w.TokenId); err != nil {
		return TransferEvent{}, fmt.Errorf("TokenId: %w", err)
	}
	value := w.Value
	if value == "" {
		value = "0"
	}
	if err := checkUnsignedInteger(value); err != nil {
		return TransferEvent{}, fmt.Errorf("Value: %w", err)
	}
	if w.Timestamp < 0 {
		return TransferEvent{}, fmt.Errorf("Timestamp: negative value %d", w.Timestamp)
	}

	return TransferEvent{
		BlockNumber: w.BlockNumber,
		Collection:  strings.ToLower(w.Collection),
		FromAddr:    strings.ToLower(w.FromAddr),
		ToAddr:      strings.ToLower(w.ToAddr),
		Tag:         strings.ToLower(strings.TrimSpace(w.Tag)),
		TokenID:     w.TokenId,
		Timestamp:   w.Timestamp,
		TxHash:      strings.ToLower(w.TxHash),
		Value:       value,
	}, nil
}

// checkUnsignedInteger accepts only plain base-10 digit strings.
func checkUnsignedInteger(s string) error {
	if s == "" {
		return fmt.Errorf("empty value")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%q is not an unsigned integer", s)
		}
	}
	return nil
}
