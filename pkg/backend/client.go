package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nftview/pkg/metrics"
	"nftview/pkg/models"
	"nftview/pkg/utils"
)

// maxMetadataBytes caps a metadata document; longer bodies fail to decode.
const maxMetadataBytes = 1 << 20

// Endpoint kinds, used as metric and log labels.
const (
	KindCollection = "collection"
	KindOwner      = "owner"
	KindHistory    = "history"
)

// Client talks to the indexer backend and to token metadata hosts.
type Client struct {
	baseURL     string
	ipfsGateway string
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewClient creates a backend client. httpClient, logger and m may be nil.
// The default HTTP client sets no timeout: requests are bounded only by
// the context and the network stack.
func NewClient(baseURL, ipfsGateway string, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		ipfsGateway: ipfsGateway,
		httpClient:  httpClient,
		logger:      logger,
		metrics:     m,
	}
}

// BaseURL returns the backend base URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CollectionEndpoint is the ownership listing of a collection contract.
func (c *Client) CollectionEndpoint(collection string) string {
	return c.baseURL + "/collection/" + url.PathEscape(collection)
}

// OwnerEndpoint is the ownership listing of a wallet.
func (c *Client) OwnerEndpoint(owner string) string {
	return c.baseURL + "/address/" + url.PathEscape(owner)
}

// HistoryEndpoint is the transfer history of a collection contract.
func (c *Client) HistoryEndpoint(collection string) string {
	return c.baseURL + "/collection/history/" + url.PathEscape(collection)
}

// TokensEndpoint picks the listing endpoint for a view.
func (c *Client) TokensEndpoint(view models.ViewKind, scope string) string {
	if view == models.ViewOwner {
		return c.OwnerEndpoint(scope)
	}
	return c.CollectionEndpoint(scope)
}

// FetchMetadata retrieves the JSON document at uri. It never fails: an
// empty uri, a transport error, a non-2xx answer or an undecodable body
// all yield the empty Metadata.
func (c *Client) FetchMetadata(ctx context.Context, uri string) models.Metadata {
	if strings.TrimSpace(uri) == "" {
		c.metrics.RecordMetadataFetch("skipped")
		return models.Metadata{}
	}
	target := utils.ResolveURI(uri, c.ipfsGateway)

	md, err := c.getMetadata(ctx, target)
	if err != nil {
		c.logger.Warn("metadata fetch failed", "uri", uri, "error", err)
		c.metrics.RecordMetadataFetch("failed")
		return models.Metadata{}
	}
	c.metrics.RecordMetadataFetch("ok")
	return md
}

func (c *Client) getMetadata(ctx context.Context, target string) (models.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Metadata{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var md models.Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&md); err != nil {
		return models.Metadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return md, nil
}

// ListTokens fetches an ownership listing and hydrates every row lacking
// embedded metadata, one row at a time and in order. The result is
// either the complete hydrated list or an empty one; Status says which
// and why.
func (c *Client) ListTokens(ctx context.Context, endpoint string) models.TokenList {
	start := time.Now()
	kind := endpointKind(endpoint)
	out := models.TokenList{Endpoint: endpoint, Tokens: []models.TokenRecord{}}

	var env models.Envelope[models.WireToken]
	if err := c.postEnvelope(ctx, endpoint, &env); err != nil {
		c.logger.Warn("token listing failed", "endpoint", endpoint, "error", err)
		out.Status, out.Reason, out.Err = models.StatusFailed, err.Error(), err
		c.metrics.RecordBackendRequest(kind, string(out.Status), time.Since(start).Seconds())
		return out
	}

	if len(env.Data) == 0 {
		out.Status = models.StatusEmpty
		c.metrics.RecordBackendRequest(kind, string(out.Status), time.Since(start).Seconds())
		return out
	}

	tokens := make([]models.TokenRecord, 0, len(env.Data))
	for _, raw := range env.Data {
		rec, hydrated := models.TokenRecordFromWire(raw)
		if !hydrated {
			rec.Metadata = c.FetchMetadata(ctx, rec.TokenURI)
		}
		tokens = append(tokens, rec)
	}

	out.Tokens, out.Status = tokens, models.StatusOK
	c.logger.Debug("token listing done", "endpoint", endpoint, "count", len(tokens), "elapsed", time.Since(start))
	c.metrics.RecordBackendRequest(kind, string(out.Status), time.Since(start).Seconds())
	return out
}

// ListHistory fetches the transfer history behind endpoint. Rows that
// fail validation are dropped; transport and decoding failures give an
// empty, failed result.
func (c *Client) ListHistory(ctx context.Context, endpoint string) models.HistoryList {
	start := time.Now()
	out := models.HistoryList{Endpoint: endpoint, Events: []models.TransferEvent{}}

	var env models.Envelope[models.WireEvent]
	if err := c.postEnvelope(ctx, endpoint, &env); err != nil {
		c.logger.Warn("history listing failed", "endpoint", endpoint, "error", err)
		out.Status, out.Reason, out.Err = models.StatusFailed, err.Error(), err
		c.metrics.RecordBackendRequest(KindHistory, string(out.Status), time.Since(start).Seconds())
		return out
	}

	events := make([]models.TransferEvent, 0, len(env.Data))
	for i, raw := range env.Data {
		ev, err := models.TransferEventFromWire(raw)
		if err != nil {
			c.logger.Warn("dropping invalid transfer event", "endpoint", endpoint, "index", i, "error", err)
			continue
		}
		events = append(events, ev)
	}

	out.Events = events
	if len(events) == 0 {
		out.Status = models.StatusEmpty
	} else {
		out.Status = models.StatusOK
	}
	c.metrics.RecordBackendRequest(KindHistory, string(out.Status), time.Since(start).Seconds())
	return out
}

func (c *Client) postEnvelope(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse builds an error from a non-200 answer, using the
// backend's {"error": "..."} body when there is one.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func endpointKind(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "/collection/history/"):
		return KindHistory
	case strings.Contains(endpoint, "/address/"):
		return KindOwner
	default:
		return KindCollection
	}
}
