// Package ordapi is an HTTP client for the ordinals inscription API consumed
// by the block-enrichment workflow.
package ordapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/looksrare/ord-indexer/internal/events"
)

const (
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
	initialBackoff = time.Second
)

// TxOutput is a single transaction output.
type TxOutput struct {
	ScriptPubkey []byte `json:"script_pubkey"`
	Value        uint64 `json:"value"`
}

// Transaction is the subset of transaction data the indexer needs.
type Transaction struct {
	Outputs []TxOutput `json:"outputs"`
	TxIndex *int64     `json:"tx_index,omitempty"`
}

// BlockInfo carries the block-level data amortized across all events in a
// single block.
type BlockInfo struct {
	Timestamp int64 `json:"timestamp"`
}

// InscriptionDetails is the subset of inscription metadata the indexer
// persists.
type InscriptionDetails struct {
	GenesisId        events.InscriptionId   `json:"genesis_id"`
	Number           int64                  `json:"number"`
	Fee              int64                  `json:"fee"`
	Charms           uint16                 `json:"charms"`
	SatNumber        *int64                 `json:"sat,omitempty"`
	ParentIds        []events.InscriptionId `json:"parents,omitempty"`
	ChildrenIds      []events.InscriptionId `json:"children,omitempty"`
	ContentType      string                 `json:"content_type,omitempty"`
	Metadata         []byte                 `json:"metadata,omitempty"`
}

// Client fetches inscription, transaction, and block data.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New builds a Client against baseURL with the spec's retry contract:
// up to 3 attempts, exponential backoff starting at 1s, retrying on
// transport errors, 5xx, and 429; other 4xx surface immediately.
func New(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxAttempts - 1
	rc.RetryWaitMin = initialBackoff
	rc.RetryWaitMax = initialBackoff * time.Duration(1<<uint(maxAttempts))
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	// Hand the last response back on exhaustion so getJSON reports its
	// status and body alongside the URL.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{baseURL: baseURL, http: rc}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// FetchInscriptionDetails fetches the enrichment payload for an inscription
// by its genesis id.
func (c *Client) FetchInscriptionDetails(ctx context.Context, id events.InscriptionId) (InscriptionDetails, error) {
	var out InscriptionDetails
	url := fmt.Sprintf("%s/inscription/%s", c.baseURL, id.String())
	if err := c.getJSON(ctx, url, &out); err != nil {
		return InscriptionDetails{}, err
	}
	return out, nil
}

// FetchTx fetches a transaction by txid.
func (c *Client) FetchTx(ctx context.Context, txid string) (Transaction, error) {
	var out Transaction
	url := fmt.Sprintf("%s/tx/%s", c.baseURL, txid)
	if err := c.getJSON(ctx, url, &out); err != nil {
		return Transaction{}, err
	}
	return out, nil
}

// FetchBlockInfo fetches the block timestamp for a committed height.
func (c *Client) FetchBlockInfo(ctx context.Context, height uint32) (BlockInfo, error) {
	var out BlockInfo
	url := fmt.Sprintf("%s/r/blockinfo/%d", c.baseURL, height)
	if err := c.getJSON(ctx, url, &out); err != nil {
		return BlockInfo{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ordapi: build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ordapi: request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ordapi: %s returned status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ordapi: decode response from %s: %w", url, err)
	}
	return nil
}
