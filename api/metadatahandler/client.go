package metadatahandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/indexer-metadata-gateway/api"
	"github.com/ruteri/indexer-metadata-gateway/cryptoutils"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// RequestIDHeader is set by Client on every request for log correlation.
const RequestIDHeader = "X-Request-Id"

// StatusError is a non-2xx response from the gateway.
type StatusError struct {
	StatusCode int
	api.ErrorResponse
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q", e.Key)
		if e.Field != "" {
			msg += fmt.Sprintf(", field %q", e.Field)
		}
		msg += ")"
	}
	return msg
}

// Retryable reports whether resending the same request may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// Client signs and sends metadata requests on behalf of one signer.
type Client struct {
	baseURL    string
	signer     cryptoutils.Signer
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL string, signer cryptoutils.Signer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Update sends a batch of records. records is not modified.
func (c *Client) Update(ctx context.Context, table interfaces.Table, records []interfaces.MetadataRecord) error {
	batch := make([]interfaces.MetadataRecord, len(records))
	for i, rec := range records {
		rec.Table = table
		batch[i] = rec
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("could not encode batch: %w", err)
	}
	return c.UpdateRaw(ctx, table, body)
}

// UpdateRaw sends body, a JSON array of flat records, unchanged.
func (c *Client) UpdateRaw(ctx context.Context, table interfaces.Table, body []byte) error {
	endpoint := fmt.Sprintf("%s/metadata/%s/update", c.baseURL, url.PathEscape(table.String()))
	_, err := c.do(ctx, http.MethodPost, endpoint, table, body)
	return err
}

// Get reads one page of a table. offset=0, limit=0 reads everything.
func (c *Client) Get(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/metadata/%s?%s", c.baseURL, url.PathEscape(table.String()), query.Encode())

	respBody, err := c.do(ctx, http.MethodGet, endpoint, table, nil)
	if err != nil {
		return nil, err
	}

	records, err := interfaces.DecodeBatch(table, respBody)
	if err != nil {
		return nil, fmt.Errorf("could not parse records: %w", err)
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, table interfaces.Table, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())

	if err := cryptoutils.SignHTTPRequest(req, c.signer, table, body, c.now()); err != nil {
		return nil, fmt.Errorf("could not sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, &statusErr.ErrorResponse) != nil || statusErr.Message == "" {
			statusErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, statusErr
	}
	return respBody, nil
}
