package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	historymodel "github.com/calmloop/calmloop/backend/internal/model/history"
)

var (
	ErrUnauthorized = errors.New("history store rejected caller")
	ErrValidation   = errors.New("history payload rejected")
	// ErrNotFound covers both missing records and ownership mismatches;
	// the store deliberately does not distinguish them.
	ErrNotFound = errors.New("history record not found")
	ErrStore    = errors.New("history store unavailable")
)

const userHeader = "X-Calmloop-User"

// Client talks to the remote history store. It implements the write
// (create-or-update), read, list and delete surfaces of the store; the
// debounced scheduling on top of it lives in Saver.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a history store client. A nil httpClient gets a
// default with a bounded timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Save creates the record on first write (the store assigns historyId)
// and updates the same record on every subsequent write.
func (c *Client) Save(ctx context.Context, userID string, rec historymodel.Record) (historymodel.Record, error) {
	method := http.MethodPost
	path := "/v1/histories"
	if rec.HistoryID != "" {
		method = http.MethodPatch
		path += "/" + url.PathEscape(rec.HistoryID)
	}

	var saved historymodel.Record
	if err := c.do(ctx, method, path, userID, rec, &saved); err != nil {
		return historymodel.Record{}, err
	}
	if saved.HistoryID == "" {
		saved.HistoryID = rec.HistoryID
	}
	return saved, nil
}

// Get fetches one record by id.
func (c *Client) Get(ctx context.Context, userID, historyID string) (historymodel.Record, error) {
	var rec historymodel.Record
	err := c.do(ctx, http.MethodGet, "/v1/histories/"+url.PathEscape(historyID), userID, nil, &rec)
	return rec, err
}

// List returns summaries of the user's most recent records.
func (c *Client) List(ctx context.Context, userID string, limit int) ([]historymodel.Summary, error) {
	path := "/v1/histories"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []historymodel.Summary
	err := c.do(ctx, http.MethodGet, path, userID, nil, &out)
	return out, err
}

// Delete removes one record and returns the deleted ids.
func (c *Client) Delete(ctx context.Context, userID, historyID string) ([]string, error) {
	var out struct {
		Deleted []string `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/v1/histories/"+url.PathEscape(historyID), userID, nil, &out)
	return out.Deleted, err
}

// Purge removes every record owned by the user.
func (c *Client) Purge(ctx context.Context, userID string) ([]string, error) {
	var out struct {
		Deleted []string `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/v1/histories", userID, nil, &out)
	return out.Deleted, err
}

func (c *Client) do(ctx context.Context, method, path, userID string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode history payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(userHeader, userID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, readErrorMessage(resp.Body))
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		// Ownership mismatches surface as not-found to avoid leaking
		// record existence.
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrStore, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrStore, err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil || payload.Error == "" {
		return "invalid request"
	}
	return payload.Error
}
