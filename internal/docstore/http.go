package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/halvard/tally/internal/apperr"
)

// HTTP is a Provider that talks to a remote document backend over its REST
// API. The backend stores each aggregate as a record with a single "data"
// attribute holding the serialized payload.
type HTTP struct {
	endpoint string
	project  string
	apiKey   string
	client   *http.Client
}

// NewHTTP creates a client for the backend at endpoint, authenticating with
// the given project id and API key.
func NewHTTP(endpoint, project, apiKey string) *HTTP {
	return &HTTP{
		endpoint: strings.TrimRight(endpoint, "/"),
		project:  project,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *HTTP) url(ref Ref) string {
	return fmt.Sprintf("%s/v1/databases/%s/collections/%s/documents/%s",
		h.endpoint, ref.Database, ref.Collection, ref.Document)
}

func (h *HTTP) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tally-Project", h.project)
	req.Header.Set("X-Tally-Key", h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docstore: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("docstore: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("docstore: %s %s: %w", req.Method, req.URL.Path, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("docstore: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

// Get implements Provider.
func (h *HTTP) Get(ctx context.Context, ref Ref) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url(ref), nil)
	if err != nil {
		return Document{}, fmt.Errorf("docstore: build request: %w", err)
	}
	body, err := h.do(req)
	if err != nil {
		return Document{}, err
	}

	var record struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		return Document{}, fmt.Errorf("docstore: decode document: %w", err)
	}
	return Document{Data: record.Data}, nil
}

// Update implements Provider.
func (h *HTTP) Update(ctx context.Context, ref Ref, doc Document) error {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]string{"data": doc.Data},
	})
	if err != nil {
		return fmt.Errorf("docstore: encode document: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, h.url(ref), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("docstore: build request: %w", err)
	}
	_, err = h.do(req)
	return err
}

var _ Provider = (*HTTP)(nil)
