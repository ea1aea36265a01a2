package miniserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/loxone-bridge/internal/infrastructure/config"
)

// LoxAppPath is the structure document path on the Miniserver.
const LoxAppPath = "/data/LoxAPP3.json"

// fetchTimeout bounds the structure document request. The document can
// be several megabytes on large installations.
const fetchTimeout = 30 * time.Second

// FetchResult is the outcome of a structure document fetch.
type FetchResult struct {
	// Code is the fetch status. The Miniserver's HTTP layer has been
	// observed reporting success both as the number 200 and as the
	// string "200"; the inconsistency is upstream, so both forms are
	// carried here as-is and accepted by IsSuccess.
	Code any

	// Document is the parsed structure document. Nil unless Code is a
	// success status.
	Document *Document
}

// ConfigFetcher retrieves the Miniserver structure document.
//
// Implementations report connection-level failures as errors; a reachable
// Miniserver that refuses the request yields a nil error and a non-success
// Code in the result.
type ConfigFetcher interface {
	Fetch(ctx context.Context) (*FetchResult, error)
}

// IsSuccess reports whether a fetch status code is the success value.
// Both numeric and textual "200" are accepted; see FetchResult.Code.
func IsSuccess(code any) bool {
	switch v := code.(type) {
	case int:
		return v == http.StatusOK
	case int64:
		return v == http.StatusOK
	case float64:
		return v == http.StatusOK
	case string:
		return v == "200"
	default:
		return false
	}
}

// HTTPFetcher retrieves the structure document over the Miniserver's
// HTTP interface using basic authentication.
type HTTPFetcher struct {
	cfg    config.MiniserverConfig
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the configured Miniserver.
func NewHTTPFetcher(cfg config.MiniserverConfig) *HTTPFetcher {
	return &HTTPFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// BaseURL returns the Miniserver's HTTP base URL.
func (f *HTTPFetcher) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", f.cfg.Host, f.cfg.Port)
}

// Fetch retrieves and parses the structure document.
//
// A connection-level failure returns an error. A completed request with a
// non-success status returns that status in the result with a nil error;
// the caller decides how to react.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	url := f.BaseURL() + LoxAppPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building structure request: %w", err)
	}
	req.SetBasicAuth(f.cfg.Username, f.cfg.Password)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching structure document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchResult{Code: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading structure document: %w", err)
	}

	doc, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}

	return &FetchResult{Code: resp.StatusCode, Document: doc}, nil
}
