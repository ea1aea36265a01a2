package miniserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/nerrad567/loxone-bridge/internal/infrastructure/config"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name string
		code any
		want bool
	}{
		{name: "numeric 200", code: 200, want: true},
		{name: "int64 200", code: int64(200), want: true},
		{name: "float 200", code: float64(200), want: true},
		{name: "string 200", code: "200", want: true},
		{name: "numeric 404", code: 404, want: false},
		{name: "string 401", code: "401", want: false},
		{name: "nil", code: nil, want: false},
		{name: "bool", code: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSuccess(tt.code); got != tt.want {
				t.Errorf("IsSuccess(%v) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

// fetcherForServer builds an HTTPFetcher pointed at a test server.
func fetcherForServer(t *testing.T, srv *httptest.Server) *HTTPFetcher {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}
	return NewHTTPFetcher(config.MiniserverConfig{
		Host:     u.Hostname(),
		Port:     port,
		Username: "admin",
		Password: "secret",
	})
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LoxAppPath {
			t.Errorf("request path = %q, want %q", r.URL.Path, LoxAppPath)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			t.Error("expected basic auth credentials on request")
		}
		w.Write([]byte(`{"softwareVersion":[10,3,2],"msInfo":{"serialNr":"ABC","msName":"Home","miniserverType":0}}`))
	}))
	defer srv.Close()

	result, err := fetcherForServer(t, srv).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !IsSuccess(result.Code) {
		t.Errorf("Fetch() code = %v, want success", result.Code)
	}
	if result.Document == nil {
		t.Fatal("Fetch() returned nil document")
	}
	if serial, ok := result.Document.Serial(); !ok || serial != "ABC" {
		t.Errorf("document Serial() = %q, want %q", serial, "ABC")
	}
}

func TestHTTPFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result, err := fetcherForServer(t, srv).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for completed non-success request", err)
	}
	if IsSuccess(result.Code) {
		t.Errorf("Fetch() code = %v, want non-success", result.Code)
	}
	if result.Document != nil {
		t.Error("Fetch() document should be nil on non-success status")
	}
}

func TestHTTPFetcher_ConnectionError(t *testing.T) {
	// Server closed before fetching: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	fetcher := fetcherForServer(t, srv)
	srv.Close()

	_, err := fetcher.Fetch(context.Background())
	if err == nil {
		t.Error("Fetch() expected error for unreachable miniserver")
	}
}

func TestHTTPFetcher_MalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := fetcherForServer(t, srv).Fetch(context.Background())
	if err == nil {
		t.Error("Fetch() expected error for malformed document")
	}
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcherForServer(t, srv).Fetch(ctx)
	if err == nil {
		t.Error("Fetch() expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled in chain", err)
	}
}
