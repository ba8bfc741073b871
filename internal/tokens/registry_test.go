package tokens

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/httpx"
)

func TestSymbolWellKnown(t *testing.T) {
	r := NewRegistry(nil, "", zerolog.Nop())
	if got := r.Symbol(context.Background(), "So11111111111111111111111111111111111111112"); got != "SOL" {
		t.Errorf("Symbol = %q, want SOL", got)
	}
	// Overrides win without any network access (http client is nil).
	if got := r.Symbol(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"); got != "USDC" {
		t.Errorf("Symbol = %q, want USDC", got)
	}
}

func TestSymbolFromRemoteList(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"tokens":[{"address":"Mint1111","symbol":"FOO"}]}`)
	}))
	defer srv.Close()

	r := NewRegistry(httpx.New(2*time.Second, 0), srv.URL, zerolog.Nop())
	if got := r.Symbol(context.Background(), "Mint1111"); got != "FOO" {
		t.Errorf("Symbol = %q, want FOO", got)
	}
	// Second lookup must reuse the cached list.
	r.Symbol(context.Background(), "Mint1111")
	if calls.Load() != 1 {
		t.Errorf("token list fetched %d times, want 1", calls.Load())
	}
}

func TestSymbolFallsBackToTruncatedMint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewRegistry(httpx.New(2*time.Second, 0), srv.URL, zerolog.Nop())
	if got := r.Symbol(context.Background(), "AbCdEfGhIjKl"); got != "AbCd" {
		t.Errorf("Symbol = %q, want AbCd", got)
	}
	if got := r.Symbol(context.Background(), "xy"); got != "xy" {
		t.Errorf("Symbol = %q, want xy", got)
	}
}
