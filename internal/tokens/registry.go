// Package tokens resolves SPL mint addresses to human-readable symbols.
package tokens

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/httpx"
)

// DefaultListURL is the canonical Solana token registry export.
const DefaultListURL = "https://raw.githubusercontent.com/solana-labs/token-list/main/src/tokens/solana.tokenlist.json"

// wellKnown covers the mints that matter even when the remote list is
// unreachable.
var wellKnown = map[string]string{
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": "ETH",
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": "WBTC",
	"J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn": "JitoSOL",
	"bSo13r4TkiE4KumL71LsHTPpL2euBYLFx6h9HP3piy1":  "bSOL",
}

type tokenListFile struct {
	Tokens []struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"tokens"`
}

// Registry resolves mint addresses to ticker symbols. The remote list is
// fetched at most once; lookups never fail, falling back to a truncated mint.
type Registry struct {
	http    *httpx.Client
	listURL string
	log     zerolog.Logger

	once   sync.Once
	mu     sync.RWMutex
	remote map[string]string
}

func NewRegistry(httpClient *httpx.Client, listURL string, log zerolog.Logger) *Registry {
	if listURL == "" {
		listURL = DefaultListURL
	}
	return &Registry{
		http:    httpClient,
		listURL: listURL,
		log:     log.With().Str("component", "tokens").Logger(),
	}
}

// Symbol returns the best available symbol for a mint. Resolution order is
// the built-in overrides, then the remote registry, then the first characters
// of the mint itself.
func (r *Registry) Symbol(ctx context.Context, mint string) string {
	if sym, ok := wellKnown[mint]; ok {
		return sym
	}

	r.once.Do(func() { r.load(ctx) })

	r.mu.RLock()
	sym, ok := r.remote[mint]
	r.mu.RUnlock()
	if ok && sym != "" {
		return sym
	}

	if len(mint) > 4 {
		return mint[:4]
	}
	return mint
}

func (r *Registry) load(ctx context.Context) {
	if r.http == nil {
		return
	}
	var file tokenListFile
	if _, err := r.http.GetJSON(ctx, r.listURL, &file); err != nil {
		r.log.Warn().Err(err).Msg("token list fetch failed, using fallback symbols")
		return
	}

	remote := make(map[string]string, len(file.Tokens))
	for _, tok := range file.Tokens {
		if tok.Address != "" && tok.Symbol != "" {
			remote[tok.Address] = tok.Symbol
		}
	}

	r.mu.Lock()
	r.remote = remote
	r.mu.Unlock()
	r.log.Debug().Int("tokens", len(remote)).Msg("token list loaded")
}
