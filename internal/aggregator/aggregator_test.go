package aggregator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/marginfi"
)

type fakeSource struct {
	state *marginfi.GroupState
	err   error
}

func (f *fakeSource) FetchGroup(ctx context.Context) (*marginfi.GroupState, error) {
	return f.state, f.err
}

type staticSymbols map[string]string

func (s staticSymbols) Symbol(_ context.Context, mint string) string { return s[mint] }

func testBank(address, mint string) *marginfi.Bank {
	return &marginfi.Bank{
		Address:             address,
		Mint:                mint,
		MintDecimals:        6,
		AssetShareValue:     decimal.NewFromInt(1),
		LiabilityShareValue: decimal.NewFromInt(1),
		TotalAssetShares:    decimal.NewFromInt(1_000_000),
	}
}

func TestAggregatorFetch(t *testing.T) {
	source := &fakeSource{state: &marginfi.GroupState{
		Banks: []*marginfi.Bank{testBank("bankB", "mint2"), testBank("bankA", "mint1")},
		Prices: map[string]marginfi.OraclePrice{
			"bankA": {Price: decimal.NewFromInt(10)},
		},
	}}
	agg := New(source, staticSymbols{"mint1": "SOL", "mint2": "USDC"}, zerolog.Nop())

	collection, err := agg.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(collection.Reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(collection.Reports))
	}
	// Reports come back ordered by address.
	if collection.Reports[0].Address != "bankA" || collection.Reports[1].Address != "bankB" {
		t.Errorf("order = %s, %s", collection.Reports[0].Address, collection.Reports[1].Address)
	}
	if collection.Reports[0].Symbol != "SOL" {
		t.Errorf("symbol = %q", collection.Reports[0].Symbol)
	}
	if !collection.Reports[0].Priced {
		t.Error("bankA should be priced")
	}
	if collection.Reports[1].Priced {
		t.Error("bankB has no oracle and must be unpriced")
	}
	if collection.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestAggregatorFetchPropagatesError(t *testing.T) {
	source := &fakeSource{err: apperr.New(apperr.CodeFetch, "rpc down")}
	agg := New(source, staticSymbols{}, zerolog.Nop())
	if _, err := agg.Fetch(context.Background()); err == nil {
		t.Fatal("want error")
	}
}
