// Package aggregator assembles bank reports and caches the latest snapshot.
package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/marginfi"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/report"
)

// SymbolResolver maps a mint address to a display symbol.
type SymbolResolver interface {
	Symbol(ctx context.Context, mint string) string
}

// Aggregator runs one full fetch cycle: read group state, resolve symbols,
// and compute every bank's report.
type Aggregator struct {
	source  marginfi.Source
	symbols SymbolResolver
	log     zerolog.Logger
	now     func() time.Time
}

func New(source marginfi.Source, symbols SymbolResolver, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		source:  source,
		symbols: symbols,
		log:     log.With().Str("component", "aggregator").Logger(),
		now:     time.Now,
	}
}

// Fetch produces a fresh collection. Any chain-read failure aborts the whole
// cycle; a bank without a price still gets a report, just an unpriced one.
func (a *Aggregator) Fetch(ctx context.Context) (*report.Collection, error) {
	state, err := a.source.FetchGroup(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*report.BankReport, 0, len(state.Banks))
	unpriced := 0
	for _, bank := range state.Banks {
		price, priced := state.PriceFor(bank.Address)
		if !priced {
			unpriced++
		}
		symbol := a.symbols.Symbol(ctx, bank.Mint)
		reports = append(reports, report.Build(bank, price, priced, symbol))
	}

	// A stable order keeps successive snapshots comparable.
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Address < reports[j].Address })

	a.log.Info().
		Int("banks", len(reports)).
		Int("unpriced", unpriced).
		Msg("fetch cycle complete")
	return &report.Collection{Reports: reports, FetchedAt: a.now()}, nil
}
