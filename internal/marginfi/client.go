package marginfi

import (
	"context"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/solana"
)

// GroupConfig identifies a protocol deployment.
type GroupConfig struct {
	ProgramID string
	Group     string
}

const (
	productionProgramID = "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA"
	stagingProgramID    = "stag8sTKds2h4KzjUw3zKTsxbqvT4XKHdaR9X9E6Rct"
)

// ConfigFor returns the deployment defaults for a network selector. Group is
// left empty so all of the program's banks are read; deployments with
// multiple groups narrow it via configuration.
func ConfigFor(network string) GroupConfig {
	if network == "dev" {
		return GroupConfig{ProgramID: stagingProgramID}
	}
	return GroupConfig{ProgramID: productionProgramID}
}

// GroupState is one complete read of the deployment: every decodable bank
// plus any oracle price available per bank address.
type GroupState struct {
	Banks  []*Bank
	Prices map[string]OraclePrice
}

// PriceFor returns the oracle price for a bank address, if one was read.
func (g *GroupState) PriceFor(bankAddress string) (OraclePrice, bool) {
	p, ok := g.Prices[bankAddress]
	return p, ok
}

// Source yields group state; the live RPC client and the offline snapshot
// loader are interchangeable behind it.
type Source interface {
	FetchGroup(ctx context.Context) (*GroupState, error)
}

// Client reads bank accounts and oracle prices from a Solana RPC endpoint.
type Client struct {
	rpc *solana.Client
	cfg GroupConfig
	log zerolog.Logger
}

func NewClient(rpc *solana.Client, cfg GroupConfig, log zerolog.Logger) *Client {
	return &Client{rpc: rpc, cfg: cfg, log: log.With().Str("component", "marginfi").Logger()}
}

// FetchGroup reads every bank account of the configured deployment. A bank
// that fails to decode is skipped; a failed RPC read aborts the whole cycle.
func (c *Client) FetchGroup(ctx context.Context) (*GroupState, error) {
	filters := []solana.Filter{
		{Memcmp: &solana.Memcmp{Offset: 0, Bytes: base58.Encode(BankDiscriminator())}},
	}
	if c.cfg.Group != "" {
		// Group pubkey sits right after the mint + decimals fields.
		filters = append(filters, solana.Filter{Memcmp: &solana.Memcmp{Offset: 41, Bytes: c.cfg.Group}})
	}

	accounts, err := c.rpc.GetProgramAccounts(ctx, c.cfg.ProgramID, filters)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetch, "fetch bank accounts", err)
	}
	if len(accounts) == 0 {
		return nil, apperr.New(apperr.CodeFetch, "deployment returned no bank accounts")
	}

	banks := make([]*Bank, 0, len(accounts))
	for _, acct := range accounts {
		bank, err := DecodeBank(acct.Pubkey, acct.Data)
		if err != nil {
			c.log.Warn().Err(err).Str("bank", acct.Pubkey).Msg("skipping undecodable bank")
			continue
		}
		banks = append(banks, bank)
	}
	if len(banks) == 0 {
		return nil, apperr.New(apperr.CodeDecode, "no bank account decoded successfully")
	}

	prices, err := c.fetchPrices(ctx, banks)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("banks", len(banks)).Int("priced", len(prices)).Msg("group state fetched")
	return &GroupState{Banks: banks, Prices: prices}, nil
}

func (c *Client) fetchPrices(ctx context.Context, banks []*Bank) (map[string]OraclePrice, error) {
	keys := make([]string, 0, len(banks))
	keyIndex := make(map[string]int, len(banks))
	for _, bank := range banks {
		key := bank.OracleKey()
		if key == "" {
			continue
		}
		if _, seen := keyIndex[key]; !seen {
			keyIndex[key] = len(keys)
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return map[string]OraclePrice{}, nil
	}

	accounts, err := c.rpc.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeFetch, "fetch oracle accounts", err)
	}

	prices := make(map[string]OraclePrice, len(banks))
	for _, bank := range banks {
		key := bank.OracleKey()
		if key == "" {
			continue
		}
		idx, ok := keyIndex[key]
		if !ok || accounts[idx] == nil {
			continue
		}
		price, ok := DecodeOraclePrice(bank.Config.OracleSetup, accounts[idx].Data)
		if !ok {
			c.log.Debug().Str("bank", bank.Address).Str("oracle", key).Msg("oracle account undecodable, bank stays unpriced")
			continue
		}
		prices[bank.Address] = price
	}
	return prices, nil
}
