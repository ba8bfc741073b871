package solana

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/httpx"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
)

// Client is a minimal Solana JSON-RPC client covering the account reads the
// aggregator needs.
type Client struct {
	http     *httpx.Client
	endpoint string
}

func NewClient(httpClient *httpx.Client, endpoint string) *Client {
	return &Client{http: httpClient, endpoint: endpoint}
}

// Account is a raw on-chain account with its decoded data buffer.
type Account struct {
	Pubkey string
	Owner  string
	Data   []byte
}

// Memcmp matches raw account bytes at an offset against base58-encoded bytes.
type Memcmp struct {
	Offset int    `json:"offset"`
	Bytes  string `json:"bytes"`
}

type Filter struct {
	Memcmp   *Memcmp `json:"memcmp,omitempty"`
	DataSize uint64  `json:"dataSize,omitempty"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type accountInfo struct {
	Owner string `json:"owner"`
	Data  []any  `json:"data"`
}

// GetProgramAccounts returns all accounts owned by programID that pass the
// given filters, with data base64-decoded.
func (c *Client) GetProgramAccounts(ctx context.Context, programID string, filters []Filter) ([]Account, error) {
	params := []any{
		programID,
		map[string]any{
			"encoding":   "base64",
			"commitment": "confirmed",
			"filters":    filters,
		},
	}

	var resp struct {
		Error  *rpcError `json:"error"`
		Result []struct {
			Pubkey  string      `json:"pubkey"`
			Account accountInfo `json:"account"`
		} `json:"result"`
	}
	if err := c.call(ctx, "getProgramAccounts", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, apperr.New(apperr.CodeFetch, fmt.Sprintf("getProgramAccounts rpc error %d: %s", resp.Error.Code, resp.Error.Message))
	}

	out := make([]Account, 0, len(resp.Result))
	for _, item := range resp.Result {
		data, err := decodeAccountData(item.Account.Data)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeFetch, fmt.Sprintf("account %s data", item.Pubkey), err)
		}
		out = append(out, Account{Pubkey: item.Pubkey, Owner: item.Account.Owner, Data: data})
	}
	return out, nil
}

// GetMultipleAccounts fetches up to 100 accounts in one call. Missing
// accounts come back as nil entries, preserving input order.
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*Account, error) {
	if len(pubkeys) == 0 {
		return nil, nil
	}

	out := make([]*Account, 0, len(pubkeys))
	const batch = 100
	for start := 0; start < len(pubkeys); start += batch {
		end := start + batch
		if end > len(pubkeys) {
			end = len(pubkeys)
		}
		chunk, err := c.getAccountsBatch(ctx, pubkeys[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) getAccountsBatch(ctx context.Context, pubkeys []string) ([]*Account, error) {
	params := []any{
		pubkeys,
		map[string]any{"encoding": "base64", "commitment": "confirmed"},
	}

	var resp struct {
		Error  *rpcError `json:"error"`
		Result struct {
			Value []*accountInfo `json:"value"`
		} `json:"result"`
	}
	if err := c.call(ctx, "getMultipleAccounts", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, apperr.New(apperr.CodeFetch, fmt.Sprintf("getMultipleAccounts rpc error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if len(resp.Result.Value) != len(pubkeys) {
		return nil, apperr.New(apperr.CodeFetch, fmt.Sprintf("getMultipleAccounts returned %d accounts for %d keys", len(resp.Result.Value), len(pubkeys)))
	}

	out := make([]*Account, len(pubkeys))
	for i, info := range resp.Result.Value {
		if info == nil {
			continue
		}
		data, err := decodeAccountData(info.Data)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeFetch, fmt.Sprintf("account %s data", pubkeys[i]), err)
		}
		out[i] = &Account{Pubkey: pubkeys[i], Owner: info.Owner, Data: data}
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	if _, err := c.http.PostJSON(ctx, c.endpoint, req, nil, out); err != nil {
		return apperr.Wrap(apperr.CodeFetch, method+" failed", err)
	}
	return nil
}

// decodeAccountData handles the ["<base64>", "base64"] tuple the RPC returns.
func decodeAccountData(raw []any) ([]byte, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("empty data tuple")
	}
	encoded, ok := raw[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected data payload type %T", raw[0])
	}
	if len(raw) > 1 {
		if enc, ok := raw[1].(string); ok && enc != "base64" {
			return nil, fmt.Errorf("unsupported account encoding %q", enc)
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return data, nil
}
