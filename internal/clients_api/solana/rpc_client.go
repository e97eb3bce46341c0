package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"solana-wallet/internal/features/valuation"
	"solana-wallet/internal/infra/log"
	"solana-wallet/internal/infra/transport"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	TokenProgramID    = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	DefaultCommitment = "confirmed"
)

type Options struct {
	Endpoint     string
	TokenProgram string
	Commitment   string
	// Transport defaults to a transport.Client named "solana-rpc".
	Transport *transport.Client
}

// Client reads SPL token balances over Solana JSON-RPC.
type Client struct {
	endpoint     string
	tokenProgram string
	commitment   string
	http         *transport.Client
	requestID    atomic.Uint64
}

func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultRPCURL
	}
	if opts.TokenProgram == "" {
		opts.TokenProgram = TokenProgramID
	}
	if opts.Commitment == "" {
		opts.Commitment = DefaultCommitment
	}
	if opts.Transport == nil {
		opts.Transport = transport.New(transport.Options{Name: "solana-rpc"})
	}
	return &Client{
		endpoint:     opts.Endpoint,
		tokenProgram: opts.TokenProgram,
		commitment:   opts.Commitment,
		http:         opts.Transport,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object returned by the node. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := c.http.Do(ctx, http.MethodPost, c.endpoint, req)
	if err != nil {
		return err
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
	}
	return nil
}

// TokenAmount is the raw integer amount plus the mint's decimals.
type TokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int32  `json:"decimals"`
}

type TokenAccountInfo struct {
	Mint        string      `json:"mint"`
	Owner       string      `json:"owner"`
	TokenAmount TokenAmount `json:"tokenAmount"`
}

type TokenAccount struct {
	Pubkey string
	Info   TokenAccountInfo
}

type tokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data json.RawMessage `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

type parsedAccountData struct {
	Parsed struct {
		Info TokenAccountInfo `json:"info"`
		Type string           `json:"type"`
	} `json:"parsed"`
}

// GetTokenAccountsByOwner lists the owner's token accounts for the configured token program.
// Accounts whose data is not jsonParsed are skipped.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]TokenAccount, error) {
	params := []interface{}{
		owner,
		map[string]string{"programId": c.tokenProgram},
		map[string]string{"encoding": "jsonParsed", "commitment": c.commitment},
	}

	var result tokenAccountsResult
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]TokenAccount, 0, len(result.Value))
	for _, v := range result.Value {
		var data parsedAccountData
		if err := json.Unmarshal(v.Account.Data, &data); err != nil || data.Parsed.Info.Mint == "" {
			log.LogWarn("Skipping token account without parsed data", zap.String("account", v.Pubkey))
			continue
		}
		accounts = append(accounts, TokenAccount{Pubkey: v.Pubkey, Info: data.Parsed.Info})
	}
	return accounts, nil
}

// Normalize converts a raw integer amount into token units.
func (a TokenAmount) Normalize() (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid token amount %q: %w", a.Amount, err)
	}
	return raw.Shift(-a.Decimals), nil
}

// FetchBalances returns one holding per mint with a non-zero balance.
// Several accounts of the same mint are summed, keeping first-seen order.
func (c *Client) FetchBalances(ctx context.Context, wallet string) ([]valuation.Holding, error) {
	accounts, err := c.GetTokenAccountsByOwner(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token accounts for %s: %w", wallet, err)
	}

	index := make(map[string]int)
	var holdings []valuation.Holding
	for _, acc := range accounts {
		qty, err := acc.Info.TokenAmount.Normalize()
		if err != nil {
			log.LogWarn("Skipping token account with bad amount",
				zap.String("account", acc.Pubkey),
				zap.String("mint", acc.Info.Mint),
				zap.Error(err))
			continue
		}
		if qty.IsZero() {
			continue
		}

		if i, ok := index[acc.Info.Mint]; ok {
			holdings[i].Quantity = holdings[i].Quantity.Add(qty)
			continue
		}
		index[acc.Info.Mint] = len(holdings)
		holdings = append(holdings, valuation.Holding{AssetID: acc.Info.Mint, Quantity: qty})
	}

	log.LogDebug("Fetched wallet balances",
		zap.String("wallet", wallet),
		zap.Int("accounts", len(accounts)),
		zap.Int("holdings", len(holdings)))
	return holdings, nil
}
