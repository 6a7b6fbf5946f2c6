// Package chain provides an HTTP client for the wallet/broadcast sidecar
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	perr "tipjar/internal/platform/errors"
	"tipjar/internal/platform/logger"
)

const (
	defaultTimeout = 8 * time.Second
	defaultUA      = "tipjar-engine"
)

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string // bearer token for the sidecar, optional
	UserAgent string
	Timeout   time.Duration
}

// Client issues single-attempt calls against the sidecar.
// Retry policy lives with the executors, not here
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("chain"),
	}
}

// TransferReq asks the sidecar to move tokens
type TransferReq struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Token  string  `json:"token"`
	Amount float64 `json:"amount"`
	Memo   string  `json:"memo,omitempty"`
}

// TransferResp is the broadcast acknowledgement
type TransferResp struct {
	TxID string `json:"tx_id"`
}

// VoteReq asks the sidecar to broadcast a vote
type VoteReq struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int    `json:"weight"` // percent, signed
}

// Balance is an account's token position
type Balance struct {
	Liquid float64 `json:"liquid"`
	Staked float64 `json:"staked"`
}

// Account is the subset of account facts tipjar cares about
type Account struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteState reports any existing vote by voter on the target
type VoteState struct {
	Voted  bool `json:"voted"`
	Weight int  `json:"weight"`
}

// Transfer broadcasts a token transfer and returns the tx id
func (c *Client) Transfer(ctx context.Context, req TransferReq) (string, error) {
	var out TransferResp
	if err := c.do(ctx, http.MethodPost, "/v1/transfer", req, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// Vote broadcasts a weighted vote on author/permlink
func (c *Client) Vote(ctx context.Context, req VoteReq) error {
	return c.do(ctx, http.MethodPost, "/v1/vote", req, nil)
}

// BalanceOf reads an account's token balance
func (c *Client) BalanceOf(ctx context.Context, account, token string) (Balance, error) {
	var out Balance
	path := fmt.Sprintf("/v1/balances/%s/%s", account, token)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Balance{}, err
	}
	return out, nil
}

// AccountOf reads account facts used for eligibility
func (c *Client) AccountOf(ctx context.Context, name string) (Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+name, nil, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

// VoteStateOf reads whether voter already voted on author/permlink
func (c *Client) VoteStateOf(ctx context.Context, voter, author, permlink string) (VoteState, error) {
	var out VoteState
	path := fmt.Sprintf("/v1/votes/%s/%s/%s", voter, author, permlink)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return VoteState{}, err
	}
	return out, nil
}

// sidecarError is the error envelope the sidecar returns on non-2xx
type sidecarError struct {
	Error string `json:"error"`
}

// do issues one request and maps failures onto project error codes
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "chain encode %s", path)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "chain new request %s", path)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "chain %s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErr(resp.Body)
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("msg", msg).
			Msg("chain call failed")
		return perr.FromChainStatus(resp.StatusCode, fmt.Sprintf("%s %s: %s", method, path, msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "chain decode %s", path)
	}
	return nil
}

func readErr(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var se sidecarError
	if json.Unmarshal(b, &se) == nil && se.Error != "" {
		return se.Error
	}
	if len(b) == 0 {
		return "no body"
	}
	return string(b)
}
