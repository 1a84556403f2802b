// Package vaultclient adapts the yield-bearing vault that actually
// custodies deposited funds behind a narrow interface, the same way the
// teacher isolates every external collaborator (matchmaker, leaderboard
// service) behind a package boundary rather than inlining HTTP calls at
// the call site. Nakama modules cannot dial arbitrary sockets directly;
// runtime.NakamaModule.HttpRequest is the sandboxed egress path, so every
// method here is a thin JSON-over-HTTP envelope around it.
package vaultclient

import (
	"context"
	"encoding/json"

	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/nkport"
)

// Client talks to the vault at baseURL.
type Client struct {
	HTTP    nkport.HTTPClient
	BaseURL string
}

func New(http nkport.HTTPClient, baseURL string) *Client {
	return &Client{HTTP: http, BaseURL: baseURL}
}

type depositRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type depositResponse struct {
	Shares int64 `json:"shares"`
}

// Deposit moves amount (7-decimal fixed point) of the reserve asset into
// the vault on behalf of userID and returns the vault shares minted.
func (c *Client) Deposit(ctx context.Context, userID string, amount int64) (shares int64, err error) {
	var resp depositResponse
	if err := c.post(ctx, "/deposit", depositRequest{UserID: userID, Amount: amount}, &resp); err != nil {
		return 0, err
	}
	return resp.Shares, nil
}

type withdrawRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type withdrawResponse struct {
	Paid int64 `json:"paid"`
}

// Withdraw redeems amount of the reserve asset from the vault for userID.
// Paid may be less than amount if the vault applies exit slippage.
func (c *Client) Withdraw(ctx context.Context, userID string, amount int64) (paid int64, err error) {
	var resp withdrawResponse
	if err := c.post(ctx, "/withdraw", withdrawRequest{UserID: userID, Amount: amount}, &resp); err != nil {
		return 0, err
	}
	return resp.Paid, nil
}

// AdminWithdraw pulls amount of the protocol's own vault balance to
// destination, bypassing the per-player accounting path entirely.
// cycle_epoch's harvest uses it to withdraw the protocol's underlying
// balance.
func (c *Client) AdminWithdraw(ctx context.Context, destination string, amount int64) (paid int64, err error) {
	var resp withdrawResponse
	if err := c.post(ctx, "/admin_withdraw", struct {
		Destination string `json:"destination"`
		Amount      int64  `json:"amount"`
	}{Destination: destination, Amount: amount}, &resp); err != nil {
		return 0, err
	}
	return resp.Paid, nil
}

type claimEmissionsRequest struct {
	ReserveTokenIDs []uint32 `json:"reserve_token_ids"`
}

type claimEmissionsResponse struct {
	Harvested int64 `json:"harvested"`
}

// ClaimEmissions collects accrued yield across the reserve assets named
// by reserveIDs, the second half of the epoch harvest pipeline.
func (c *Client) ClaimEmissions(ctx context.Context, reserveIDs []uint32) (harvested int64, err error) {
	var resp claimEmissionsResponse
	if err := c.post(ctx, "/claim_emissions", claimEmissionsRequest{ReserveTokenIDs: reserveIDs}, &resp); err != nil {
		return 0, err
	}
	return resp.Harvested, nil
}

type underlyingResponse struct {
	Balance int64 `json:"balance"`
}

// GetUnderlying returns the protocol's current underlying-asset balance
// held in the vault, used to measure total deposits at epoch close.
func (c *Client) GetUnderlying(ctx context.Context) (balance int64, err error) {
	var resp underlyingResponse
	if err := c.get(ctx, "/underlying", &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *Client) post(ctx context.Context, path string, req interface{}, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return blenderrors.ErrMarshal
	}
	status, respBody, err := c.HTTP.HttpRequest(ctx, c.BaseURL+path, "POST", map[string]string{"Content-Type": "application/json"}, string(body))
	if err != nil {
		return blenderrors.ErrVaultError
	}
	if status < 200 || status >= 300 {
		return blenderrors.ErrVaultError
	}
	if out != nil {
		if err := json.Unmarshal([]byte(respBody), out); err != nil {
			return blenderrors.ErrUnmarshal
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	status, respBody, err := c.HTTP.HttpRequest(ctx, c.BaseURL+path, "GET", nil, "")
	if err != nil {
		return blenderrors.ErrVaultError
	}
	if status < 200 || status >= 300 {
		return blenderrors.ErrVaultError
	}
	if err := json.Unmarshal([]byte(respBody), out); err != nil {
		return blenderrors.ErrUnmarshal
	}
	return nil
}
