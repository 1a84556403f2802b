// Package tokenclient adapts the external token ledger that actually
// moves payout-asset balances: paying claimed rewards out to players and
// sweeping leftover dust to the treasury. Same thin HTTP-envelope shape
// as vaultclient and ammclient.
package tokenclient

import (
	"context"
	"encoding/json"
	"net/url"

	blenderrors "github.com/blendizzard/block-server/errors"
	"github.com/blendizzard/block-server/nkport"
)

type Client struct {
	HTTP    nkport.HTTPClient
	BaseURL string
}

func New(http nkport.HTTPClient, baseURL string) *Client {
	return &Client{HTTP: http, BaseURL: baseURL}
}

type transferRequest struct {
	Token       string `json:"token"`
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

// Transfer pays amount of token (an asset address, matching
// Config.YieldToken/PayoutToken) to destination. Used both for reward
// payout (destination is the claiming player's user ID) and dust
// sweeps (destination is Config.Treasury).
func (c *Client) Transfer(ctx context.Context, token string, destination string, amount int64) error {
	body, err := json.Marshal(transferRequest{Token: token, Destination: destination, Amount: amount})
	if err != nil {
		return blenderrors.ErrMarshal
	}
	status, _, err := c.HTTP.HttpRequest(ctx, c.BaseURL+"/transfer", "POST", map[string]string{"Content-Type": "application/json"}, string(body))
	if err != nil || status < 200 || status >= 300 {
		return blenderrors.ErrTokenTransferError
	}
	return nil
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

// BalanceOf returns the ledger's current balance of token for address.
func (c *Client) BalanceOf(ctx context.Context, token string, address string) (int64, error) {
	q := url.Values{"token": {token}, "address": {address}}
	status, respBody, err := c.HTTP.HttpRequest(ctx, c.BaseURL+"/balance?"+q.Encode(), "GET", nil, "")
	if err != nil || status < 200 || status >= 300 {
		return 0, blenderrors.ErrTokenTransferError
	}
	var resp balanceResponse
	if err := json.Unmarshal([]byte(respBody), &resp); err != nil {
		return 0, blenderrors.ErrUnmarshal
	}
	return resp.Balance, nil
}

