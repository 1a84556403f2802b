// Package ammclient adapts the AMM router used to swap harvested yield
// into the payout asset during epoch cycling, following the same thin
// HTTP-envelope shape as vaultclient.
package ammclient

import (
	"context"
	"encoding/json"

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

type swapRequest struct {
	TokenIn      string `json:"token_in"`
	TokenOut     string `json:"token_out"`
	AmountIn     int64  `json:"amount_in"`
	MinAmountOut int64  `json:"min_amount_out"`
}

type swapResponse struct {
	AmountOut int64 `json:"amount_out"`
}

// SwapExactIn swaps amountIn of tokenIn for tokenOut (both asset
// addresses, matching Config.YieldToken/PayoutToken), reverting with
// ErrSwapError if the router cannot fill at least minAmountOut — the
// slippage floor the epoch package computes from Config.SlippageToleranceBps.
func (c *Client) SwapExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn, minAmountOut int64) (amountOut int64, err error) {
	body, err := json.Marshal(swapRequest{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, MinAmountOut: minAmountOut})
	if err != nil {
		return 0, blenderrors.ErrMarshal
	}
	status, respBody, err := c.HTTP.HttpRequest(ctx, c.BaseURL+"/swap_exact_in", "POST", map[string]string{"Content-Type": "application/json"}, string(body))
	if err != nil || status < 200 || status >= 300 {
		return 0, blenderrors.ErrSwapError
	}
	var resp swapResponse
	if err := json.Unmarshal([]byte(respBody), &resp); err != nil {
		return 0, blenderrors.ErrUnmarshal
	}
	if resp.AmountOut < minAmountOut {
		return 0, blenderrors.ErrSwapError
	}
	return resp.AmountOut, nil
}

type quoteResponse struct {
	AmountOut int64 `json:"amount_out"`
}

// QuoteExactIn returns the router's current best-effort quote, used only
// to compute the slippage floor passed to SwapExactIn — never trusted as
// the executed price.
func (c *Client) QuoteExactIn(ctx context.Context, tokenIn, tokenOut string, amountIn int64) (amountOut int64, err error) {
	body, err := json.Marshal(swapRequest{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn})
	if err != nil {
		return 0, blenderrors.ErrMarshal
	}
	status, respBody, err := c.HTTP.HttpRequest(ctx, c.BaseURL+"/quote_exact_in", "POST", map[string]string{"Content-Type": "application/json"}, string(body))
	if err != nil || status < 200 || status >= 300 {
		return 0, blenderrors.ErrSwapError
	}
	var resp quoteResponse
	if err := json.Unmarshal([]byte(respBody), &resp); err != nil {
		return 0, blenderrors.ErrUnmarshal
	}
	return resp.AmountOut, nil
}
