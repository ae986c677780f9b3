package mexc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// MarketAPI wraps the public market-data endpoints. The adapter depends on
// this interface so tests can substitute fakes.
type MarketAPI interface {
	ContractDetails(ctx context.Context) ([]ContractDetail, error)
	Ticker(ctx context.Context, symbol string) (*TickerData, error)
	Depth(ctx context.Context, symbol string, limit int) (*DepthData, error)
	Deals(ctx context.Context, symbol string, limit int) ([]DealData, error)
}

// ContractDetails fetches metadata for every listed contract.
func (c *Client) ContractDetails(ctx context.Context) ([]ContractDetail, error) {
	var details []ContractDetail
	if err := c.get(ctx, "/api/v1/contract/detail", nil, false, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// Ticker fetches the latest top-of-book snapshot for one contract.
func (c *Client) Ticker(ctx context.Context, symbol string) (*TickerData, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var data TickerData
	if err := c.get(ctx, "/api/v1/contract/ticker", params, false, &data); err != nil {
		return nil, err
	}
	if data.Symbol == "" {
		data.Symbol = symbol
	}
	return &data, nil
}

// Depth fetches an order book snapshot.
func (c *Client) Depth(ctx context.Context, symbol string, limit int) (*DepthData, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var data DepthData
	path := fmt.Sprintf("/api/v1/contract/depth/%s", symbol)
	if err := c.get(ctx, path, params, false, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Deals fetches recent public trades, newest first.
func (c *Client) Deals(ctx context.Context, symbol string, limit int) ([]DealData, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var data []DealData
	path := fmt.Sprintf("/api/v1/contract/deals/%s", symbol)
	if err := c.get(ctx, path, params, false, &data); err != nil {
		return nil, err
	}
	return data, nil
}
