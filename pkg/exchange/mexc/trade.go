package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// TradeAPI wraps the private order and leverage endpoints.
type TradeAPI interface {
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) (string, error)
	CancelOrders(ctx context.Context, orderIDs []string) error
	OpenOrders(ctx context.Context) ([]OrderData, error)
	HistoryOrders(ctx context.Context, limit int) ([]OrderData, error)
	OrderDeals(ctx context.Context, startMs, endMs int64) ([]OrderDealData, error)
	PlaceTrigger(ctx context.Context, req TriggerOrderRequest) (string, error)
	CancelTrigger(ctx context.Context, symbol, orderID string) error
	OpenTriggerOrders(ctx context.Context) ([]TriggerOrderData, error)
	ChangeLeverage(ctx context.Context, symbol string, leverage, openType int) error
	ChangeMarginMode(ctx context.Context, symbol string, openType int) error
}

// SubmitOrder places an order and returns the venue-assigned order id.
func (c *Client) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (string, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/api/v1/private/order/submit", req, &raw); err != nil {
		return "", err
	}
	return decodeOrderID(raw)
}

// CancelOrders cancels resting orders by id. Per-order failures are folded
// into one error.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	var results []cancelResult
	if err := c.post(ctx, "/api/v1/private/order/cancel", orderIDs, &results); err != nil {
		return err
	}
	for _, res := range results {
		if res.ErrorCode != 0 {
			return fmt.Errorf("mexc: cancel order %s failed: code %d: %s",
				res.OrderID.String(), res.ErrorCode, res.ErrorMsg)
		}
	}
	return nil
}

// OpenOrders lists all currently resting orders across symbols.
func (c *Client) OpenOrders(ctx context.Context) ([]OrderData, error) {
	params := url.Values{}
	params.Set("page_num", "1")
	params.Set("page_size", "100")
	var orders []OrderData
	if err := c.get(ctx, "/api/v1/private/order/list/open_orders", params, true, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// HistoryOrders lists recent orders newest first, bounded by limit.
func (c *Client) HistoryOrders(ctx context.Context, limit int) ([]OrderData, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{}
	params.Set("page_num", "1")
	params.Set("page_size", strconv.Itoa(limit))
	var orders []OrderData
	if err := c.get(ctx, "/api/v1/private/order/list/history_orders", params, true, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderDeals lists the account's fills inside the time window.
func (c *Client) OrderDeals(ctx context.Context, startMs, endMs int64) ([]OrderDealData, error) {
	params := url.Values{}
	if startMs > 0 {
		params.Set("start_time", strconv.FormatInt(startMs, 10))
	}
	if endMs > 0 {
		params.Set("end_time", strconv.FormatInt(endMs, 10))
	}
	params.Set("page_num", "1")
	params.Set("page_size", "100")
	var deals []OrderDealData
	if err := c.get(ctx, "/api/v1/private/order/list/order_deals", params, true, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// PlaceTrigger places a trigger (plan) order and returns its id.
func (c *Client) PlaceTrigger(ctx context.Context, req TriggerOrderRequest) (string, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/api/v1/private/planorder/place", req, &raw); err != nil {
		return "", err
	}
	return decodeOrderID(raw)
}

// CancelTrigger cancels a trigger order. The venue requires the symbol
// alongside the id.
func (c *Client) CancelTrigger(ctx context.Context, symbol, orderID string) error {
	body := []map[string]string{{"symbol": symbol, "orderId": orderID}}
	return c.post(ctx, "/api/v1/private/planorder/cancel", body, nil)
}

// OpenTriggerOrders lists untriggered plan orders.
func (c *Client) OpenTriggerOrders(ctx context.Context) ([]TriggerOrderData, error) {
	params := url.Values{}
	params.Set("states", strconv.Itoa(triggerStateUntriggered))
	var orders []TriggerOrderData
	if err := c.get(ctx, "/api/v1/private/planorder/list/orders", params, true, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ChangeLeverage updates leverage for a symbol.
func (c *Client) ChangeLeverage(ctx context.Context, symbol string, leverage, openType int) error {
	body := map[string]interface{}{
		"symbol":   symbol,
		"leverage": leverage,
		"openType": openType,
	}
	return c.post(ctx, "/api/v1/private/position/change_leverage", body, nil)
}

// ChangeMarginMode updates the margin (open) type for a symbol. The venue
// couples margin mode and leverage, so this must be issued before a
// leverage change.
func (c *Client) ChangeMarginMode(ctx context.Context, symbol string, openType int) error {
	body := map[string]interface{}{
		"symbol":   symbol,
		"openType": openType,
	}
	return c.post(ctx, "/api/v1/private/position/change_open_type", body, nil)
}
