package mexc

import "encoding/json"

// Wire shapes for the MEXC contract (USDT-M perpetual) REST API. Prices and
// volumes arrive as JSON numbers; they are kept as json.Number and parsed
// into decimals at the mapping boundary to avoid float precision loss.

// Side codes combine direction with position effect.
const (
	sideOpenLong   = 1
	sideCloseShort = 2
	sideOpenShort  = 3
	sideCloseLong  = 4
)

// Order type codes. The venue has no native market order type; market
// semantics are emulated with an IOC limit order.
const (
	orderTypeLimit = 1
	orderTypeIOC   = 3
	// Execution type for trigger (plan) orders once fired.
	orderTypeTriggerMarket = 5
)

// Open type codes (margin mode).
const (
	openTypeIsolated = 1
	openTypeCross    = 2
)

// Order state codes.
const (
	orderStateUninformed  = 1
	orderStateUncompleted = 2
	orderStateCompleted   = 3
	orderStateCancelled   = 4
	orderStateInvalid     = 5
)

// Trigger type codes: trigger fires when price crosses the threshold in the
// given direction.
const (
	triggerGTE = 1 // price >= triggerPrice
	triggerLTE = 2 // price <= triggerPrice
)

// Trigger order states.
const triggerStateUntriggered = 1

// apiResponse is the common envelope of every endpoint.
type apiResponse struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ContractDetail is one row of /api/v1/contract/detail. Field names vary
// across API revisions; alternates are resolved in the loader.
type ContractDetail struct {
	Symbol        string      `json:"symbol"`
	BaseCoin      string      `json:"baseCoin"`
	BaseCoinName  string      `json:"baseCoinName"`
	QuoteCoin     string      `json:"quoteCoin"`
	QuoteCoinName string      `json:"quoteCoinName"`
	PriceScale    int         `json:"priceScale"`
	VolScale      int         `json:"volScale"`
	PriceUnit     json.Number `json:"priceUnit"`
	VolUnit       json.Number `json:"volUnit"`
	MinVol        json.Number `json:"minVol"`
	MaxVol        json.Number `json:"maxVol"`
	MinLeverage   int         `json:"minLeverage"`
	MaxLeverage   int         `json:"maxLeverage"`
	ContractSize  json.Number `json:"contractSize"`
	MakerFeeRate  json.Number `json:"makerFeeRate"`
	TakerFeeRate  json.Number `json:"takerFeeRate"`
	APIAllowed    bool        `json:"apiAllowed"`
	State         int         `json:"state"`
}

// TickerData mirrors /api/v1/contract/ticker.
type TickerData struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"lastPrice"`
	Bid1      float64 `json:"bid1"`
	Ask1      float64 `json:"ask1"`
	Volume24  float64 `json:"volume24"`
	Timestamp int64   `json:"timestamp"`
}

// DepthData mirrors /api/v1/contract/depth/{symbol}. Levels are
// [price, vol, orderCount] triples.
type DepthData struct {
	Asks      [][]float64 `json:"asks"`
	Bids      [][]float64 `json:"bids"`
	Timestamp int64       `json:"timestamp"`
}

// DealData mirrors one row of /api/v1/contract/deals/{symbol}.
type DealData struct {
	Price     float64 `json:"p"`
	Vol       float64 `json:"v"`
	Type      int     `json:"T"` // 1 buy, 2 sell
	Timestamp int64   `json:"t"`
}

// AssetData mirrors one row of /api/v1/private/account/assets.
type AssetData struct {
	Currency         string      `json:"currency"`
	Equity           json.Number `json:"equity"`
	AvailableBalance json.Number `json:"availableBalance"`
	PositionMargin   json.Number `json:"positionMargin"`
	FrozenBalance    json.Number `json:"frozenBalance"`
	Unrealized       json.Number `json:"unrealized"`
}

// PositionData mirrors one row of /api/v1/private/position/open_positions.
type PositionData struct {
	PositionID   json.Number `json:"positionId"`
	Symbol       string      `json:"symbol"`
	PositionType int         `json:"positionType"` // 1 long, 2 short
	OpenType     int         `json:"openType"`     // 1 isolated, 2 cross
	HoldVol      json.Number `json:"holdVol"`
	OpenAvgPrice json.Number `json:"openAvgPrice"`
	Leverage     int         `json:"leverage"`
	Realised     json.Number `json:"realised"`
	// Optional fields, absent on older API revisions.
	MarkPrice  json.Number `json:"markPrice"`
	Unrealized json.Number `json:"unrealized"`
}

// SubmitOrderRequest is the payload of /api/v1/private/order/submit.
type SubmitOrderRequest struct {
	Symbol          string `json:"symbol"`
	Price           string `json:"price"`
	Vol             string `json:"vol"`
	Side            int    `json:"side"`
	Type            int    `json:"type"`
	OpenType        int    `json:"openType"`
	Leverage        int    `json:"leverage,omitempty"`
	ExternalOid     string `json:"externalOid,omitempty"`
	PositionID      string `json:"positionId,omitempty"`
	ReduceOnly      bool   `json:"reduceOnly,omitempty"`
	StopLossPrice   string `json:"stopLossPrice,omitempty"`
	TakeProfitPrice string `json:"takeProfitPrice,omitempty"`
}

// OrderData mirrors one row of the open/history order lists.
type OrderData struct {
	OrderID      json.Number `json:"orderId"`
	Symbol       string      `json:"symbol"`
	Price        json.Number `json:"price"`
	Vol          json.Number `json:"vol"`
	DealVol      json.Number `json:"dealVol"`
	DealAvgPrice json.Number `json:"dealAvgPrice"`
	Side         int         `json:"side"`
	Type         int         `json:"orderType"`
	OpenType     int         `json:"openType"`
	State        int         `json:"state"`
	ExternalOid  string      `json:"externalOid"`
	CreateTime   int64       `json:"createTime"`
	UpdateTime   int64       `json:"updateTime"`
}

// OrderDealData mirrors one row of /api/v1/private/order/list/order_deals.
type OrderDealData struct {
	ID          json.Number `json:"id"`
	OrderID     json.Number `json:"orderId"`
	Symbol      string      `json:"symbol"`
	Side        int         `json:"side"`
	Vol         json.Number `json:"vol"`
	Price       json.Number `json:"price"`
	Fee         json.Number `json:"fee"`
	FeeCurrency string      `json:"feeCurrency"`
	Timestamp   int64       `json:"timestamp"`
}

// TriggerOrderRequest is the payload of /api/v1/private/planorder/place.
type TriggerOrderRequest struct {
	Symbol       string `json:"symbol"`
	Vol          string `json:"vol"`
	Side         int    `json:"side"`
	OpenType     int    `json:"openType"`
	TriggerPrice string `json:"triggerPrice"`
	TriggerType  int    `json:"triggerType"`
	ExecuteCycle int    `json:"executeCycle"` // 1: 24h, 2: 7 days
	OrderType    int    `json:"orderType"`
	Trend        int    `json:"trend"` // 1: latest price
	ExternalOid  string `json:"externalOid,omitempty"`
}

// TriggerOrderData mirrors one row of /api/v1/private/planorder/list/orders.
type TriggerOrderData struct {
	ID           json.Number `json:"id"`
	Symbol       string      `json:"symbol"`
	Vol          json.Number `json:"vol"`
	Side         int         `json:"side"`
	OpenType     int         `json:"openType"`
	TriggerPrice json.Number `json:"triggerPrice"`
	TriggerType  int         `json:"triggerType"`
	State        int         `json:"state"`
	CreateTime   int64       `json:"createTime"`
}

// cancelResult is one row of the cancel endpoint's response.
type cancelResult struct {
	OrderID   json.Number `json:"orderId"`
	ErrorCode int         `json:"errorCode"`
	ErrorMsg  string      `json:"errorMsg"`
}
