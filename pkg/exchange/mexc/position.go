package mexc

import "context"

// PositionAPI wraps the private position endpoints.
type PositionAPI interface {
	OpenPositions(ctx context.Context) ([]PositionData, error)
}

// OpenPositions fetches all currently held positions.
func (c *Client) OpenPositions(ctx context.Context) ([]PositionData, error) {
	var positions []PositionData
	if err := c.get(ctx, "/api/v1/private/position/open_positions", nil, true, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}
