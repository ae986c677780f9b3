package mexc

import "context"

// AccountAPI wraps the private account endpoints.
type AccountAPI interface {
	Assets(ctx context.Context) ([]AssetData, error)
}

// Assets fetches the account's asset balances.
func (c *Client) Assets(ctx context.Context) ([]AssetData, error) {
	var assets []AssetData
	if err := c.get(ctx, "/api/v1/private/account/assets", nil, true, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}
