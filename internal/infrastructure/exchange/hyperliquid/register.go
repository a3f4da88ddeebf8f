package hyperliquid

import (
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/factory"
)

// init() automatically registers the Hyperliquid adapter factory
func init() {
	factory.Register(model.VenueHyperliquid, func(d factory.Deps) (factory.Venue, error) {
		baseURL := TestnetURL
		if d.Mainnet {
			baseURL = MainnetURL
		}
		if d.Config.RestURL != "" {
			baseURL = d.Config.RestURL
		}
		info := NewInfoClient(baseURL, d.Limiter)
		exc := NewExchangeClient(baseURL, d.Creds.PrivateKey, d.Creds.Account, info, d.Limiter)
		return factory.Venue{Adapter: NewAdapter(info, exc), Funding: NewFundingSource(info)}, nil
	})
}
