package binance

import (
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/factory"
)

// init() automatically registers the Binance adapter factory
func init() {
	factory.Register(model.VenueBinance, func(d factory.Deps) (factory.Venue, error) {
		restURL, wsURL := TestnetRestURL, TestnetWsURL
		if d.Mainnet {
			restURL, wsURL = MainnetRestURL, MainnetWsURL
		}
		if d.Config.RestURL != "" {
			restURL = d.Config.RestURL
		}
		if d.Config.WsURL != "" {
			wsURL = d.Config.WsURL
		}
		mgr := NewPerpetualManager(d.Creds.APIKey, d.Creds.APISecret, restURL, wsURL, d.Limiter)
		adapter := NewAdapter(mgr)
		return factory.Venue{Adapter: adapter, Funding: NewFundingSource(mgr, adapter)}, nil
	})
}
