package okx

import (
	"errors"

	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/factory"
)

// init() automatically registers the OKX adapter factory
func init() {
	factory.Register(model.VenueOKX, func(d factory.Deps) (factory.Venue, error) {
		if d.Creds.APIKey != "" && d.Creds.Passphrase == "" {
			return factory.Venue{}, errors.New("okx: passphrase cannot be empty")
		}
		restURL, wsURL := RestURL, TestnetWsURL
		if d.Mainnet {
			wsURL = MainnetWsURL
		}
		if d.Config.RestURL != "" {
			restURL = d.Config.RestURL
		}
		if d.Config.WsURL != "" {
			wsURL = d.Config.WsURL
		}
		creds := NewCredentials(d.Creds.APIKey, d.Creds.APISecret, d.Creds.Passphrase)
		mgr := NewPerpetualManager(creds, restURL, wsURL, !d.Mainnet, d.Limiter)
		adapter := NewAdapter(mgr)
		return factory.Venue{Adapter: adapter, Funding: NewFundingSource(mgr, adapter)}, nil
	})
}
