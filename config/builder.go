package config

import (
	"github.com/jpalmerr/pushcast"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The returned options cover every field of cfg. Callers append their own
// (logger, hooks, callbacks) before passing them to [pushcast.New].
func BuildOptions(cfg *Config) []pushcast.Option {
	opts := []pushcast.Option{
		pushcast.WithTitle(cfg.Title),
		pushcast.WithHost(cfg.Host),
		pushcast.WithPort(cfg.Port),
		pushcast.WithSubject(cfg.VAPID.Subject),
		pushcast.WithMaxConcurrency(cfg.Delivery.MaxConcurrency),
		pushcast.WithDeliveryTimeout(cfg.Delivery.Timeout.Duration()),
		pushcast.WithUrgency(cfg.Delivery.Urgency),
	}

	if cfg.Delivery.TTL != nil {
		opts = append(opts, pushcast.WithTTL(cfg.Delivery.TTL.Duration()))
	}

	if cfg.PublicURL != "" {
		opts = append(opts, pushcast.WithPublicURL(cfg.PublicURL))
	}

	// without keys the SDK generates a temporary pair
	if cfg.HasKeys() {
		opts = append(opts, pushcast.WithVAPIDKeys(cfg.VAPID.PublicKey, cfg.VAPID.PrivateKey))
	}

	return opts
}
