package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingPolicy tunes the resolution engine and the override write path.
// It lives in pricing.yml so operators can adjust it without a redeploy.
type PricingPolicy struct {
	// ResolveTimeout bounds a single resolution call; on expiry the engine
	// degrades to "no pricing available".
	ResolveTimeout time.Duration `mapstructure:"resolveTimeout"`
	// Currency is informational, stamped on resolution responses.
	Currency string `mapstructure:"currency"`
	// SkipNoopWrites controls whether re-applying an unchanged override
	// creates a new version (false) or leaves the current row untouched (true).
	SkipNoopWrites bool `mapstructure:"skipNoopWrites"`
	// WriteLockTTL bounds how long one apply call may hold the
	// per-(client,service) lock.
	WriteLockTTL time.Duration `mapstructure:"writeLockTTL"`
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		ResolveTimeout: 1500 * time.Millisecond,
		Currency:       "EUR",
		SkipNoopWrites: true,
		WriteLockTTL:   5 * time.Second,
	}
}

type PricingPolicyHolder struct {
	current atomic.Value // holds PricingPolicy
}

func NewPricingPolicyHolder() (*PricingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/faretable/config")
	v.AddConfigPath("/etc/faretable")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FARETABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingPolicy()
	v.SetDefault("pricing.resolveTimeout", defaults.ResolveTimeout)
	v.SetDefault("pricing.currency", defaults.Currency)
	v.SetDefault("pricing.skipNoopWrites", defaults.SkipNoopWrites)
	v.SetDefault("pricing.writeLockTTL", defaults.WriteLockTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy PricingPolicy
	if err := v.UnmarshalKey("pricing", &policy); err != nil {
		return nil, err
	}
	if err := validatePricingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingPolicy
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingPolicy(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingPolicyHolder wraps a fixed policy; used by tests.
func NewStaticPricingPolicyHolder(policy PricingPolicy) *PricingPolicyHolder {
	holder := &PricingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *PricingPolicyHolder) Get() PricingPolicy {
	return h.current.Load().(PricingPolicy)
}

func validatePricingPolicy(policy PricingPolicy) error {
	if policy.ResolveTimeout <= 0 {
		return errors.New("pricing.resolveTimeout must be positive")
	}
	if strings.TrimSpace(policy.Currency) == "" {
		return errors.New("pricing.currency cannot be empty")
	}
	if policy.WriteLockTTL <= 0 {
		return errors.New("pricing.writeLockTTL must be positive")
	}
	return nil
}
