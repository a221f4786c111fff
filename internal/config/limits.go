package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TierDefault seeds the tier_limits table for a subscription tier. A nil
// daily limit means unlimited.
type TierDefault struct {
	Tier             string `mapstructure:"tier"`
	GeneralChatDaily *int64 `mapstructure:"generalChatDaily"`
	AdvisorChatDaily *int64 `mapstructure:"advisorChatDaily"`
	ContractAccess   bool   `mapstructure:"contractAccess"`
	DiscountRateBps  int64  `mapstructure:"discountRateBps"`
	PriorityWeight   int64  `mapstructure:"priorityWeight"`
}

type TierConfig struct {
	Defaults []TierDefault `mapstructure:"defaults"`
}

func DefaultTierConfig() TierConfig {
	return TierConfig{
		Defaults: []TierDefault{
			{Tier: "free", GeneralChatDaily: int64Ptr(5), AdvisorChatDaily: int64Ptr(0), ContractAccess: false, DiscountRateBps: 0, PriorityWeight: 1},
			{Tier: "pro", GeneralChatDaily: int64Ptr(50), AdvisorChatDaily: int64Ptr(20), ContractAccess: true, DiscountRateBps: 500, PriorityWeight: 5},
			{Tier: "premium", GeneralChatDaily: nil, AdvisorChatDaily: nil, ContractAccess: true, DiscountRateBps: 1000, PriorityWeight: 10},
		},
	}
}

func int64Ptr(v int64) *int64 { return &v }

// TierConfigHolder exposes the current tier defaults and hot-reloads them
// when the mounted YAML changes.
type TierConfigHolder struct {
	current atomic.Value // holds TierConfig
}

func NewTierConfigHolder() (*TierConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("tiers")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/counselhub/config")
	v.AddConfigPath("/etc/counselhub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COUNSELHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &TierConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultTierConfig())
		return holder, nil
	}

	cfg, err := unmarshalTiers(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(_ fsnotify.Event) {
		next, err := unmarshalTiers(v)
		if err != nil {
			return
		}
		holder.current.Store(next)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *TierConfigHolder) Current() TierConfig {
	if v, ok := h.current.Load().(TierConfig); ok {
		return v
	}
	return DefaultTierConfig()
}

func unmarshalTiers(v *viper.Viper) (TierConfig, error) {
	var cfg TierConfig
	if err := v.UnmarshalKey("tiers", &cfg); err != nil {
		return TierConfig{}, err
	}
	if len(cfg.Defaults) == 0 {
		cfg = DefaultTierConfig()
	}
	return cfg, nil
}
