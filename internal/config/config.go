package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds gateway settings loaded from flags, env, or config file.
type Config struct {
	LogLevel       string
	Listen         string
	DefaultNetwork string
	SlippagePct    decimal.Decimal
	RateLimit      int
	CORSOrigins    []string
	MaxRetries     int
	RetryBackoff   time.Duration
	Wallets        WalletConfig
	Journal        JournalConfig
	Networks       Networks
}

// WalletConfig lists the signing key sources.
type WalletConfig struct {
	KeystoreDir string
	Password    string
	PrivateKeys []string
}

// JournalConfig selects where submissions are recorded. Empty values disable a sink.
type JournalConfig struct {
	Path  string
	PGDSN string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KOALA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("listen", ":15888")
	v.SetDefault("default-network", "koala")
	v.SetDefault("slippage-pct", "1")
	v.SetDefault("rate-limit", 120)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("journal.path", "./data/journal.jsonl")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	slippage, err := decimal.NewFromString(strings.TrimSpace(v.GetString("slippage-pct")))
	if err != nil {
		return Config{}, fmt.Errorf("parse slippage-pct: %w", err)
	}

	var configured map[string]NetworkConfig
	if err := v.UnmarshalKey("networks", &configured); err != nil {
		return Config{}, fmt.Errorf("decode networks: %w", err)
	}

	cfg := Config{
		LogLevel:       v.GetString("log-level"),
		Listen:         v.GetString("listen"),
		DefaultNetwork: strings.ToLower(v.GetString("default-network")),
		SlippagePct:    slippage,
		RateLimit:      v.GetInt("rate-limit"),
		CORSOrigins:    getStringSlice(v, "cors-origins"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		Wallets: WalletConfig{
			KeystoreDir: v.GetString("wallets.keystore-dir"),
			Password:    v.GetString("wallets.password"),
			PrivateKeys: getStringSlice(v, "wallets.private-keys"),
		},
		Journal: JournalConfig{
			Path:  v.GetString("journal.path"),
			PGDSN: v.GetString("journal.pg-dsn"),
		},
		Networks: DefaultNetworks().Merge(configured),
	}

	// rpc overrides the default network's RPC URL.
	if rpc := v.GetString("rpc"); rpc != "" {
		if network, ok := cfg.Networks[cfg.DefaultNetwork]; ok {
			network.RPC = rpc
			cfg.Networks[cfg.DefaultNetwork] = network
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.SlippagePct.IsNegative() || c.SlippagePct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("slippage-pct must be within [0, 100], got %s", c.SlippagePct)
	}
	if _, err := c.Networks.Get(c.DefaultNetwork); err != nil {
		return fmt.Errorf("default-network: %w", err)
	}
	if c.RateLimit < 0 {
		return errors.New("rate-limit must not be negative")
	}
	if c.MaxRetries < 0 {
		return errors.New("max-retries must not be negative")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
