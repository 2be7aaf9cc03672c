// Package config loads the token registry and server runtime settings.
// The registry is TOML so creator tokens can be added without a rebuild;
// runtime settings come from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/thisyearnofear/writersarcade-sub002/types"
	"github.com/thisyearnofear/writersarcade-sub002/utils"
)

// Registry is the immutable set of creator tokens accepted for payment.
type Registry struct {
	tokens map[string]*types.TokenConfig
}

type registryFile struct {
	Tokens []tokenEntry `toml:"token"`
}

type tokenEntry struct {
	ID           string                 `toml:"id"`
	Symbol       string                 `toml:"symbol"`
	Decimals     int                    `toml:"decimals"`
	Address      string                 `toml:"address"`
	Prices       map[string]string      `toml:"prices"`
	DefaultSplit types.SplitPercentages `toml:"default_split"`
}

// LoadRegistry parses a TOML token registry file.
func LoadRegistry(path string) (*Registry, error) {
	var file registryFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode token registry: %w", err)
	}
	return buildRegistry(file.Tokens)
}

// NewRegistry builds a registry from already-parsed token configs, used by
// tests and embedding callers.
func NewRegistry(tokens ...types.TokenConfig) (*Registry, error) {
	entries := make([]tokenEntry, 0, len(tokens))
	for _, t := range tokens {
		prices := make(map[string]string, len(t.Prices))
		for action, p := range t.Prices {
			prices[action.String()] = p
		}
		entries = append(entries, tokenEntry{
			ID:           t.ID,
			Symbol:       t.Symbol,
			Decimals:     t.Decimals,
			Address:      t.Address,
			Prices:       prices,
			DefaultSplit: t.DefaultSplit,
		})
	}
	return buildRegistry(entries)
}

func buildRegistry(entries []tokenEntry) (*Registry, error) {
	reg := &Registry{tokens: make(map[string]*types.TokenConfig, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("token entry missing id")
		}
		if _, exists := reg.tokens[e.ID]; exists {
			return nil, fmt.Errorf("duplicate token id %q", e.ID)
		}
		if e.Decimals < 0 || e.Decimals > 30 {
			return nil, fmt.Errorf("token %q: decimals %d out of range", e.ID, e.Decimals)
		}
		if err := utils.ValidateAddress(e.Address); err != nil {
			return nil, fmt.Errorf("token %q: %w", e.ID, err)
		}

		prices := make(map[types.PaymentAction]string, len(e.Prices))
		for raw, p := range e.Prices {
			action := types.PaymentAction(raw)
			if !action.Valid() {
				return nil, fmt.Errorf("token %q: unknown action %q in price table", e.ID, raw)
			}
			prices[action] = p
		}
		if _, ok := prices[types.ActionGenerateContent]; !ok {
			return nil, fmt.Errorf("token %q: price table missing %s", e.ID, types.ActionGenerateContent)
		}

		reg.tokens[e.ID] = &types.TokenConfig{
			ID:           e.ID,
			Symbol:       e.Symbol,
			Decimals:     e.Decimals,
			Address:      e.Address,
			Prices:       prices,
			DefaultSplit: e.DefaultSplit,
		}
	}
	return reg, nil
}

// Lookup returns the token config for an id.
func (r *Registry) Lookup(tokenID string) (*types.TokenConfig, error) {
	t, ok := r.tokens[tokenID]
	if !ok {
		return nil, types.NewArcadeError(types.ErrConfig, fmt.Sprintf("unknown token %q", tokenID))
	}
	return t, nil
}

// TokenIDs lists the registered token ids.
func (r *Registry) TokenIDs() []string {
	ids := make([]string, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	return ids
}

// ServerConfig captures runtime settings for the arcadepayd daemon.
type ServerConfig struct {
	ListenAddress   string
	DatabaseDSN     string
	RPCUrl          string
	ChainID         int64
	ContractAddress string
	RegistryPath    string
	PollInterval    time.Duration
	ConfirmWorkers  int
	LogLevel        string
	EnableMetrics   bool
}

const (
	envListen    = "ARCADEPAY_LISTEN"
	envDSN       = "ARCADEPAY_DB_DSN"
	envRPCUrl    = "ARCADEPAY_RPC_URL"
	envChainID   = "ARCADEPAY_CHAIN_ID"
	envContract  = "ARCADEPAY_CONTRACT"
	envRegistry  = "ARCADEPAY_TOKEN_REGISTRY"
	envPoll      = "ARCADEPAY_POLL_INTERVAL"
	envWorkers   = "ARCADEPAY_CONFIRM_WORKERS"
	envLogLevel  = "ARCADEPAY_LOG_LEVEL"
	envMetricsOn = "ARCADEPAY_METRICS"
)

// LoadServerConfigFromEnv resolves daemon configuration with sane defaults.
func LoadServerConfigFromEnv() (*ServerConfig, error) {
	cfg := &ServerConfig{
		ListenAddress:   getenvDefault(envListen, ":8080"),
		DatabaseDSN:     os.Getenv(envDSN),
		RPCUrl:          os.Getenv(envRPCUrl),
		ChainID:         parseInt64Default(envChainID, 8453),
		ContractAddress: os.Getenv(envContract),
		RegistryPath:    getenvDefault(envRegistry, "tokens.toml"),
		PollInterval:    parseDurationDefault(envPoll, 15*time.Second),
		ConfirmWorkers:  int(parseInt64Default(envWorkers, 4)),
		LogLevel:        getenvDefault(envLogLevel, "info"),
		EnableMetrics:   parseBoolDefault(envMetricsOn, false),
	}

	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("%s is required", envDSN)
	}
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("%s is required", envRPCUrl)
	}
	if err := utils.ValidateAddress(cfg.ContractAddress); err != nil {
		return nil, fmt.Errorf("%s: %w", envContract, err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func parseDurationDefault(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func parseInt64Default(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseBoolDefault(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}
