// Package config assembles runtime configuration from the environment,
// with the multi-chain topology optionally loaded from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Darruma/protocol/internal/domain/model"
)

type Config struct {
	Chains  []ChainConfig
	Redis   RedisConfig
	Poll    PollConfig
	Tracing TracingConfig
	Server  ServerConfig
	Log     LogConfig
}

// ChainConfig wires one EVM chain: its JSON-RPC endpoint, the optimistic
// oracle contract on it, and the node budget the rate limiter enforces.
type ChainConfig struct {
	ChainID       uint64 `yaml:"chain_id"`
	RPCURL        string `yaml:"rpc_url"`
	OracleAddress string `yaml:"oracle_address"`
	// Account signs transactions via the node. Empty means read-only.
	Account string `yaml:"account"`
	// StartBlock anchors event polling on first run; zero adopts the head.
	StartBlock int64   `yaml:"start_block"`
	RPCRate    float64 `yaml:"rpc_rate"`
	RPCBurst   int     `yaml:"rpc_burst"`
}

func (c ChainConfig) ID() model.ChainID {
	return model.ChainID(c.ChainID)
}

// A chain with a zero rate limit could never issue an RPC, so omitted
// limiter fields fall back to the same defaults the env path uses.
const (
	defaultRPCRate  = 10.0
	defaultRPCBurst = 20
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PollConfig struct {
	RequestInterval time.Duration
	EventInterval   time.Duration
	TickResolution  time.Duration
}

type TracingConfig struct {
	OTLPEndpoint string
}

type ServerConfig struct {
	HealthPort int
}

type LogConfig struct {
	Level string
}

// Load reads the environment. When CHAINS_FILE is set the chain topology
// comes from that YAML document; otherwise a single chain is assembled
// from CHAIN_ID / RPC_URL / ORACLE_ADDRESS.
func Load() (*Config, error) {
	cfg := &Config{
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Poll: PollConfig{
			RequestInterval: time.Duration(getEnvInt("REQUEST_POLL_INTERVAL_SEC", 30)) * time.Second,
			EventInterval:   time.Duration(getEnvInt("EVENT_POLL_INTERVAL_SEC", 50)) * time.Second,
			TickResolution:  time.Duration(getEnvInt("TICK_RESOLUTION_MS", 250)) * time.Millisecond,
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if path := getEnv("CHAINS_FILE", ""); path != "" {
		chains, err := loadChainsFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Chains = chains
	} else {
		cfg.Chains = []ChainConfig{{
			ChainID:       uint64(getEnvInt("CHAIN_ID", 1)),
			RPCURL:        getEnv("RPC_URL", ""),
			OracleAddress: getEnv("ORACLE_ADDRESS", ""),
			Account:       getEnv("ACCOUNT", ""),
			StartBlock:    int64(getEnvInt("START_BLOCK", 0)),
			RPCRate:       getEnvFloat("RPC_RATE", defaultRPCRate),
			RPCBurst:      getEnvInt("RPC_BURST", defaultRPCBurst),
		}}
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].RPCRate <= 0 {
			cfg.Chains[i].RPCRate = defaultRPCRate
		}
		if cfg.Chains[i].RPCBurst <= 0 {
			cfg.Chains[i].RPCBurst = defaultRPCBurst
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type chainsDocument struct {
	Chains []ChainConfig `yaml:"chains"`
}

func loadChainsFile(path string) ([]ChainConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file: %w", err)
	}
	var doc chainsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse chains file %s: %w", path, err)
	}
	if len(doc.Chains) == 0 {
		return nil, fmt.Errorf("chains file %s declares no chains", path)
	}
	return doc.Chains, nil
}

func (c *Config) validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}
	seen := map[uint64]bool{}
	for i, chain := range c.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chain #%d: chain_id is required", i)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("chain %d declared twice", chain.ChainID)
		}
		seen[chain.ChainID] = true
		if chain.RPCURL == "" {
			return fmt.Errorf("chain %d: rpc_url is required", chain.ChainID)
		}
		if chain.OracleAddress == "" {
			return fmt.Errorf("chain %d: oracle_address is required", chain.ChainID)
		}
		if chain.StartBlock < 0 {
			return fmt.Errorf("chain %d: start_block must be non-negative", chain.ChainID)
		}
	}
	if c.Poll.RequestInterval <= 0 || c.Poll.EventInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
