package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Solana   SolanaConfig
	Operator OperatorConfig
	Claim    ClaimConfig
	Redis    RedisConfig
	Server   ServerConfig
}

type SolanaConfig struct {
	Cluster           string  `mapstructure:"cluster"`
	RPCURL            string  `mapstructure:"rpc_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	ConfirmTimeoutSec int64   `mapstructure:"confirm_timeout_sec"`
}

type OperatorConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	KeypairPath string `mapstructure:"keypair_path"`
}

type ClaimConfig struct {
	StakePoolID         string        `mapstructure:"stake_pool_id"`
	BatchSize           int           `mapstructure:"batch_size"`
	MaxConcurrency      int           `mapstructure:"max_concurrency"`
	FeePerEntryLamports uint64        `mapstructure:"fee_per_entry_lamports"`
	DryRun              bool          `mapstructure:"dry_run"`
	WatchInterval       time.Duration `mapstructure:"watch_interval"`
}

// RedisConfig is optional; an empty Addr disables the report store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ConfirmTimeout returns the confirmation timeout as a duration.
func (c SolanaConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

// RegisterFlags declares the command-line flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("pool", "", "stake pool id (or set STAKE_POOL_ID)")
	fs.String("cluster", "devnet", "Solana cluster: mainnet, devnet, testnet, localnet (or set SOLANA_CLUSTER)")
	fs.String("rpc-url", "", "override the cluster RPC endpoint (or set SOLANA_RPC_URL)")
	fs.String("keypair", "", "path to the operator keypair file (or set OPERATOR_KEYPAIR_PATH)")
	fs.Int("batch-size", 4, "stake entries per transaction")
	fs.Int("max-concurrency", 8, "chunks in flight at once, 0 for no limit")
	fs.Bool("dry-run", false, "compose transactions without submitting them")
	fs.Duration("watch", 0, "re-run every interval and serve status over HTTP")
}

// Load reads configuration from defaults, an optional config.yaml, the
// environment (including an optional .env file) and, when fs is non-nil,
// command-line flags (highest precedence).
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("solana.cluster", "devnet")
	v.SetDefault("solana.requests_per_second", 10)
	v.SetDefault("solana.confirm_timeout_sec", 60)
	v.SetDefault("claim.batch_size", 4)
	v.SetDefault("claim.max_concurrency", 8)
	v.SetDefault("claim.fee_per_entry_lamports", 2_000_000)
	v.SetDefault("server.port", 8080)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"solana.cluster":               "SOLANA_CLUSTER",
		"solana.rpc_url":               "SOLANA_RPC_URL",
		"solana.requests_per_second":   "RPC_REQUESTS_PER_SECOND",
		"solana.confirm_timeout_sec":   "CONFIRM_TIMEOUT_SEC",
		"operator.secret_key":          "OPERATOR_SECRET_KEY",
		"operator.keypair_path":        "OPERATOR_KEYPAIR_PATH",
		"claim.stake_pool_id":          "STAKE_POOL_ID",
		"claim.batch_size":             "BATCH_SIZE",
		"claim.max_concurrency":        "MAX_CONCURRENCY",
		"claim.fee_per_entry_lamports": "FEE_PER_ENTRY_LAMPORTS",
		"claim.dry_run":                "DRY_RUN",
		"claim.watch_interval":         "WATCH_INTERVAL",
		"redis.addr":                   "REDIS_ADDR",
		"redis.password":               "REDIS_PASSWORD",
		"server.port":                  "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if fs != nil {
		flags := map[string]string{
			"claim.stake_pool_id":   "pool",
			"solana.cluster":        "cluster",
			"solana.rpc_url":        "rpc-url",
			"operator.keypair_path": "keypair",
			"claim.batch_size":      "batch-size",
			"claim.max_concurrency": "max-concurrency",
			"claim.dry_run":         "dry-run",
			"claim.watch_interval":  "watch",
		}
		for key, name := range flags {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Claim.StakePoolID == "" {
		return fmt.Errorf("required config missing: STAKE_POOL_ID")
	}
	if c.Operator.SecretKey == "" && c.Operator.KeypairPath == "" {
		return fmt.Errorf("required config missing: OPERATOR_SECRET_KEY or OPERATOR_KEYPAIR_PATH")
	}
	if c.Solana.Cluster == "" && c.Solana.RPCURL == "" {
		return fmt.Errorf("required config missing: SOLANA_CLUSTER or SOLANA_RPC_URL")
	}
	if c.Claim.BatchSize < 1 {
		return fmt.Errorf("invalid BATCH_SIZE %d: must be at least 1", c.Claim.BatchSize)
	}
	if c.Claim.MaxConcurrency < 0 {
		return fmt.Errorf("invalid MAX_CONCURRENCY %d: must not be negative", c.Claim.MaxConcurrency)
	}
	if c.Claim.WatchInterval < 0 {
		return fmt.Errorf("invalid WATCH_INTERVAL %s", c.Claim.WatchInterval)
	}
	return nil
}
