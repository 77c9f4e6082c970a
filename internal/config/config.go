// Package config loads driver settings from an optional TOML file and
// command-line flags. Flags win over the file, the file wins over defaults.
package config

import (
	"flag"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	BackendCQL    = "cql"
	BackendMemory = "memory"
)

type Config struct {
	// Shard is the positional argument selecting the worker index range.
	Shard          int    `toml:"-" validate:"min=1"`
	PoolSize       int    `toml:"pool_size" validate:"min=1"`
	TransactionDir string `toml:"transaction_dir" validate:"required"`
	MetricsDir     string `toml:"metrics_dir" validate:"required"`
	Backend        string `toml:"backend" validate:"oneof=cql memory"`
	LogLevel       string `toml:"log_level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	// MetricsAddress serves /metrics when set.
	MetricsAddress string `toml:"metrics_address" validate:"omitempty,hostname_port"`

	Retry  Retry  `toml:"retry"`
	CQL    CQL    `toml:"cql"`
	Memory Memory `toml:"memory"`
}

type Retry struct {
	Attempts     int `toml:"attempts" validate:"min=1"`
	MinBackoffMs int `toml:"min_backoff_ms" validate:"min=0"`
	MaxBackoffMs int `toml:"max_backoff_ms" validate:"gtefield=MinBackoffMs"`
}

func (r Retry) MinBackoff() time.Duration { return time.Duration(r.MinBackoffMs) * time.Millisecond }
func (r Retry) MaxBackoff() time.Duration { return time.Duration(r.MaxBackoffMs) * time.Millisecond }

type CQL struct {
	Hosts             []string `toml:"hosts" validate:"dive,required"`
	Keyspace          string   `toml:"keyspace" validate:"required"`
	Consistency       string   `toml:"consistency" validate:"required"`
	SerialConsistency string   `toml:"serial_consistency" validate:"oneof=SERIAL LOCAL_SERIAL serial local_serial"`
	TimeoutMs         int      `toml:"timeout_ms" validate:"min=1"`
	NumConns          int      `toml:"num_conns" validate:"min=1"`
}

func (c CQL) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }

// Memory configures the embedded backend. SnapshotPath preloads a bolt file
// written by a previous run or loader; ExportPath receives the final state.
// CheckpointPath keeps the full version history across runs: it is restored
// at start when present and rewritten at shutdown.
type Memory struct {
	SnapshotPath   string `toml:"snapshot_path"`
	ExportPath     string `toml:"export_path"`
	CheckpointPath string `toml:"checkpoint_path"`
	// Seed loads the built-in sample data set when no snapshot is given.
	Seed bool `toml:"seed"`
}

func Default() *Config {
	return &Config{
		PoolSize:       8,
		TransactionDir: "transactions",
		MetricsDir:     "metrics",
		Backend:        BackendCQL,
		LogLevel:       "info",
		Retry:          Retry{Attempts: 2, MinBackoffMs: 1000, MaxBackoffMs: 2000},
		CQL: CQL{
			Hosts:             []string{"127.0.0.1"},
			Keyspace:          "wholesale_supplier",
			Consistency:       "LOCAL_QUORUM",
			SerialConsistency: "LOCAL_SERIAL",
			TimeoutMs:         10000,
			NumConns:          2,
		},
	}
}

// Load parses args (without the program name) into a validated Config.
func Load(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("wholesale", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path      = fs.String("config", "", "TOML configuration file")
		pool      = fs.Int("pool", 0, "Workers per shard")
		txDir     = fs.String("transactions", "", "Directory of <index>.txt scripts")
		outDir    = fs.String("metrics", "", "Directory for clients_<shard>.csv and throughput_<shard>.csv")
		backend   = fs.String("backend", "", "Store backend: cql or memory")
		level     = fs.String("log_level", "", "debug, info, warn or error")
		metrics   = fs.String("metrics_address", "", "host:port serving /metrics")
		attempts  = fs.Int("retry_attempts", 0, "Attempts per record")
		hosts     = fs.String("cql_hosts", "", "Comma separated contact points")
		keyspace  = fs.String("cql_keyspace", "", "Keyspace")
		cons      = fs.String("cql_consistency", "", "Session consistency")
		snapshot  = fs.String("memory_snapshot", "", "Bolt file preloaded into the memory backend")
		exportTo  = fs.String("memory_export", "", "Bolt file receiving the memory backend state after the run")
		seed      = fs.Bool("memory_seed", false, "Load the sample data set into the memory backend")
		ckpt      = fs.String("memory_checkpoint", "", "Versioned checkpoint restored at start and written at shutdown")
		overrides = map[string]func(*Config){
			"pool":              func(c *Config) { c.PoolSize = *pool },
			"transactions":      func(c *Config) { c.TransactionDir = *txDir },
			"metrics":           func(c *Config) { c.MetricsDir = *outDir },
			"backend":           func(c *Config) { c.Backend = *backend },
			"log_level":         func(c *Config) { c.LogLevel = *level },
			"metrics_address":   func(c *Config) { c.MetricsAddress = *metrics },
			"retry_attempts":    func(c *Config) { c.Retry.Attempts = *attempts },
			"cql_hosts":         func(c *Config) { c.CQL.Hosts = splitHosts(*hosts) },
			"cql_keyspace":      func(c *Config) { c.CQL.Keyspace = *keyspace },
			"cql_consistency":   func(c *Config) { c.CQL.Consistency = *cons },
			"memory_snapshot":   func(c *Config) { c.Memory.SnapshotPath = *snapshot },
			"memory_export":     func(c *Config) { c.Memory.ExportPath = *exportTo },
			"memory_seed":       func(c *Config) { c.Memory.Seed = *seed },
			"memory_checkpoint": func(c *Config) { c.Memory.CheckpointPath = *ckpt },
		}
	)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Mark(errors.WithStack(err), ErrInvalidConfig)
	}

	cfg := Default()
	if *path != "" {
		md, err := toml.DecodeFile(*path, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", *path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Wrapf(ErrInvalidConfig, "unknown keys in %s: %v", *path, undecoded)
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if set, ok := overrides[f.Name]; ok {
			set(cfg)
		}
	})

	if fs.NArg() != 1 {
		return nil, errors.Wrapf(ErrInvalidConfig, "want exactly one shard argument, got %d", fs.NArg())
	}
	shard, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "shard %q", fs.Arg(0))
	}
	cfg.Shard = shard

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.Backend == BackendCQL && len(c.CQL.Hosts) == 0 {
		return errors.Wrap(ErrInvalidConfig, "cql backend needs at least one host")
	}
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
