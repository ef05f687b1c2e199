package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Transport names accepted by IPCConfig.Transport.
const (
	TransportSysV   = "sysv"
	TransportMemory = "memory"
)

var (
	ErrInvalidWorkers   = errors.New("worker count must be at least 1")
	ErrInvalidTrials    = errors.New("total trials must not be negative")
	ErrInvalidChunk     = errors.New("chunk size must be at least 1")
	ErrUnknownTransport = errors.New("unknown transport")
	ErrUnknownFormat    = errors.New("unsupported config file format")
)

// Config holds all application configuration.
type Config struct {
	Run     RunConfig    `yaml:"run" toml:"run"`
	IPC     IPCConfig    `yaml:"ipc" toml:"ipc"`
	Worker  WorkerConfig `yaml:"worker" toml:"worker"`
	Logging LogConfig    `yaml:"logging" toml:"logging"`
	Status  StatusConfig `yaml:"status" toml:"status"`
}

// RunConfig holds the shape of one coordinator run.
type RunConfig struct {
	Workers   int   `envconfig:"MONTE_WORKERS" default:"1" yaml:"workers" toml:"workers"`
	Trials    int64 `envconfig:"MONTE_TRIALS" default:"1000000" yaml:"trials" toml:"trials"`
	ChunkSize int64 `envconfig:"MONTE_CHUNK" default:"100000" yaml:"chunk_size" toml:"chunk_size"`
	SeedBase  int64 `envconfig:"MONTE_SEED" default:"1" yaml:"seed_base" toml:"seed_base"`
}

// IPCConfig holds the shared resource namespace. Workers receive it through WorkerEnv.
type IPCConfig struct {
	Transport    string        `envconfig:"MONTE_TRANSPORT" default:"sysv" yaml:"transport" toml:"transport"`
	KeyPath      string        `envconfig:"MONTE_IPC_KEY_PATH" default:"/tmp/monte.ipc" yaml:"key_path" toml:"key_path"`
	ShmID        int           `envconfig:"MONTE_IPC_SHM_ID" default:"65" yaml:"shm_id" toml:"shm_id"`
	SemID        int           `envconfig:"MONTE_IPC_SEM_ID" default:"66" yaml:"sem_id" toml:"sem_id"`
	MsgID        int           `envconfig:"MONTE_IPC_MSG_ID" default:"67" yaml:"msg_id" toml:"msg_id"`
	PollInterval time.Duration `envconfig:"MONTE_IPC_POLL" default:"5ms" yaml:"poll_interval" toml:"poll_interval"`
	QueueDepth   int           `envconfig:"MONTE_IPC_QUEUE_DEPTH" default:"64" yaml:"queue_depth" toml:"queue_depth"`
}

// WorkerConfig holds worker process settings.
type WorkerConfig struct {
	Binary    string        `envconfig:"MONTE_WORKER_BIN" yaml:"binary" toml:"binary"`
	StopGrace time.Duration `envconfig:"MONTE_WORKER_STOP_GRACE" default:"2s" yaml:"stop_grace" toml:"stop_grace"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// StatusConfig holds the optional status/control API configuration.
// The API is disabled while Addr is empty.
type StatusConfig struct {
	Addr              string        `envconfig:"MONTE_STATUS_ADDR" yaml:"addr" toml:"addr"`
	AllowOrigins      []string      `envconfig:"MONTE_STATUS_ORIGINS" default:"*" yaml:"allow_origins" toml:"allow_origins"`
	StreamInterval    time.Duration `envconfig:"MONTE_STREAM_INTERVAL" default:"500ms" yaml:"stream_interval" toml:"stream_interval"`
	RequestsPerSecond int           `envconfig:"RATE_LIMIT_RPS" default:"20" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int           `envconfig:"RATE_LIMIT_BURST" default:"40" yaml:"burst" toml:"burst"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment configuration and overlays the given YAML or
// TOML file on top of it. Keys absent from the file keep their env/default value.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = decodeTOML(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// decodeTOML reads the document generically and hands it to the YAML decoder,
// which accepts durations written as strings ("3s") where go-toml does not.
func decodeTOML(data []byte, cfg *Config) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return err
	}
	bridged, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bridged, cfg)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Workers:   1,
			Trials:    1000000,
			ChunkSize: 100000,
			SeedBase:  1,
		},
		IPC: IPCConfig{
			Transport:    TransportSysV,
			KeyPath:      "/tmp/monte.ipc",
			ShmID:        65,
			SemID:        66,
			MsgID:        67,
			PollInterval: 5 * time.Millisecond,
			QueueDepth:   64,
		},
		Worker: WorkerConfig{
			StopGrace: 2 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Status: StatusConfig{
			AllowOrigins:      []string{"*"},
			StreamInterval:    500 * time.Millisecond,
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Validate checks the run parameters and the transport name.
func (c *Config) Validate() error {
	var errs []error
	if c.Run.Workers < 1 {
		errs = append(errs, ErrInvalidWorkers)
	}
	if c.Run.Trials < 0 {
		errs = append(errs, ErrInvalidTrials)
	}
	if c.Run.ChunkSize < 1 {
		errs = append(errs, ErrInvalidChunk)
	}
	switch c.IPC.Transport {
	case TransportSysV, TransportMemory:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownTransport, c.IPC.Transport))
	}
	return errors.Join(errs...)
}

// WorkerEnv returns the environment entries a spawned worker needs to attach to the
// same resources and log the same way as the coordinator.
func (c *Config) WorkerEnv() []string {
	return []string{
		"MONTE_TRANSPORT=" + c.IPC.Transport,
		"MONTE_IPC_KEY_PATH=" + c.IPC.KeyPath,
		"MONTE_IPC_SHM_ID=" + strconv.Itoa(c.IPC.ShmID),
		"MONTE_IPC_SEM_ID=" + strconv.Itoa(c.IPC.SemID),
		"MONTE_IPC_MSG_ID=" + strconv.Itoa(c.IPC.MsgID),
		"MONTE_IPC_POLL=" + c.IPC.PollInterval.String(),
		"LOG_LEVEL=" + c.Logging.Level,
		"LOG_DEV=" + strconv.FormatBool(c.Logging.Development),
	}
}
