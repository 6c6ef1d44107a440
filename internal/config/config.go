package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuongbtq/file-processor/internal/worker/strategy"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `yaml:"app"`
	Directories DirectoriesConfig `yaml:"directories"`
	Processing  ProcessingConfig  `yaml:"processing"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Worker      WorkerConfig      `yaml:"worker"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	RabbitMQ    RabbitMQConfig    `yaml:"rabbitmq"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// DirectoriesConfig holds the watched and output directories
type DirectoriesConfig struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
}

// ProcessingConfig holds retry, naming and strategy settings
type ProcessingConfig struct {
	MaxRetries           int           `yaml:"max_retries"`
	InitialRetryDelay    time.Duration `yaml:"initial_retry_delay"`
	MaxRetryDelay        time.Duration `yaml:"max_retry_delay"`
	OutputExtension      string        `yaml:"output_extension"`
	FileLockedErrorCodes []int         `yaml:"file_locked_error_codes,omitempty"`
	Strategy             string        `yaml:"strategy"`
	DeleteProcessedInput bool          `yaml:"delete_processed_input"`
}

// WatcherConfig holds event source and debounce settings
type WatcherConfig struct {
	ChannelBufferSize int           `yaml:"channel_buffer_size"`
	ProcessingDelay   time.Duration `yaml:"processing_delay"`
	Recursive         bool          `yaml:"recursive"`
	ScanExisting      bool          `yaml:"scan_existing"`
}

// WorkerConfig holds worker pool configuration. Concurrency 0 means one
// worker per CPU.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level             string `yaml:"level"`
	Format            string `yaml:"format"`
	Output            string `yaml:"output"`
	DuplicateToStdout bool   `yaml:"duplicate_to_stdout"`
	EnableCaller      bool   `yaml:"enable_caller"`
}

// ServerConfig holds status API configuration
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RecentOutcomes  int           `yaml:"recent_outcomes"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
	// Timeout bounds a single dial
	Timeout time.Duration `yaml:"timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxInterval   time.Duration `yaml:"max_interval"`
	// Timeout bounds one outcome publish including its retries
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns the configuration used when no file exists and the base
// that every loaded file is layered on
func Defaults() *Config {
	var lockCodes []int
	if runtime.GOOS == "windows" {
		// ERROR_SHARING_VIOLATION, ERROR_LOCK_VIOLATION
		lockCodes = []int{32, 33}
	}

	return &Config{
		App: AppConfig{
			Name:        "file-processor",
			Version:     "0.1.0",
			Environment: "development",
		},
		Directories: DirectoriesConfig{
			InputDir:  "./input_files",
			OutputDir: "./output_files",
		},
		Processing: ProcessingConfig{
			MaxRetries:           10,
			InitialRetryDelay:    100 * time.Millisecond,
			MaxRetryDelay:        2 * time.Second,
			OutputExtension:      ".processed.txt",
			FileLockedErrorCodes: lockCodes,
			Strategy:             strategy.NameHash,
		},
		Watcher: WatcherConfig{
			ChannelBufferSize: 32,
			ProcessingDelay:   50 * time.Millisecond,
			Recursive:         true,
			ScanExisting:      true,
		},
		Worker: WorkerConfig{
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			RecentOutcomes:  100,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "file_processor",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		RabbitMQ: RabbitMQConfig{
			Host:  "localhost",
			Port:  5672,
			VHost: "/",
			Exchange: ExchangeConfig{
				Name:    "file_processor",
				Type:    "topic",
				Durable: true,
			},
			Queue: QueueConfig{
				Name:    "file_outcomes",
				Durable: true,
			},
			RoutingKey: "file.outcome",
			Connection: ConnectionConfig{
				RetryAttempts: 5,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
				Timeout:       5 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts: 3,
				RetryInterval: 100 * time.Millisecond,
				MaxInterval:   time.Second,
				Timeout:       5 * time.Second,
			},
		},
	}
}

// Load reads the configuration file and layers it on Defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Defaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadOrCreate loads configPath, or writes the defaults there and returns
// them when the file does not exist. created reports which happened.
func LoadOrCreate(configPath string) (config *Config, created bool, err error) {
	config, err = Load(configPath)
	if err == nil {
		return config, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	config = Defaults()
	if err := config.Save(configPath); err != nil {
		return nil, false, err
	}
	return config, true, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateDirectories(); err != nil {
		return err
	}

	p := c.Processing
	if p.MaxRetries < 0 {
		return fmt.Errorf("processing max_retries must not be negative")
	}
	if p.InitialRetryDelay <= 0 {
		return fmt.Errorf("processing initial_retry_delay must be greater than 0")
	}
	if p.MaxRetryDelay < p.InitialRetryDelay {
		return fmt.Errorf("processing max_retry_delay (%s) must not be less than initial_retry_delay (%s)", p.MaxRetryDelay, p.InitialRetryDelay)
	}
	if strings.TrimSpace(p.OutputExtension) == "" {
		return fmt.Errorf("processing output_extension is required")
	}
	if !slices.Contains(strategy.Names(), p.Strategy) {
		return fmt.Errorf("unknown processing strategy %q (available: %s)", p.Strategy, strings.Join(strategy.Names(), ", "))
	}

	if c.Watcher.ChannelBufferSize <= 0 {
		return fmt.Errorf("watcher channel_buffer_size must be greater than 0")
	}
	if c.Watcher.ProcessingDelay < 0 {
		return fmt.Errorf("watcher processing_delay must not be negative")
	}

	if c.Worker.Concurrency < 0 {
		return fmt.Errorf("worker concurrency must not be negative")
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Server.Enabled {
		if c.Server.Port < MinPort || c.Server.Port > MaxPort {
			return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
		if c.RabbitMQ.Queue.Name == "" {
			return fmt.Errorf("rabbitmq queue name is required")
		}
		if c.RabbitMQ.Publish.Timeout < 0 {
			return fmt.Errorf("rabbitmq publish timeout must not be negative")
		}
	}

	return nil
}

func (c *Config) validateDirectories() error {
	in, out := c.Directories.InputDir, c.Directories.OutputDir
	if in == "" {
		return fmt.Errorf("directories input_dir is required")
	}
	if out == "" {
		return fmt.Errorf("directories output_dir is required")
	}

	absIn, err := filepath.Abs(in)
	if err != nil {
		return fmt.Errorf("failed to resolve input_dir: %w", err)
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("failed to resolve output_dir: %w", err)
	}

	if absIn == absOut {
		return fmt.Errorf("directories input_dir and output_dir must differ")
	}

	// outputs written under a recursively watched input would be processed again
	if c.Watcher.Recursive {
		rel, err := filepath.Rel(absIn, absOut)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("directories output_dir must not be inside input_dir when watching recursively")
		}
	}

	return nil
}
