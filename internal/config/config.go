package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Contact sources understood by loader.source.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
	SourceMock     = "mock"
	SourceNone     = "none"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	Company struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"company"`
	Loader struct {
		Source    string `mapstructure:"source"`    // csv, postgres, mock or none
		CSVPath   string `mapstructure:"csvPath"`   // call-log export used by the csv source
		MockCount int    `mapstructure:"mockCount"` // contacts generated by the mock source
	} `mapstructure:"loader"`
	Database struct {
		PostgresDSN string `mapstructure:"postgresDSN"`
	} `mapstructure:"database"`
	NATS        ConsumerNatsConfig `mapstructure:"nats"`
	Webhook     WebhookConfig      `mapstructure:"webhook"`
	WorkerPools struct {
		Enrichment EnrichmentWorkerPoolConfig `mapstructure:"enrichment"`
	} `mapstructure:"workerPools"`
	Cache struct {
		Enrichment BloomConfig `mapstructure:"enrichment"`
	} `mapstructure:"cache"`
}

// ConsumerNatsConfig holds configuration for the contact event consumer
type ConsumerNatsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxAge       int64         `mapstructure:"maxAge"` // max age of messages in day
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"`   // durable name prefix
	InstanceID   string        `mapstructure:"instanceID"` // durable name suffix, hostname when empty
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`   // Max delivery attempts before TERM
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"` // Base delay for exponential backoff NAK
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`  // Maximum delay for exponential backoff NAK
	// InactiveThreshold is how long the server keeps the consumer of an
	// instance that stopped.
	InactiveThreshold time.Duration `mapstructure:"inactiveThreshold"`
}

// WebhookConfig holds the phone-system webhook API settings
type WebhookConfig struct {
	BaseURL         string        `mapstructure:"baseURL"`
	APIToken        string        `mapstructure:"apiToken"`
	FromNumber      string        `mapstructure:"fromNumber"`      // line used for outbound SMS and calls
	AgentID         string        `mapstructure:"agentID"`         // user id actions are attributed to
	UserPhoneNumber string        `mapstructure:"userPhoneNumber"` // agent device rung first on calls
	Timeout         time.Duration `mapstructure:"timeout"`
}

// EnrichmentWorkerPoolConfig holds configuration for the enrichment worker pool
type EnrichmentWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// BloomConfig sizes a bloom filter
type BloomConfig struct {
	Expected uint    `mapstructure:"expected"` // expected number of distinct keys
	FPRate   float64 `mapstructure:"fpRate"`   // acceptable false positive rate
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("loader.source", SourceMock)
	v.SetDefault("loader.mockCount", 50)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.maxAge", 3)
	v.SetDefault("nats.stream", "contact_events_stream")
	v.SetDefault("nats.consumer", "contact_events_consumer")
	v.SetDefault("nats.subjectList", []string{"v1.contacts.upserted", "v1.contacts.removed"})
	v.SetDefault("nats.maxDeliver", 5)
	v.SetDefault("nats.nakBaseDelay", time.Second)
	v.SetDefault("nats.nakMaxDelay", 30*time.Second)
	v.SetDefault("nats.inactiveThreshold", 24*time.Hour)

	v.SetDefault("webhook.baseURL", "https://app.aloware.com/api/v1/webhook")
	v.SetDefault("webhook.agentID", "1")
	v.SetDefault("webhook.timeout", 10*time.Second)

	// WorkerPools Defaults
	v.SetDefault("workerPools.enrichment.poolSize", 4)
	v.SetDefault("workerPools.enrichment.queueSize", 1000)
	v.SetDefault("workerPools.enrichment.maxBlock", time.Second)
	v.SetDefault("workerPools.enrichment.expiryTime", time.Minute)

	v.SetDefault("cache.enrichment.expected", 100000)
	v.SetDefault("cache.enrichment.fpRate", 0.001)

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")    // REQUIRED if the config file does not have the extension in the name

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.daisi-crm-inbox")
	v.AddConfigPath("/etc/daisi-crm-inbox")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if company := os.Getenv("COMPANY_ID"); company != "" {
		v.Set("company.id", company)
	}
	if token := os.Getenv("WEBHOOK_API_TOKEN"); token != "" {
		v.Set("webhook.apiToken", token)
	}
	if instance := os.Getenv("INSTANCE_ID"); instance != "" {
		v.Set("nats.instanceID", instance)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Every replica keeps its own index, so each one needs its own consumer.
	if config.NATS.InstanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve nats.instanceID from hostname: %w", err)
		}
		config.NATS.InstanceID = hostname
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate rejects combinations the service cannot start with.
func (c *Config) validate() error {
	switch c.Loader.Source {
	case SourceCSV:
		if c.Loader.CSVPath == "" {
			return fmt.Errorf("loader.csvPath is required for the %q source", SourceCSV)
		}
	case SourcePostgres:
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgresDSN is required for the %q source", SourcePostgres)
		}
	case SourceMock, SourceNone:
	default:
		return fmt.Errorf("unknown loader.source %q", c.Loader.Source)
	}

	if c.NATS.Enabled && (c.NATS.URL == "" || c.Company.ID == "") {
		return fmt.Errorf("nats.url and company.id are required when nats.enabled is set")
	}
	return nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(append([]string{}, parts...), tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
