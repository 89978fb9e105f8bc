package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/polygonid/academic-bridge/internal/log"
)

// EnvPrefix is the prefix every environment variable read by Load must carry.
const EnvPrefix = "ACADEMIC_"

const (
	// CacheProviderMemory keeps the cache in the process
	CacheProviderMemory = "memory"
	// CacheProviderRedis uses a redis server as cache
	CacheProviderRedis = "redis"
	// CacheProviderValKey uses a valkey server as cache
	CacheProviderValKey = "valkey"
	// CacheProviderNone disables caching
	CacheProviderNone = "none"
)

// Configuration holds the project configuration
type Configuration struct {
	ServerUrl     string        `env:"SERVER_URL" envDefault:"http://localhost:3001"`
	ServerPort    int           `env:"SERVER_PORT" envDefault:"3001"`
	Database      Database      `envPrefix:"DATABASE_"`
	Cache         Cache         `envPrefix:"CACHE_"`
	Log           Log           `envPrefix:"LOG_"`
	HTTPBasicAuth HTTPBasicAuth `envPrefix:"API_AUTH_"`
	Agent         Agent         `envPrefix:"AGENT_"`
	Ledger        Ledger        `envPrefix:"LEDGER_"`
	Lifecycle     Lifecycle     `envPrefix:"LIFECYCLE_"`
	Issuance      Issuance      `envPrefix:"ISSUANCE_"`
	Notifications Notifications `envPrefix:"NOTIFICATIONS_"`
}

// Database has the database configuration
// URL: The database connection string
type Database struct {
	URL string `env:"URL"`
}

// Cache configurations. Provider is one of memory, redis, valkey or none.
type Cache struct {
	Provider string `env:"PROVIDER" envDefault:"memory"`
	Url      string `env:"URL"`
}

// Log holds runtime configurations
//
// Level: The minimum log level to show on logs. Values can be
//
//	 -4: Debug
//		0: Info
//		4: Warning
//		8: Error
//	 The default log level is debug
//
// Mode: Log mode is the format of the log. It can be text or json
// 1: JSON
// 2: Text
// The default log formal is JSON
type Log struct {
	Level int `env:"LEVEL" envDefault:"-4"`
	Mode  int `env:"MODE" envDefault:"1"`
}

// HTTPBasicAuth configuration. The /academic endpoints are protected with basic http auth. Here you can set the
// user and password to use.
type HTTPBasicAuth struct {
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
}

// Agent is the identity agent admin API configuration
type Agent struct {
	URL             string        `env:"URL" envDefault:"http://localhost:8021"`
	APIKey          string        `env:"API_KEY"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
	HealthPath      string        `env:"HEALTH_PATH" envDefault:"/status/ready"`
	RetryMax        int           `env:"RETRY_MAX" envDefault:"3"`
	CredentialTrace bool          `env:"CREDENTIAL_TRACE" envDefault:"false"`
}

// Ledger holds the settings of the credential store contract and the RPC node hosting it
type Ledger struct {
	URL                    string        `env:"URL" envDefault:"http://localhost:8545"`
	ContractAddress        string        `env:"CONTRACT_ADDRESS"`
	PrivateKey             string        `env:"PRIVATE_KEY"`
	GasLimit               uint64        `env:"GAS_LIMIT" envDefault:"500000"`
	GasMarginPercent       uint64        `env:"GAS_MARGIN_PERCENT" envDefault:"20"`
	MinGasPrice            int64         `env:"MIN_GAS_PRICE" envDefault:"0"`
	MaxGasPrice            int64         `env:"MAX_GAS_PRICE" envDefault:"0"`
	RPCResponseTimeout     time.Duration `env:"RPC_RESPONSE_TIMEOUT" envDefault:"30s"`
	ReceiptTimeout         time.Duration `env:"RECEIPT_TIMEOUT" envDefault:"60s"`
	WaitReceiptCycleTime   time.Duration `env:"WAIT_RECEIPT_CYCLE_TIME" envDefault:"1s"`
	ConfirmationBlockCount int64         `env:"CONFIRMATION_BLOCK_COUNT" envDefault:"0"`
	StoreMetadata          bool          `env:"STORE_METADATA" envDefault:"false"`
	PendingCheckFrequency  time.Duration `env:"PENDING_CHECK_FREQUENCY" envDefault:"1m"`
	PendingBatchSize       uint          `env:"PENDING_BATCH_SIZE" envDefault:"50"`
	PendingStatusPort      int           `env:"PENDING_STATUS_PORT" envDefault:"3005"`
}

// Lifecycle drives the connection activation polling
type Lifecycle struct {
	StallInterval      time.Duration `env:"STALL_INTERVAL" envDefault:"5s"`
	MaxStallInterval   time.Duration `env:"MAX_STALL_INTERVAL" envDefault:"30s"`
	MaxAttempts        int           `env:"MAX_ATTEMPTS" envDefault:"1"`
	AbandonAfterStalls int           `env:"ABANDON_AFTER_STALLS" envDefault:"5"`
}

// Issuance configures the issuance workflow
type Issuance struct {
	// ProceedOnInactive keeps offering the credential when the connection did not reach
	// the active state. The agent then rejects the offer explicitly.
	ProceedOnInactive  bool          `env:"PROCEED_ON_INACTIVE" envDefault:"true"`
	DefinitionCacheTTL time.Duration `env:"DEFINITION_CACHE_TTL" envDefault:"0s"`
}

// Notifications configures best effort notifications sent after issuance
type Notifications struct {
	WebhookURL string        `env:"WEBHOOK_URL"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s"`
	UsePubSub  bool          `env:"USE_PUBSUB" envDefault:"false"`
}

// Sanitize perform some basic checks and sanitizations in the configuration.
// Returns true if config is acceptable, error otherwise.
func (c *Configuration) Sanitize() error {
	sUrl, err := validateURL(c.ServerUrl)
	if err != nil {
		return fmt.Errorf("serverUrl is not a valid URL <%s>: %w", c.ServerUrl, err)
	}
	c.ServerUrl = sUrl

	aUrl, err := validateURL(c.Agent.URL)
	if err != nil {
		return fmt.Errorf("agent url is not a valid URL <%s>: %w", c.Agent.URL, err)
	}
	c.Agent.URL = aUrl

	if c.Agent.HealthPath != "" && !strings.HasPrefix(c.Agent.HealthPath, "/") {
		c.Agent.HealthPath = "/" + c.Agent.HealthPath
	}

	switch c.Cache.Provider {
	case CacheProviderMemory, CacheProviderNone:
	case CacheProviderRedis, CacheProviderValKey:
		if c.Cache.Url == "" {
			return fmt.Errorf("a cache url must be provided for provider %s", c.Cache.Provider)
		}
	default:
		return fmt.Errorf("unknown cache provider <%s>", c.Cache.Provider)
	}

	if c.Notifications.UsePubSub && c.Cache.Provider != CacheProviderRedis && c.Cache.Provider != CacheProviderValKey {
		return fmt.Errorf("pubsub notifications require the redis or valkey cache provider")
	}

	if c.Lifecycle.MaxAttempts < 1 {
		c.Lifecycle.MaxAttempts = 1
	}
	if c.Lifecycle.MaxStallInterval < c.Lifecycle.StallInterval {
		c.Lifecycle.MaxStallInterval = c.Lifecycle.StallInterval
	}

	return nil
}

// SanitizeLedger checks the settings needed to write to the ledger.
func (c *Configuration) SanitizeLedger() error {
	if c.Ledger.ContractAddress == "" {
		return fmt.Errorf("a ledger contract address must be provided")
	}
	if c.Ledger.PrivateKey == "" {
		return fmt.Errorf("a ledger signing key must be provided")
	}
	if c.Ledger.GasLimit == 0 {
		return fmt.Errorf("a ledger gas limit must be provided")
	}
	if c.Ledger.PendingCheckFrequency <= 0 {
		c.Ledger.PendingCheckFrequency = time.Minute
	}
	return nil
}

func validateURL(raw string) (string, error) {
	sUrl, err := url.ParseRequestURI(raw)
	if err != nil {
		return raw, err
	}
	if sUrl.Scheme == "" {
		return raw, fmt.Errorf("url must be an absolute URL")
	}
	sUrl.RawQuery = ""
	return strings.Trim(strings.Trim(sUrl.String(), "/"), "?"), nil
}

// Load loads the configuration from the environment. Values found in the optional
// env files are loaded first and never override variables already set.
func Load(envFiles ...string) (*Configuration, error) {
	ctx := context.Background()
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			log.Debug(ctx, "env file not loaded", "file", f, "err", err)
		}
	}

	cfg := &Configuration{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	checkEnvVars(ctx, cfg)
	return cfg, nil
}

func checkEnvVars(ctx context.Context, cfg *Configuration) {
	if cfg.Database.URL == "" {
		log.Info(ctx, "ACADEMIC_DATABASE_URL value is missing")
	}

	if cfg.HTTPBasicAuth.User == "" {
		log.Info(ctx, "ACADEMIC_API_AUTH_USER value is missing")
	}

	if cfg.HTTPBasicAuth.Password == "" {
		log.Info(ctx, "ACADEMIC_API_AUTH_PASSWORD value is missing")
	}

	if cfg.Agent.APIKey == "" {
		log.Info(ctx, "ACADEMIC_AGENT_API_KEY value is missing")
	}

	if cfg.Ledger.ContractAddress == "" {
		log.Info(ctx, "ACADEMIC_LEDGER_CONTRACT_ADDRESS value is missing")
	}

	if cfg.Ledger.PrivateKey == "" {
		log.Info(ctx, "ACADEMIC_LEDGER_PRIVATE_KEY value is missing")
	}

	if cfg.Notifications.WebhookURL == "" {
		log.Info(ctx, "ACADEMIC_NOTIFICATIONS_WEBHOOK_URL value is missing")
	}
}
