package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.ServerPort)
	assert.Equal(t, CacheProviderMemory, cfg.Cache.Provider)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, "/status/ready", cfg.Agent.HealthPath)
	assert.Equal(t, 5*time.Second, cfg.Lifecycle.StallInterval)
	assert.Equal(t, 1, cfg.Lifecycle.MaxAttempts)
	assert.Equal(t, 5, cfg.Lifecycle.AbandonAfterStalls)
	assert.True(t, cfg.Issuance.ProceedOnInactive)
	assert.Equal(t, uint64(500000), cfg.Ledger.GasLimit)
	assert.False(t, cfg.Ledger.StoreMetadata)
	assert.Equal(t, time.Minute, cfg.Ledger.PendingCheckFrequency)
	assert.Equal(t, uint(50), cfg.Ledger.PendingBatchSize)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ACADEMIC_SERVER_PORT", "8080")
	t.Setenv("ACADEMIC_AGENT_URL", "http://agent:8021")
	t.Setenv("ACADEMIC_AGENT_API_KEY", "secret")
	t.Setenv("ACADEMIC_LEDGER_GAS_LIMIT", "120000")
	t.Setenv("ACADEMIC_LIFECYCLE_STALL_INTERVAL", "250ms")
	t.Setenv("ACADEMIC_ISSUANCE_PROCEED_ON_INACTIVE", "false")
	t.Setenv("ACADEMIC_CACHE_PROVIDER", "redis")
	t.Setenv("ACADEMIC_CACHE_URL", "redis://localhost:6379/0")

	cfg, err := Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "http://agent:8021", cfg.Agent.URL)
	assert.Equal(t, "secret", cfg.Agent.APIKey)
	assert.Equal(t, uint64(120000), cfg.Ledger.GasLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Lifecycle.StallInterval)
	assert.False(t, cfg.Issuance.ProceedOnInactive)
	assert.Equal(t, CacheProviderRedis, cfg.Cache.Provider)
	assert.NoError(t, cfg.Sanitize())
}

func TestSanitize(t *testing.T) {
	type testConfig struct {
		name    string
		mutate  func(c *Configuration)
		wantErr bool
		check   func(t *testing.T, c *Configuration)
	}

	valid := func() Configuration {
		return Configuration{
			ServerUrl: "http://localhost:3001/",
			Agent:     Agent{URL: "http://agent:8021/", HealthPath: "status/ready"},
			Cache:     Cache{Provider: CacheProviderMemory},
			Lifecycle: Lifecycle{StallInterval: time.Second},
		}
	}

	for _, tc := range []testConfig{
		{
			name: "trims urls and fixes health path",
			check: func(t *testing.T, c *Configuration) {
				assert.Equal(t, "http://localhost:3001", c.ServerUrl)
				assert.Equal(t, "http://agent:8021", c.Agent.URL)
				assert.Equal(t, "/status/ready", c.Agent.HealthPath)
				assert.Equal(t, 1, c.Lifecycle.MaxAttempts)
				assert.Equal(t, time.Second, c.Lifecycle.MaxStallInterval)
			},
		},
		{
			name:    "relative server url",
			mutate:  func(c *Configuration) { c.ServerUrl = "localhost" },
			wantErr: true,
		},
		{
			name:    "redis without url",
			mutate:  func(c *Configuration) { c.Cache.Provider = CacheProviderRedis },
			wantErr: true,
		},
		{
			name:    "unknown cache provider",
			mutate:  func(c *Configuration) { c.Cache.Provider = "memcached" },
			wantErr: true,
		},
		{
			name:    "pubsub requires redis",
			mutate:  func(c *Configuration) { c.Notifications.UsePubSub = true },
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			if tc.mutate != nil {
				tc.mutate(&c)
			}
			err := c.Sanitize()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, &c)
			}
		})
	}
}

func TestSanitizeLedger(t *testing.T) {
	c := Configuration{}
	assert.Error(t, c.SanitizeLedger())

	c.Ledger = Ledger{ContractAddress: "0x01", PrivateKey: "aa", GasLimit: 1}
	assert.NoError(t, c.SanitizeLedger())
}
