// Package milvus stores averaged descriptor vectors in a Milvus collection
// so featurized structures can be queried by similarity.
package milvus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// milvusNewClient is swapped out in tests.
var milvusNewClient = client.NewClient

var (
	// ErrConnectionFailed is returned when the initial health check fails.
	ErrConnectionFailed = errors.New(errors.ErrCodeDatabaseError, "failed to connect to milvus")

	// ErrUnhealthy is returned by CheckHealth when the cluster does not
	// respond.
	ErrUnhealthy = errors.New(errors.ErrCodeDatabaseError, "milvus cluster unhealthy")
)

// ClientConfig holds Milvus connection settings.
type ClientConfig struct {
	Address             string
	DBName              string
	ConnectTimeout      time.Duration
	HealthCheckInterval time.Duration
}

// ClientConfigFromApp derives a ClientConfig from the application Milvus
// settings.
func ClientConfigFromApp(cfg config.MilvusConfig) ClientConfig {
	return ClientConfig{
		Address: cfg.Addr,
		DBName:  cfg.DBName,
	}
}

// Client manages the Milvus connection and its background health check.
type Client struct {
	milvusClient client.Client
	config       ClientConfig
	logger       logging.Logger
	healthy      atomic.Bool
	cancel       context.CancelFunc
	mu           sync.RWMutex
}

// NewClient connects to Milvus and verifies the cluster is healthy before
// returning.
func NewClient(cfg ClientConfig, logger logging.Logger) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus address is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.DBName == "" {
		cfg.DBName = "default"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	mc, err := milvusNewClient(connectCtx, client.Config{
		Address: cfg.Address,
		DBName:  cfg.DBName,
	})
	connectCancel()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create milvus client")
	}

	c := &Client{
		milvusClient: mc,
		config:       cfg,
		logger:       logger,
		cancel:       cancel,
	}

	if err := c.CheckHealth(ctx); err != nil {
		_ = c.Close()
		return nil, ErrConnectionFailed
	}

	go c.healthLoop(ctx)

	logger.Info("milvus client connected", logging.String("address", cfg.Address))
	return c, nil
}

// CheckHealth pings the cluster and updates the cached health flag.
func (c *Client) CheckHealth(ctx context.Context) error {
	c.mu.RLock()
	mc := c.milvusClient
	c.mu.RUnlock()
	if mc == nil {
		return ErrConnectionFailed
	}

	if _, err := mc.CheckHealth(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("milvus health check failed", logging.Err(err))
		return ErrUnhealthy
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the result of the most recent health check.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

// GetMilvusClient exposes the underlying SDK client.
func (c *Client) GetMilvusClient() client.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.milvusClient
}

// Close stops the health loop and releases the connection.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.milvusClient != nil {
		c.milvusClient.Close()
	}
	c.logger.Info("milvus client closed")
	return nil
}

func (c *Client) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			_ = c.CheckHealth(ctx)
			curr := c.healthy.Load()
			if prev && !curr {
				c.logger.Error("milvus cluster became unhealthy")
			} else if !prev && curr {
				c.logger.Info("milvus cluster recovered")
			}
		}
	}
}
