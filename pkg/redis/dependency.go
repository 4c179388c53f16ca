package redis

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
)

// Dependency connects the Redis client as part of startup.
type Dependency struct {
	cfg    Config
	logger ectologger.Logger
	client *Client
}

func NewDependency(cfg Config, logger ectologger.Logger) *Dependency {
	return &Dependency{cfg: cfg, logger: logger}
}

func (d *Dependency) GetName() string {
	return "redis"
}

func (d *Dependency) DependsOn() []string {
	return nil
}

func (d *Dependency) Start(ctx context.Context) error {
	client, err := NewClient(ctx, d.cfg, d.logger)
	if err != nil {
		return err
	}
	d.client = client
	return nil
}

func (d *Dependency) Stop(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	if err := d.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis: %w", err)
	}
	d.client = nil
	return nil
}

// Client returns the client opened by Start, or nil before it succeeds.
func (d *Dependency) Client() *Client {
	return d.client
}
