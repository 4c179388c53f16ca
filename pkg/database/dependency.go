package database

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
)

// Dependency opens and closes the postgres pool as part of startup.
type Dependency struct {
	cfg    Config
	logger ectologger.Logger
	db     DB
}

func NewDependency(cfg Config, logger ectologger.Logger) *Dependency {
	return &Dependency{cfg: cfg, logger: logger}
}

func (d *Dependency) GetName() string {
	return "database"
}

func (d *Dependency) DependsOn() []string {
	return nil
}

func (d *Dependency) Start(ctx context.Context) error {
	db, err := Connect(ctx, d.cfg, d.logger)
	if err != nil {
		return err
	}
	d.db = db
	return nil
}

func (d *Dependency) Stop(ctx context.Context) error {
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.db = nil
	return nil
}

// DB returns the pool opened by Start, or nil before it succeeds.
func (d *Dependency) DB() DB {
	return d.db
}
