package app

import (
	"context"
	"fmt"
	"log/slog"

	"go-identity/internal/config"
	"go-identity/internal/database"
	"go-identity/internal/model"
	"go-identity/internal/repository"
	"go-identity/internal/repository/memory"
	"go-identity/internal/service"
)

// UserStore is the user directory plus the account creation used by the CLI.
type UserStore interface {
	service.UserDirectory
	Create(ctx context.Context, u model.User) error
}

type OrgStore interface {
	service.OrgDirectory
	CreateNode(ctx context.Context, level model.OrgLevel, name string, parentID *int64) (model.OrgNode, error)
	DeleteNode(ctx context.Context, level model.OrgLevel, id int64) error
}

// Stores bundles the repositories of one storage driver.
type Stores struct {
	Users       UserStore
	Orgs        OrgStore
	Revocations service.RevocationStore
	Resets      service.ResetStore

	health func(ctx context.Context) error
	close  func()
}

func (s *Stores) Health(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	return s.health(ctx)
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects the configured storage driver. For Postgres the
// bootstrap schema is applied as well.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		m := memory.New()
		return &Stores{
			Users:       m.Users(),
			Orgs:        m.Orgs(),
			Revocations: m.Revocations(),
			Resets:      m.Resets(),
		}, nil

	case config.StoreDriverPostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		pool := db.Pool
		slog.Info("database ready")
		return &Stores{
			Users:       repository.NewUserRepository(pool),
			Orgs:        repository.NewOrgRepository(pool),
			Revocations: repository.NewRevocationRepository(pool),
			Resets:      repository.NewResetRepository(pool),
			health:      db.Health,
			close:       db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
