package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/internal/platform/gormstore"
	"github.com/tigerroll/yotposync/internal/schema"
	gormadapter "github.com/tigerroll/yotposync/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/yotposync/pkg/batch/adapter/database/migration"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/yotposync/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// Connections holds the database connections named by yotposync.infrastructure.
type Connections struct {
	Platform *gormadapter.Connection
	// JobRepository is nil when job metadata is kept in memory.
	JobRepository *gormadapter.Connection
}

// distinct returns each connection once.
func (c *Connections) distinct() []*gormadapter.Connection {
	conns := []*gormadapter.Connection{c.Platform}
	if c.JobRepository != nil && c.JobRepository.Name() != c.Platform.Name() {
		conns = append(conns, c.JobRepository)
	}
	return conns
}

// NewConnections opens the platform connection and, when configured, the job
// repository connection.
func NewConnections(cfg *config.Config, provider *gormadapter.Provider) (*Connections, error) {
	infra := cfg.Sync.Infrastructure
	if infra.PlatformDBRef == "" {
		return nil, exception.NewBatchError(module, "infrastructure.platform_db_ref is required", nil, false, false)
	}
	platformConn, err := provider.GetConnection(infra.PlatformDBRef)
	if err != nil {
		return nil, exception.NewBatchErrorf(module, "failed to open platform database '%s'", infra.PlatformDBRef, err)
	}
	conns := &Connections{Platform: platformConn}
	if infra.JobRepositoryDBRef != "" {
		repoConn, err := provider.GetConnection(infra.JobRepositoryDBRef)
		if err != nil {
			return nil, exception.NewBatchErrorf(module, "failed to open job repository database '%s'", infra.JobRepositoryDBRef, err)
		}
		conns.JobRepository = repoConn
	}
	return conns, nil
}

// NewTransactionManager returns the transaction manager of the platform
// connection. Chunk transactions and cursor writes share it.
func NewTransactionManager(conns *Connections) tx.TransactionManager {
	return gormadapter.NewGormTransactionManager(conns.Platform.DB())
}

// NewPlatformStore builds the relational Commerce Platform.
func NewPlatformStore(conns *Connections, tm tx.TransactionManager) *gormstore.Store {
	return gormstore.NewStore(conns.Platform.DB(), tm)
}

// NewJobRepository persists job metadata in SQL when a connection is
// configured and in memory otherwise.
func NewJobRepository(conns *Connections) repository.JobRepository {
	if conns.JobRepository == nil {
		logger.Infof("No job repository database configured. Job metadata is kept in memory.")
		return inmemory.NewInMemoryJobRepository()
	}
	return sqlrepo.NewSQLJobRepository(conns.JobRepository.DB())
}

// Migrate applies the embedded schema to every distinct connection.
func Migrate(ctx context.Context, conns *Connections) error {
	for _, conn := range conns.distinct() {
		m := migration.NewMigrator(conn.SQLDB(), conn.Type())
		if err := m.Up(ctx, schema.FS, schema.Dir(conn.Type()), migration.DefaultMigrationsTable); err != nil {
			return exception.NewBatchError(module, "failed to migrate database '"+conn.Name()+"'", err, false, false)
		}
	}
	return nil
}

func registerMigrations(lc fx.Lifecycle, cfg *config.Config, conns *Connections) {
	if !cfg.Sync.Batch.MigrateOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return Migrate(ctx, conns)
		},
	})
}

// databaseModule provides the connections, the Commerce Platform and the job repository.
var databaseModule = fx.Options(
	gormadapter.Module,
	fx.Provide(
		NewConnections,
		NewTransactionManager,
		NewPlatformStore,
		func(s *gormstore.Store) platform.Platform { return s },
		func(s *gormstore.Store) platform.Transactor { return s },
		func(s *gormstore.Store) platform.ConfigStore { return s },
		func(s *gormstore.Store) platform.SitePreferences { return s },
		NewJobRepository,
	),
	fx.Invoke(registerMigrations),
)
