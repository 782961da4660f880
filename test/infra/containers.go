package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PGContainer wraps the disposable PostgreSQL container backing a stress run.
// The zero value stands in when an external database is reused; Terminate is
// a no-op then.
type PGContainer struct {
	C *postgres.PostgresContainer
}

const (
	containerImage    = "postgres:16"
	containerDatabase = "staybook_test"
	containerUser     = "staybook"
	containerPassword = "staybook"
)

// StartPostgres16 starts a PostgreSQL 16 container and returns its DSN.
// overrideDSN or STRESS_TEST_PG_DSN short-circuits container startup and
// reuses that database instead.
func StartPostgres16(ctx context.Context, overrideDSN string) (*PGContainer, string, error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, nil
	}
	if dsn := os.Getenv("STRESS_TEST_PG_DSN"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		containerImage,
		postgres.WithDatabase(containerDatabase),
		postgres.WithUsername(containerUser),
		postgres.WithPassword(containerPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
