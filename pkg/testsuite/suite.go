package testsuite

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// BaseSuite owns the containers shared by the integration suites. Suites that
// only need Redis call SetupRedis alone.
type BaseSuite struct {
	suite.Suite
	PgContainer    *postgres.PostgresContainer
	RedisContainer *tcredis.RedisContainer
	DbPool         *pgxpool.Pool
	Redis          *redis.Client
	Ctx            context.Context
}

func (s *BaseSuite) SetupInfrastructure(migrationsRelPath string) {
	s.SetupPostgres(migrationsRelPath)
	s.SetupRedis()
}

func (s *BaseSuite) SetupPostgres(migrationsRelPath string) {
	if s.Ctx == nil {
		s.Ctx = context.Background()
	}

	var err error
	s.PgContainer, err = postgres.Run(
		s.Ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	connStr, err := s.PgContainer.ConnectionString(s.Ctx, "sslmode=disable")
	s.Require().NoError(err)

	absPath, err := filepath.Abs(migrationsRelPath)
	s.Require().NoError(err)

	sourceURL := "file://" + absPath
	log.Printf("Running migrations from: %s", sourceURL)

	m, err := migrate.New(sourceURL, connStr)
	s.Require().NoError(err)
	s.Require().NoError(m.Up())

	s.DbPool, err = pgxpool.New(s.Ctx, connStr)
	s.Require().NoError(err)
}

func (s *BaseSuite) SetupRedis() {
	if s.Ctx == nil {
		s.Ctx = context.Background()
	}

	var err error
	s.RedisContainer, err = tcredis.Run(s.Ctx, "redis:7-alpine")
	s.Require().NoError(err)

	uri, err := s.RedisContainer.ConnectionString(s.Ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	s.Redis = redis.NewClient(opts)
	s.Require().NoError(s.Redis.Ping(s.Ctx).Err())
}

func (s *BaseSuite) TearDownInfrastructure() {
	if s.DbPool != nil {
		s.DbPool.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("Failed to close redis client: %v", err)
		}
	}
	if s.PgContainer != nil {
		if err := s.PgContainer.Terminate(s.Ctx); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}
	if s.RedisContainer != nil {
		if err := s.RedisContainer.Terminate(s.Ctx); err != nil {
			log.Printf("Failed to terminate redis container: %v", err)
		}
	}
}

func (s *BaseSuite) TruncateTable(tableName string) {
	_, err := s.DbPool.Exec(s.Ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", tableName))
	s.Require().NoError(err)
}

func (s *BaseSuite) FlushRedis() {
	s.Require().NoError(s.Redis.FlushAll(s.Ctx).Err())
}
