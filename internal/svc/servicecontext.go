package svc

import (
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"wattline/internal/cache"
	"wattline/internal/config"
	"wattline/internal/query"
	"wattline/internal/querycache"
	"wattline/internal/repo"
	"wattline/internal/rollup"
	"wattline/pkg/pricing"
)

// ServiceContext carries the shared collaborators wired once at startup.
// Fields stay nil when their backing service is not configured, so a
// test environment can run with only the in-memory pieces.
type ServiceContext struct {
	Config config.Config

	DBConn sqlx.SqlConn
	Repos  *repo.Set

	Redis *redis.Redis
	Cache querycache.Cache
	TTL   cache.TTLSet

	Aggregator *rollup.Job
	Engine     *query.Engine

	Pricing *pricing.Schedule
}

func NewServiceContext(c *config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config:  *c,
		TTL:     cache.NewTTLSet(c.TTL),
		Pricing: c.Pricing.Value,
	}

	var lock rollup.Locker
	if c.Redis.Host != "" {
		rds := redis.MustNewRedis(c.Redis)
		svc.Redis = rds
		svc.Cache = querycache.NewRedisCache(rds)

		redisLock := redis.NewRedisLock(rds, cache.AggregatorLockKey())
		redisLock.SetExpire(cache.AggregatorLockSeconds())
		lock = redisLock
	} else {
		svc.Cache = querycache.NewMemory()
	}

	// Only wire storage-backed components when a DSN is provided; the
	// cache and pricing schedule work without Postgres.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		if raw, err := conn.RawDB(); err == nil {
			raw.SetMaxOpenConns(c.Postgres.MaxOpen)
			raw.SetMaxIdleConns(c.Postgres.MaxIdle)
		}
		svc.DBConn = conn

		repos, err := repo.New(repo.Dependencies{
			DBConn:   conn,
			Location: c.Location(),
		})
		if err != nil {
			log.Fatalf("build repositories: %v", err)
		}
		svc.Repos = repos

		job, err := rollup.New(rollup.Config{
			Readings:        repos.Readings,
			Buckets:         repos.Buckets,
			Checkpoint:      repos.Checkpoint,
			Cache:           svc.Cache,
			Lock:            lock,
			CheckpointEvery: c.Aggregator.CheckpointEvery,
			SeedLookback:    time.Duration(c.Aggregator.SeedLookbackHours) * time.Hour,
			ChunkMinutes:    c.Aggregator.BackfillChunkMinutes,
		})
		if err != nil {
			log.Fatalf("build aggregator: %v", err)
		}
		svc.Aggregator = job

		engine, err := query.New(query.Config{
			Readings: repos.Readings,
			Buckets:  repos.Buckets,
			Cache:    svc.Cache,
			TTL:      cache.QueryTTL(svc.TTL),
			Location: c.Location(),
		})
		if err != nil {
			log.Fatalf("build query engine: %v", err)
		}
		svc.Engine = engine
	}

	return svc
}
