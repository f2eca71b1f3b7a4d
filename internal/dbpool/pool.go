package dbpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"docs-mcp-server/pkg/crypto"
)

// Snapshot is the derived pool/health view.
type Snapshot struct {
	MaxConnections       int32
	MinConnections       int32
	ActiveConnections    int32
	IdleConnections      int32
	TotalAcquisitions    int64
	AcquisitionFailures  int64
	TotalQueries         int64
	QueryFailures        int64
	SuccessRatePercent   float64
	UtilizationPercent   float64
	LastHealthCheckEpoch int64
}

// HealthResult is a cached pool-ping result.
type HealthResult struct {
	IsHealthy      bool
	ResponseTimeMS int64
	ActiveEstimate int32
	IdleEstimate   int32
	CheckedAt      time.Time
}

// Pool wraps a bounded PostgreSQL connection pool with retry-classified
// startup, a cached health probe, and runtime metrics.
type Pool struct {
	cfg Config
	pgx *pgxpool.Pool
	mx  metricsCollector

	acquisitions        atomic.Int64
	acquisitionFailures atomic.Int64
	queries             atomic.Int64
	queryFailures       atomic.Int64

	healthTTL time.Duration
	healthMu  sync.Mutex
	health    HealthResult
}

// Open validates cfg, logs a secret-safe summary, and opens the pool using
// an exponential-backoff-with-jitter retry executor to classify errors,
// then performs an initial health check.
func Open(ctx context.Context, cfg Config, retryCfg RetryConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("opening database pool",
		"url", crypto.RedactURL(cfg.DatabaseURL),
		"min", cfg.MinConnections,
		"max", cfg.MaxConnections,
		"app_name", cfg.AppName,
	)

	url := withAppName(cfg.DatabaseURL, cfg.AppName)

	pgxCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, &ClassifiedError{Kind: ErrOther, Err: err}
	}
	pgxCfg.MinConns = int32(cfg.MinConnections)
	pgxCfg.MaxConns = int32(cfg.MaxConnections)
	pgxCfg.MaxConnLifetime = cfg.MaxLifetime
	pgxCfg.MaxConnIdleTime = cfg.IdleTimeout

	p := &Pool{cfg: cfg, mx: newMetricsCollector(), healthTTL: 5 * time.Second}

	exec := &Executor{Config: retryCfg, Classifier: classifyPgError}
	err = exec.Do(ctx, "pool_open", func(ctx context.Context) error {
		acquireCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
		defer cancel()
		pool, openErr := pgxpool.NewWithConfig(acquireCtx, pgxCfg)
		if openErr != nil {
			return openErr
		}
		if pingErr := pool.Ping(acquireCtx); pingErr != nil {
			pool.Close()
			return pingErr
		}
		p.pgx = pool
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := p.HealthCheck(ctx); err != nil {
		slog.Warn("initial health check failed", "error", err)
	}

	return p, nil
}

// Raw returns the underlying pgxpool.Pool for use by the job store.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pgx
}

// Close releases the pool's connections.
func (p *Pool) Close() {
	if p.pgx != nil {
		p.pgx.Close()
	}
}

// Ping runs SELECT 1, counting the attempt and any failure.
func (p *Pool) Ping(ctx context.Context) error {
	p.acquisitions.Add(1)
	p.queries.Add(1)
	var one int
	row := p.pgx.QueryRow(ctx, "SELECT 1")
	if err := row.Scan(&one); err != nil {
		p.acquisitionFailures.Add(1)
		p.queryFailures.Add(1)
		return err
	}
	return nil
}

// HealthCheck returns the cached health result if fresh, else pings and
// refreshes the cache.
func (p *Pool) HealthCheck(ctx context.Context) (HealthResult, error) {
	p.healthMu.Lock()
	if time.Since(p.health.CheckedAt) < p.healthTTL && !p.health.CheckedAt.IsZero() {
		cached := p.health
		p.healthMu.Unlock()
		return cached, nil
	}
	p.healthMu.Unlock()

	start := time.Now()
	err := p.Ping(ctx)
	elapsed := time.Since(start)

	stat := p.pgx.Stat()
	result := HealthResult{
		IsHealthy:      err == nil,
		ResponseTimeMS: elapsed.Milliseconds(),
		ActiveEstimate: stat.AcquiredConns(),
		IdleEstimate:   stat.IdleConns(),
		CheckedAt:      time.Now(),
	}

	p.healthMu.Lock()
	p.health = result
	p.healthMu.Unlock()

	return result, err
}

// Status composes health + metrics snapshot + utilization.
func (p *Pool) Status(ctx context.Context) Snapshot {
	stat := p.pgx.Stat()
	health, _ := p.HealthCheck(ctx)

	totalQ := p.queries.Load()
	failQ := p.queryFailures.Load()
	successRate := 100.0
	if totalQ > 0 {
		successRate = 100.0 * float64(totalQ-failQ) / float64(totalQ)
	}

	utilization := 0.0
	if p.cfg.MaxConnections > 0 {
		utilization = 100.0 * float64(stat.AcquiredConns()) / float64(p.cfg.MaxConnections)
	}

	return Snapshot{
		MaxConnections:       int32(p.cfg.MaxConnections),
		MinConnections:       int32(p.cfg.MinConnections),
		ActiveConnections:    stat.AcquiredConns(),
		IdleConnections:      stat.IdleConns(),
		TotalAcquisitions:    p.acquisitions.Load(),
		AcquisitionFailures:  p.acquisitionFailures.Load(),
		TotalQueries:         totalQ,
		QueryFailures:        failQ,
		SuccessRatePercent:   successRate,
		UtilizationPercent:   utilization,
		LastHealthCheckEpoch: health.CheckedAt.Unix(),
	}
}

// Monitor reads Status every interval and warns when utilization > 80% or
// success rate < 95%. It runs in the caller's goroutine and returns when ctx
// is cancelled.
func (p *Pool) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := p.Status(ctx)
			p.mx.observe(snap)
			if snap.UtilizationPercent > 80 {
				slog.Warn("pool utilization high", "utilization_percent", snap.UtilizationPercent)
			}
			if snap.SuccessRatePercent < 95 {
				slog.Warn("pool success rate low", "success_rate_percent", snap.SuccessRatePercent)
			}
		}
	}
}

// classifyPgError maps a pgx/pgconn error into a Pool error kind.
func classifyPgError(err error) ErrorKind {
	if err == nil {
		return ErrOther
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000": // invalid_password, invalid_authorization_specification
			return ErrAuthenticationFailed
		case "3D000": // invalid_catalog_name
			return ErrDatabaseNotFound
		case "53300": // too_many_connections
			return ErrTooManyConnections
		case "57P03", "08006", "08001", "08004": // cannot_connect_now, connection failures
			return ErrConnectionFailed
		}
		return ErrOther
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrConnectionFailed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTemporarilyUnavailable
	}

	return ErrConnectionFailed
}
