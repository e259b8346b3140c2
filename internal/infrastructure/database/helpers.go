package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
)

// Close closes the pool. Safe to call more than once.
func (db *PostgresDB) Close() {
	if db.Pool == nil {
		return
	}
	db.Pool.Close()
	db.Pool = nil
	log.Info().Msg("[DATABASE] Connection pool closed")
}

// MonitorPoolHealth publishes pool statistics as gauges and warns on
// saturation until ctx is cancelled.
func (db *PostgresDB) MonitorPoolHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if db.Pool == nil {
				continue
			}
			stats := db.Pool.Stat()

			metrics.DBPoolConnections.WithLabelValues("acquired").Set(float64(stats.AcquiredConns()))
			metrics.DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
			metrics.DBPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns()))

			if stats.MaxConns() > 0 {
				utilization := float64(stats.AcquiredConns()) / float64(stats.MaxConns()) * 100
				if utilization > 80 {
					log.Warn().
						Float64("utilization_pct", utilization).
						Int32("acquired", stats.AcquiredConns()).
						Int32("max", stats.MaxConns()).
						Msg("[DATABASE] High pool utilization")
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
