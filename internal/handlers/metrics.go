package handlers

import (
	"sync"

	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var dbCollectorOnce sync.Once

// Metrics serves the default Prometheus registry. Connection pool stats for
// db are registered on first use.
func Metrics(db *gorm.DB) gin.HandlerFunc {
	if db != nil {
		dbCollectorOnce.Do(func() {
			sqlDB, err := db.DB()
			if err != nil {
				logger.Warn().Err(err).Msg("db stats collector disabled")
				return
			}
			if err := prometheus.Register(collectors.NewDBStatsCollector(sqlDB, "complaints")); err != nil {
				logger.Warn().Err(err).Msg("db stats collector not registered")
			}
		})
	}
	return gin.WrapH(promhttp.Handler())
}
