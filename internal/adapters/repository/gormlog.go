package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/rollcall/pkg/logger"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// gormLog forwards gorm's logging to the service logger.
type gormLog struct {
	log           logger.Logger
	slowThreshold time.Duration
	level         gormLogger.LogLevel
}

func newGormLogger(l logger.Logger, slow time.Duration) gormLogger.Interface {
	return &gormLog{log: l, slowThreshold: slow, level: gormLogger.Warn}
}

func (g *gormLog) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLog) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= gormLogger.Info {
		g.log.Info(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *gormLog) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= gormLogger.Warn {
		g.log.Warn(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *gormLog) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= gormLogger.Error {
		g.log.Error(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g *gormLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormLogger.Error:
		sql, rows := fc()
		g.log.Error(ctx, "query failed",
			logger.String("sql", sql),
			logger.Int("rows", int(rows)),
			logger.Duration("elapsed", elapsed),
			logger.Error(err),
		)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormLogger.Warn:
		sql, rows := fc()
		g.log.Warn(ctx, "slow query",
			logger.String("sql", sql),
			logger.Int("rows", int(rows)),
			logger.Duration("elapsed", elapsed),
		)
	case g.level >= gormLogger.Info:
		sql, rows := fc()
		g.log.Debug(ctx, "query",
			logger.String("sql", sql),
			logger.Int("rows", int(rows)),
			logger.Duration("elapsed", elapsed),
		)
	}
}
