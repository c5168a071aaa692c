package logger

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// SlogGormLogger 把 gorm 日志转到 slog
// 错误记 ERROR（未找到记录除外），超过慢查询阈值记 WARN，其余只在 Info 级别输出
type SlogGormLogger struct {
	LogLevel      gormlogger.LogLevel
	SlowThreshold time.Duration
}

func NewGormLogger() *SlogGormLogger {
	return &SlogGormLogger{LogLevel: gormlogger.Warn, SlowThreshold: 200 * time.Millisecond}
}

func (l *SlogGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *SlogGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.print(ctx, gormlogger.Info, log.LevelInfo, msg, data)
}

func (l *SlogGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.print(ctx, gormlogger.Warn, log.LevelWarn, msg, data)
}

func (l *SlogGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.print(ctx, gormlogger.Error, log.LevelError, msg, data)
}

func (l *SlogGormLogger) print(ctx context.Context, need gormlogger.LogLevel, level log.Level, msg string, data []interface{}) {
	if l.LogLevel < need {
		return
	}
	log.Log(ctx, level, msg, "data", data, "caller", utils.FileWithLineNum())
}

func (l *SlogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	if !failed && !slow && l.LogLevel < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := []any{
		log.String("op", sqlVerb(sql)),
		log.String("sql", sql),
		log.Int64("rows", rows),
		log.Duration("latency", elapsed),
		log.String("caller", utils.FileWithLineNum()),
	}

	switch {
	case failed && l.LogLevel >= gormlogger.Error:
		log.ErrorContext(ctx, "SQL Error", append(fields, log.Any("err", err))...)
	case slow && l.LogLevel >= gormlogger.Warn:
		log.WarnContext(ctx, "SQL Slow", append(fields, log.Duration("threshold", l.SlowThreshold))...)
	case l.LogLevel >= gormlogger.Info:
		log.DebugContext(ctx, "SQL", fields...)
	}
}

func sqlVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \n\t"); i > 0 {
		return strings.ToUpper(sql[:i])
	}
	return "QUERY"
}
