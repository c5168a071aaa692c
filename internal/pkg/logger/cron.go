package logger

import (
	log "log/slog"
)

// CronLogger 适配 robfig/cron 的 Logger 接口
type CronLogger struct{}

func NewCronLogger() CronLogger {
	return CronLogger{}
}

func (CronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron 的调度心跳（wake/run）过于频繁，降为 debug
	log.Debug("Cron "+msg, keysAndValues...)
}

func (CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error("Cron "+msg, append(keysAndValues, "err", err)...)
}
