package log

import "github.com/robfig/cron/v3"

// cronLogger routes robfig/cron's internal logging into this package.
// cron's Info output is chatty (every wake-up), so it is demoted to DEBUG.
type cronLogger struct{}

// CronLogger returns a cron.Logger backed by the package-level logger.
func CronLogger() cron.Logger {
	return cronLogger{}
}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Error("cron: "+msg, err, keysAndValues...)
}
