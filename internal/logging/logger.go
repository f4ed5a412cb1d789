package logging

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// New returns a console logger at the given level ("debug", "info",
// "warn", "error").
func New(level string) arbor.ILogger {
	logger := arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	})
	if level == "" {
		level = "info"
	}
	return logger.WithLevelFromString(level)
}
