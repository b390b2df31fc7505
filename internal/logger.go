package internal

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the JSON logger. When LogFile is set the output is teed
// into a size-rotated file; the returned func closes it.
func newLogger(cfg ApplicationConfig, console io.Writer) (*slog.Logger, func()) {
	w := console
	closeFn := func() {}
	if cfg.LogFile != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(console, fileWriter)
		closeFn = func() { _ = fileWriter.Close() }
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})), closeFn
}
