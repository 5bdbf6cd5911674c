package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logFileMaxSizeMB is the size at which the activity log rotates.
const logFileMaxSizeMB = 10

// New creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses human-readable text.
// When logDir is non-empty, output is mirrored to a rotating log.txt
// in that directory, keeping at most maxLogFiles rotated files.
func New(env, logDir string, maxLogFiles int) *slog.Logger {
	var out io.Writer = os.Stdout

	if logDir != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "log.txt"),
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: maxLogFiles,
		})
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	opts.Level = slog.LevelDebug

	return slog.New(slog.NewTextHandler(out, opts))
}
