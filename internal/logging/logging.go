package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/matka-backoffice/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global zerolog logger from LogConfig. When a log file is set, output is
// rotated through lumberjack and also mirrored to stderr in DEV.
func Setup(cfg config.LogConfig, env string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.GetLogLevel()))
	if err != nil || cfg.GetLogLevel() == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(Writer(cfg, env)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// Writer returns the destination described by cfg
func Writer(cfg config.LogConfig, env string) io.Writer {
	var out io.Writer = os.Stderr
	if strings.ToLower(cfg.GetLogFormat()) != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	if cfg.GetLogFile() == "" {
		return out
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.GetLogFile(),
		MaxSize:    cfg.GetLogMaxSize(),
		MaxBackups: cfg.GetLogMaxBackups(),
		MaxAge:     cfg.GetLogMaxAge(),
		Compress:   cfg.GetLogCompress(),
	}
	if env == "DEV" {
		return zerolog.MultiLevelWriter(out, rotated)
	}
	return rotated
}
