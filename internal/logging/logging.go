// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"literary-rag/internal/config"
	"literary-rag/internal/helper"
)

// Setup points log.Logger at the console, and at a rotating file when one
// is configured. The returned closer releases the file.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	var console io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.JSON {
		console = os.Stderr
	}

	if cfg.File == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Caller().Logger()
		return nopCloser{}, nil
	}

	if err := helper.CreateFolder(filepath.Dir(cfg.File)); err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Caller().Logger()
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
