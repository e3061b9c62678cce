package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config describes where log output goes.
type Config struct {
	Level string
	// Dir receives one file per named logger. Empty disables file output.
	Dir     string
	Console io.Writer
	RunID   string
}

// Logging hands out named loggers. It is created once at startup and
// closed at shutdown.
type Logging struct {
	level   zerolog.Level
	dir     string
	console io.Writer
	runID   string

	mu    sync.Mutex
	files map[string]*os.File
}

func New(cfg Config) (*Logging, error) {
	console := cfg.Console
	if console == nil {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", cfg.Dir, err)
		}
	}
	return &Logging{
		level:   ParseLevel(cfg.Level),
		dir:     cfg.Dir,
		console: console,
		runID:   cfg.RunID,
		files:   make(map[string]*os.File),
	}, nil
}

// ParseLevel maps debug, warn and error to their levels and anything else
// to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// FileName is the log file used for a logger name: "Job Exporter" logs to
// job_exporter.log.
func FileName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_") + ".log"
}

// Logger returns a logger that writes to the console and, when a log dir is
// configured, appends to the logger's own file.
func (l *Logging) Logger(name string) zerolog.Logger {
	writers := []io.Writer{l.console}

	var fileErr error
	if l.dir != "" {
		f, err := l.file(name)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, f)
		}
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(l.level).
		With().
		Timestamp().
		Str("logger", strings.ReplaceAll(strings.ToLower(name), " ", "_"))
	if l.runID != "" {
		ctx = ctx.Str("run_id", l.runID)
	}
	logger := ctx.Logger()

	if fileErr != nil {
		logger.Warn().Err(fileErr).Msg("logging to console only")
	}
	return logger
}

func (l *Logging) file(name string) (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fileName := FileName(name)
	if f, ok := l.files[fileName]; ok {
		return f, nil
	}
	path := filepath.Join(l.dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	l.files[fileName] = f
	return f, nil
}

// Close closes every log file.
func (l *Logging) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for name, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(l.files, name)
	}
	return errors.Join(errs...)
}
