package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
)

// New returns a console-only logger writing to stderr. Commands that do not
// produce a run log (config, cache) use this.
func New(verbose bool) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(console).Level(level(verbose)).With().Timestamp().Logger()
}

// NewRunLogger returns a logger that writes to stderr and to a per-run log
// file under dir. Every line carries the caller's run id so interleaved runs
// stay distinguishable. The returned closer flushes and closes the file.
func NewRunLogger(dir, runID string, verbose bool) (zerolog.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("run_%s_%s.log", time.Now().Format("20060102_150405"), runID)
	logFile, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	var sink io.Writer = zerolog.MultiLevelWriter(console, logFile)

	logger := zerolog.New(sink).Level(level(verbose)).With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	return logger, logFile.Close, nil
}

// DefaultLogDir is where run logs land unless configured otherwise.
func DefaultLogDir() string {
	return filepath.Join(xdg.StateHome, "engagelens", "logs")
}

func level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
