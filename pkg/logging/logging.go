// Package logging builds the zap loggers handed to the reduction components.
// Nothing here is global: callers construct a logger once and inject it.
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names used across the reduction pipeline
const (
	FieldComponent = "component"
	FieldFolder    = "folder"
	FieldFile      = "file"
	FieldFrames    = "frames"
	FieldWorkers   = "workers"
	FieldROI       = "roi"
	FieldBins      = "bins"
	FieldDuration  = "duration"
)

// Options selects the logger flavour
type Options struct {
	// Verbose enables debug level output
	Verbose bool

	// JSON switches from the human-readable console encoder to JSON lines
	JSON bool
}

// New builds a logger writing to stdout
func New(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	if opts.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stdout"}
		return config.Build()
	}

	return zap.New(consoleCore(zapcore.Lock(os.Stdout), isTerminal(os.Stdout), level)), nil
}

// isTerminal reports whether f is an interactive terminal
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// consoleCore is the human-readable core. Level names are colored only when
// color is set, so redirected output stays free of escape codes.
func consoleCore(w zapcore.WriteSyncer, color bool, level zapcore.Level) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), w, level)
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Component returns a child logger tagged with the component name
func Component(l *zap.Logger, name string) *zap.Logger {
	return OrNop(l).With(zap.String(FieldComponent, name))
}
