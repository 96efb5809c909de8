// Package cli holds the start-up plumbing shared by netlab-server and
// netlab-client.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/mubashir1osmani/netlab/pkg/config"
	"github.com/mubashir1osmani/netlab/pkg/log"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitRefused      = 2
	ExitVerification = 3
	ExitHandshake    = 4
)

// LoadConfig returns Default when path is empty, else the parsed file.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// Apply calls set for every flag that was given on the command line, so
// flags override the config file only when set explicitly.
func Apply(fs *flag.FlagSet, set func(name string)) {
	fs.Visit(func(f *flag.Flag) { set(f.Name) })
}

// Logging bundles the operational and protocol loggers of a binary.
type Logging struct {
	// Slog is the operational logger.
	Slog *slog.Logger

	// Protocol receives protocol events: always the slog adapter, plus the
	// capture file when one was configured.
	Protocol log.Logger

	capture *log.FileLogger
}

// SetupLogging builds the loggers described by cfg.Logging. Operational
// output goes to w.
func SetupLogging(cfg *config.Config, w io.Writer) (*Logging, error) {
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	sl := slog.New(cfg.NewSlogHandler(w))
	l := &Logging{Slog: sl}

	loggers := []log.Logger{log.NewSlogAdapter(sl)}
	if cfg.Logging.Capture != "" {
		fl, err := log.NewFileLogger(cfg.Logging.Capture)
		if err != nil {
			return nil, fmt.Errorf("open capture %s: %w", cfg.Logging.Capture, err)
		}
		l.capture = fl
		loggers = append(loggers, fl)
	}
	l.Protocol = log.NewMultiLogger(loggers...)
	return l, nil
}

// Close flushes the capture file, if any.
func (l *Logging) Close() error {
	if l.capture == nil {
		return nil
	}
	err := l.capture.Close()
	l.Slog.Debug("capture closed", "events", l.capture.Written())
	return err
}

// IsHelp reports whether err came from -h or -help.
func IsHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
