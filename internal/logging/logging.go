// Package logging wires up the logrus-based logger shared across the
// orchestrator and pipeline: a nested-logrus-formatter + shiena/ansicolor
// stack writing to an arbitrary log directory and level.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	Level        string // parsed with logrus.ParseLevel; defaults to info on error
	Dir          string // if non-empty, a dated log file is created under it
	ToStdout     bool
	RunID        string // used as the filename stem when set, else the date
}

// New builds a *logrus.Logger writing to stdout and/or a log file.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	var writers []io.Writer
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", opts.Dir, err)
		}
		stem := opts.RunID
		if stem == "" {
			stem = time.Now().Format("2006-01-02")
		}
		path := filepath.Join(opts.Dir, stem+".log")
		file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		writers = append(writers, file)
	}
	if opts.ToStdout || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	logger.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(writers...)))

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger, nil
}
