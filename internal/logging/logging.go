// Package logging constructs the process loggers.
//
// Each component gets a stdlib *log.Logger with a bracketed prefix
// ([session], [store], [bridge], ...). When a log file is configured the
// sink is a size-rotated file; otherwise stderr.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/planward/planward/internal/config"
)

// Sink is the shared log destination for the process.
type Sink struct {
	w io.Writer
	c io.Closer
}

// NewSink builds the log destination from config. The caller owns Close.
func NewSink(cfg config.Log) *Sink {
	if cfg.File == "" {
		return &Sink{w: os.Stderr}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return &Sink{w: io.MultiWriter(os.Stderr, lj), c: lj}
}

// Logger returns a component logger writing to the sink.
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.w, "["+component+"] ", log.LstdFlags)
}

// Close releases the file sink, if any.
func (s *Sink) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
