// Package logging provides leveled logging for volumeviewer. Messages go to
// the standard log package unless a rotating log file is configured.
package logging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var (
	mu   sync.RWMutex
	mode = InfoMode
	out  *lumberjack.Logger
)

// LogConfig describes an optional rotating log file.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size" yaml:"maxLogSize"`
	MaxAge  int `toml:"max_log_age" yaml:"maxLogAge"`
}

// SetLogger creates a logger that saves to a rotating log file. With no
// file configured, messages keep going to the standard logger.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Infof("Sending log messages to stdout since no log file specified.")
		return
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	mu.Lock()
	out = l
	mu.Unlock()
	log.SetOutput(l)
}

// Shutdown closes the log file if one is open.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		out.Close()
		out = nil
	}
}

// SetLogMode sets the severity required for a log message to be printed.
// SetLogMode(WarningMode) logs Warningf and Errorf calls only; SilentMode
// turns off all logging.
func SetLogMode(newMode ModeFlag) {
	mu.Lock()
	mode = newMode
	mu.Unlock()
}

func enabled(m ModeFlag) bool {
	mu.RLock()
	defer mu.RUnlock()
	return mode <= m
}

func write(level, format string, args ...interface{}) {
	log.Printf(" %s %s", level, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	if enabled(DebugMode) {
		write("DEBUG", format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if enabled(InfoMode) {
		write("INFO", format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if enabled(WarningMode) {
		write("WARNING", format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if enabled(ErrorMode) {
		write("ERROR", format, args...)
	}
}

// TimeLog adds elapsed time to logging.
//
//	tlog := logging.NewTimeLog()
//	...
//	tlog.Infof("built volume")  // appends time elapsed since NewTimeLog()
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s", append(args, time.Since(t.start))...)
}
