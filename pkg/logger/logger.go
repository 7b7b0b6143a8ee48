package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"streambridge/pkg/paths"
)

var Log *slog.Logger

var broadcastCh chan<- string

// SetBroadcast sets a channel to receive formatted log lines. The channel is
// consulted on every record, so it can be set before or after Init.
func SetBroadcast(ch chan<- string) {
	broadcastCh = ch
}

// Init initializes the global logger
func Init(levelStr string) {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Load timezone from TZ environment variable
	tzEnv := os.Getenv("TZ")
	var loc *time.Location
	locationMu.Lock()
	if tzEnv != "" {
		loadedLoc, err := time.LoadLocation(tzEnv)
		if err != nil {
			loc = time.Local
			logLocation = time.Local
		} else {
			loc = loadedLoc
			logLocation = loadedLoc
		}
	} else {
		loc = time.Local
		logLocation = time.Local
	}
	locationMu.Unlock()

	// One log file per day: streambridge-YYYY-MM-DD.log in the data directory
	dataDir := paths.GetDataDir()
	dateStr := time.Now().In(loc).Format("2006-01-02")
	logFilePath := filepath.Join(dataDir, fmt.Sprintf("streambridge-%s.log", dateStr))

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
	} else {
		logFileMu.Lock()
		if logFile != nil {
			logFile.Close()
		}
		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", logFilePath, err)
			logFile = nil
		}
		logFileMu.Unlock()
	}

	tzLoc := loc
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().In(tzLoc)
				return slog.String("time", t.Format("2006-01-02T15:04:05.000-07:00"))
			}
			return a
		},
	}

	handler := &broadcastHandler{
		Handler: slog.NewTextHandler(os.Stdout, opts),
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)
}

// broadcastHandler mirrors every record into the in-memory history, the daily
// log file and the broadcast channel in addition to the wrapped handler.
type broadcastHandler struct {
	slog.Handler
}

var (
	history     []string
	historyMu   sync.RWMutex
	maxHistory  = 500
	logFile     *os.File
	logFileMu   sync.Mutex
	logLocation *time.Location
	locationMu  sync.RWMutex
)

func (h *broadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	locationMu.RLock()
	loc := logLocation
	locationMu.RUnlock()
	if loc == nil {
		loc = time.Local
	}

	formattedTime := r.Time.In(loc)
	msg := fmt.Sprintf("time=%s level=%s msg=%q", formattedTime.Format("2006-01-02T15:04:05.000-07:00"), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	historyMu.Lock()
	if len(history) >= maxHistory {
		history = history[1:]
	}
	history = append(history, msg)
	historyMu.Unlock()

	err := h.Handler.Handle(ctx, r)

	logFileMu.Lock()
	if logFile != nil {
		fmt.Fprintln(logFile, msg)
	}
	logFileMu.Unlock()

	if broadcastCh != nil {
		select {
		case broadcastCh <- msg:
		default:
			// Drop if channel is full to avoid blocking
		}
	}
	return err
}

// GetHistory returns a copy of the buffered log lines.
func GetHistory() []string {
	historyMu.RLock()
	defer historyMu.RUnlock()
	cp := make([]string, len(history))
	copy(cp, history)
	return cp
}

// SetLevel updates the logger level at runtime
func SetLevel(levelStr string) {
	logFileMu.Lock()
	currentLogFile := logFile
	logFileMu.Unlock()

	Init(levelStr)

	if currentLogFile != nil {
		logFileMu.Lock()
		logFile = currentLogFile
		logFileMu.Unlock()
	}
}

// Close closes the log file if one is open
func Close() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Helper functions for easy access
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
