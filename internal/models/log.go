package models

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of a diagnostic entry. Higher values are more severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name such as "warn" or "ERROR".
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}

// Conventional categories. The set is open: callers may use any tag.
const (
	CategoryAPI     = "API"
	CategoryAuth    = "AUTH"
	CategoryNetwork = "NETWORK"
	CategoryEnv     = "ENV"
	CategorySystem  = "SYSTEM"
)

// ErrorDetail is the captured form of an error attached to an entry
type ErrorDetail struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// HTTPMeta carries request metadata for API entries
type HTTPMeta struct {
	URL      string
	Method   string
	Status   *int
	Duration *time.Duration
}

// LogEntry represents one diagnostic event. Entries are never modified after creation.
type LogEntry struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Level      Level                  `json:"level"`
	Category   string                 `json:"category"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      *ErrorDetail           `json:"error,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Method     string                 `json:"method,omitempty"`
	Status     *int                   `json:"status,omitempty"`
	DurationMs *int64                 `json:"duration,omitempty"`
}

// LogFilter selects entries from the log store
type LogFilter struct {
	Category string `json:"category,omitempty"`
	MinLevel *Level `json:"min_level,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// ErrorSummary is the condensed form of an ERROR entry used in statistics
type ErrorSummary struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// LevelCounts counts entries per level
type LevelCounts struct {
	Debug int `json:"debug"`
	Info  int `json:"info"`
	Warn  int `json:"warn"`
	Error int `json:"error"`
}

// LogStats aggregates the current in-memory entries
type LogStats struct {
	Total        int            `json:"total"`
	ByLevel      LevelCounts    `json:"by_level"`
	ByCategory   map[string]int `json:"by_category"`
	RecentErrors []ErrorSummary `json:"recent_errors"`
}
