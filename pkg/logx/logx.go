// Package logx provides structured logging with context-aware, domain-filtered debug output.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// recentCapacity bounds the entries kept for /api/logs.
const recentCapacity = 1000

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger tags every line with a component name.
type Logger struct {
	component string
}

// LogEntry is a captured log line, served by the /api/logs endpoint.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Domain    string `json:"domain,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ctxKey struct{}

// debugState is the DEBUG / DEBUG_DOMAINS configuration.
type debugState struct {
	mu      sync.RWMutex
	enabled bool
	domains map[string]bool // nil = all domains
}

// ring keeps the newest recentCapacity entries.
type ring struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

//nolint:gochecknoglobals // process-wide logging state
var (
	debug  = &debugState{}
	recent = &ring{entries: make([]LogEntry, recentCapacity)}

	outMu sync.Mutex
	out   io.Writer = os.Stderr
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		SetDebugConfig(true)
	}
	// DEBUG_DOMAINS=intent,upstream,dispatch
	if v := os.Getenv("DEBUG_DOMAINS"); v != "" {
		SetDebugDomains(strings.Split(v, ","))
	}
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetOutput redirects log lines; nil restores stderr.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

// WithRequestID returns a context carrying the request id used by Debug.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// SetDebugConfig toggles debug logging globally.
func SetDebugConfig(enabled bool) {
	debug.mu.Lock()
	defer debug.mu.Unlock()
	debug.enabled = enabled
}

// SetDebugDomains limits debug output to the named domains. An empty list allows all.
func SetDebugDomains(domains []string) {
	debug.mu.Lock()
	defer debug.mu.Unlock()

	if len(domains) == 0 {
		debug.domains = nil
		return
	}
	debug.domains = make(map[string]bool, len(domains))
	for _, d := range domains {
		debug.domains[strings.TrimSpace(d)] = true
	}
}

func IsDebugEnabled() bool {
	debug.mu.RLock()
	defer debug.mu.RUnlock()
	return debug.enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a specific domain.
func IsDebugEnabledForDomain(domain string) bool {
	debug.mu.RLock()
	defer debug.mu.RUnlock()
	return debug.enabled && (debug.domains == nil || debug.domains[domain])
}

func (r *ring) add(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns the entries oldest first.
func (r *ring) snapshot() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]LogEntry(nil), r.entries[:r.next]...)
	}
	ordered := make([]LogEntry, 0, len(r.entries))
	ordered = append(ordered, r.entries[r.next:]...)
	return append(ordered, r.entries[:r.next]...)
}

// GetRecentLogEntries returns buffered entries, oldest first. Entries without a domain match any
// domain filter; a zero since keeps everything.
func GetRecentLogEntries(domain string, since time.Time) []LogEntry {
	all := recent.snapshot()
	filtered := make([]LogEntry, 0, len(all))
	for _, e := range all {
		if domain != "" && e.Domain != "" && !strings.EqualFold(e.Domain, domain) {
			continue
		}
		if !since.IsZero() {
			ts, err := time.Parse(timestampLayout, e.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (l *Logger) emit(level Level, domain, requestID, message string) {
	e := LogEntry{
		Timestamp: time.Now().UTC().Format(timestampLayout),
		Component: l.component,
		Level:     string(level),
		Message:   message,
		Domain:    domain,
		RequestID: requestID,
	}

	text := message
	if domain != "" {
		text = "[" + domain + "] " + message
	}
	outMu.Lock()
	fmt.Fprintf(out, "[%s] [%s] %s: %s\n", e.Timestamp, e.Component, e.Level, text)
	outMu.Unlock()

	recent.add(e)
}

func (l *Logger) Debug(format string, args ...any) {
	if IsDebugEnabled() {
		l.emit(LevelDebug, "", "", fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelInfo, "", "", fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelWarn, "", "", fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelError, "", "", fmt.Sprintf(format, args...))
}

// Debug logs a debug message for a domain, tagged with the request id found in ctx.
//
//	logx.Debug(ctx, "intent", "rule %s matched", rule.Name)
//
// Environment variable control:
//
//	DEBUG=1                              # all domains
//	DEBUG=1 DEBUG_DOMAINS=intent         # only the intent domain
//	DEBUG=1 DEBUG_DOMAINS=intent,upstream
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	id := RequestID(ctx)
	component := id
	if component == "" {
		component = "unknown"
	}
	NewLogger(component).emit(LevelDebug, domain, id, fmt.Sprintf(format, args...))
}

var defaultLogger = NewLogger("system")

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrapped.Error())
	return wrapped
}
