// Package server exposes command resolution over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assistant/pkg/command"
	"assistant/pkg/config"
	"assistant/pkg/logx"
	"assistant/pkg/pipeline"
	"assistant/pkg/version"
)

const (
	// Username is the fixed basic-auth user name.
	Username = "assistant"

	// CallerHeader carries the caller id when the body does not.
	CallerHeader = "X-Caller-ID"

	maxBodyBytes    = 64 << 10
	maxLogEntries   = 1000
	shutdownTimeout = 5 * time.Second
	realm           = `Basic realm="Assistant"`
)

// Polite bodies for requests that never reach the pipeline.
const (
	unauthorizedMessage     = "Please sign in to talk to the assistant."
	methodNotAllowedMessage = "Sorry, that method isn't supported here."
	badRequestMessage       = `Sorry, I couldn't read that request. Send JSON with a "command" field.`
	badSinceMessage         = "Sorry, the since parameter must be an RFC3339 time."
	encodeFailedMessage     = "Sorry, something went wrong while preparing the reply."
)

// Resolver is the pipeline entry point. *pipeline.Resolver implements it.
type Resolver interface {
	ResolveCommand(ctx context.Context, text, callerID string, c pipeline.Context) command.Result
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command    string `json:"command"`
	CallerID   string `json:"caller_id"`
	CallerName string `json:"caller_name"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Options configures a Server.
type Options struct {
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Password returns the basic-auth password; "" disables auth. Defaults to config.GetServerPassword.
	Password func() string
}

// Server serves the HTTP surface of the assistant.
type Server struct {
	resolver Resolver
	gatherer prometheus.Gatherer
	password func() string
	logger   *logx.Logger
}

// New creates a server around resolver.
func New(resolver Resolver, opts Options) *Server {
	s := &Server{
		resolver: resolver,
		gatherer: opts.Gatherer,
		password: opts.Password,
		logger:   logx.NewLogger("server"),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.password == nil {
		s.password = config.GetServerPassword
	}
	return s
}

// requireAuth wraps a handler with basic auth when a password is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected := s.password()
		if expected == "" {
			next(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", realm)
			writeError(w, http.StatusUnauthorized, unauthorizedMessage)
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(expected)) == 1
		if !userOK || !passOK {
			s.logger.Warn("Failed authentication attempt from %s (username: %s)", r.RemoteAddr, username)
			w.Header().Set("WWW-Authenticate", realm)
			writeError(w, http.StatusUnauthorized, unauthorizedMessage)
			return
		}

		next(w, r)
	}
}

// RegisterRoutes adds every endpoint to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/command", s.requireAuth(s.handleCommand))
	mux.HandleFunc("/api/logs", s.requireAuth(s.handleLogs))
	mux.HandleFunc("/api/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// handleCommand implements POST /api/command. A request that parses always gets a 200 and a
// Result, even when the pipeline turned it into a fixed reply.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, methodNotAllowedMessage)
		return
	}

	var req CommandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.logger.Warn("Invalid command request from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusBadRequest, badRequestMessage)
		return
	}

	callerID := firstNonEmpty(req.CallerID, r.Header.Get(CallerHeader), remoteHost(r.RemoteAddr))
	res := s.resolver.ResolveCommand(r.Context(), req.Command, callerID, pipeline.Context{CallerName: req.CallerName})
	s.logger.Debug("Resolved %s for %s (request %s)", res.Kind, callerID, res.RequestID)
	s.writeJSON(w, http.StatusOK, res)
}

// handleHealth implements GET /api/healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, methodNotAllowedMessage)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleLogs implements GET /api/logs?domain=&since=.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, methodNotAllowedMessage)
		return
	}

	query := r.URL.Query()
	domain := query.Get("domain")
	sinceStr := query.Get("since")

	var since time.Time
	if sinceStr != "" {
		var err error
		since, err = time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.logger.Warn("Invalid since parameter: %s", sinceStr)
			writeError(w, http.StatusBadRequest, badSinceMessage)
			return
		}
	}

	logs := logx.GetRecentLogEntries(domain, since)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp < logs[j].Timestamp
	})
	if len(logs) > maxLogEntries {
		logs = logs[len(logs)-maxLogEntries:]
	}
	if logs == nil {
		logs = []logx.LogEntry{}
	}

	s.writeJSON(w, http.StatusOK, logs)
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return logx.Wrap(err, "failed to listen on "+addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("Starting HTTP server on %s", ln.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:contextcheck // Parent context is cancelled; shutdown needs a fresh one.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return logx.Wrap(err, "HTTP server shutdown failed")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response: %v", err)
		writeError(w, http.StatusInternalServerError, encodeFailedMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(errorBody{Error: message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
