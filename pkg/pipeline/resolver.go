// Package pipeline wires admission, intent resolution, the upstream model, validation, and
// dispatch into the single ResolveCommand entry point.
package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"assistant/pkg/admission"
	"assistant/pkg/catalog"
	"assistant/pkg/command"
	"assistant/pkg/dispatch"
	"assistant/pkg/intent"
	"assistant/pkg/logx"
	"assistant/pkg/persistence"
	"assistant/pkg/upstream"
	"assistant/pkg/upstream/middleware/metrics"
	"assistant/pkg/upstream/middleware/resilience/circuit"
	"assistant/pkg/validator"
)

// Fixed replies for failures that happen before a handler runs.
const (
	RejectedResponse        = "I'm receiving too many requests. Please wait a moment before trying again."
	BreakerOpenResponse     = "The assistant service is temporarily unavailable. Please try again in a few minutes."
	UpstreamFailureResponse = "I'm sorry, but I'm currently experiencing technical difficulties. Please try again in a moment."
	MalformedResponse       = "Sorry, I encountered an error processing your request."
	EmptyInputResponse      = "Please provide a valid command."
)

// Outcome labels for the commands metric.
const (
	OutcomeDispatched    = "dispatched"
	OutcomeEmpty         = "empty"
	OutcomeRejected      = "rejected"
	OutcomeBreakerOpen   = "breaker_open"
	OutcomeUpstreamError = "upstream_error"
	OutcomeMalformed     = "malformed"
	OutcomePanic         = "panic"
)

const sourceNone = "none"

// Context is what the boundary layer knows about the caller.
type Context struct {
	DisplayName string
	CallerName  string
}

// Admitter decides whether a caller may proceed. *admission.Controller implements it.
type Admitter interface {
	Check(callerID string) error
}

// Upstream sends a prompt to the model. *upstream.Executor implements it.
type Upstream interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// Dispatcher executes a resolved command. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command, env dispatch.Env) command.Result
}

// Options wires a Resolver.
type Options struct {
	Admission  Admitter
	Extractor  *intent.Extractor
	Upstream   Upstream
	Dispatcher Dispatcher
	Users      persistence.UserStore
	Catalog    *catalog.Store
	Recorder   metrics.Recorder

	// MaxPromptTokens bounds the caller text placed in the prompt. 0 means unbounded.
	MaxPromptTokens int
	// NewRequestID overrides uuid generation.
	NewRequestID func() string
}

// Resolver runs one request through every stage in order.
type Resolver struct {
	admission  Admitter
	extractor  *intent.Extractor
	upstream   Upstream
	dispatcher Dispatcher
	users      persistence.UserStore
	catalog    *catalog.Store
	recorder   metrics.Recorder
	maxTokens  int
	newID      func() string
	logger     *logx.Logger
}

// New creates a resolver. Upstream and Dispatcher are required.
func New(opts Options) (*Resolver, error) {
	if opts.Upstream == nil {
		return nil, errors.New("pipeline: upstream is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("pipeline: dispatcher is required")
	}
	r := &Resolver{
		admission:  opts.Admission,
		extractor:  opts.Extractor,
		upstream:   opts.Upstream,
		dispatcher: opts.Dispatcher,
		users:      opts.Users,
		catalog:    opts.Catalog,
		recorder:   opts.Recorder,
		maxTokens:  opts.MaxPromptTokens,
		newID:      opts.NewRequestID,
		logger:     logx.NewLogger("pipeline"),
	}
	if r.admission == nil {
		r.admission = admission.NewController(admission.Config{})
	}
	if r.catalog == nil {
		r.catalog = catalog.NewStore(catalog.Default())
	}
	if r.extractor == nil {
		r.extractor = intent.New(r.catalog)
	}
	if r.recorder == nil {
		r.recorder = metrics.Nop()
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.New().String() }
	}
	return r, nil
}

// ResolveCommand turns caller text into a Result. It never returns an error or panics: every
// failure becomes one of the fixed replies.
func (r *Resolver) ResolveCommand(ctx context.Context, text, callerID string, c Context) (res command.Result) {
	id := r.newID()
	ctx = logx.WithRequestID(ctx, id)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("💥 [%s] pipeline panicked: %v", id, p)
			r.recorder.ObserveCommand(string(command.KindGeneral), sourceNone, OutcomePanic)
			res = command.Reply(command.KindGeneral, text, MalformedResponse)
		}
		res.RequestID = id
	}()

	if strings.TrimSpace(text) == "" {
		r.recorder.ObserveCommand(string(command.KindGeneral), sourceNone, OutcomeEmpty)
		return command.Reply(command.KindGeneral, text, EmptyInputResponse)
	}

	if err := r.admission.Check(callerID); err != nil {
		var rejected *admission.RejectedError
		if errors.As(err, &rejected) {
			r.logger.Warn("🚦 [%s] %v", id, err)
		}
		r.recorder.IncAdmissionRejection()
		r.recorder.ObserveCommand(string(command.KindGeneral), sourceNone, OutcomeRejected)
		return command.Reply(command.KindGeneral, text, RejectedResponse)
	}

	r.appendHistory(ctx, callerID, text)
	profile := r.profile(ctx, callerID)
	callerName := firstNonEmpty(c.CallerName, c.DisplayName, profile.Name)

	resolution := r.extractor.Resolve(text, intent.Params{
		AssistantName: profile.AssistantName,
		CallerName:    callerName,
	})

	cmd := resolution.Command
	if !resolution.Local {
		var failure *command.Result
		cmd, failure = r.askUpstream(ctx, text, profile, callerName)
		if failure != nil {
			return *failure
		}
	}

	logx.Debug(ctx, "pipeline", "dispatching %s (%s)", cmd.Kind, cmd.Source)
	res = r.dispatcher.Dispatch(ctx, cmd, dispatch.Env{CallerID: callerID, CallerName: callerName})
	if res.Language == "" {
		res.Language = profile.PreferredLanguage
	}
	r.recorder.ObserveCommand(string(cmd.Kind), string(cmd.Source), OutcomeDispatched)
	return res
}

// askUpstream resolves text through the model. A non-nil Result is the reply to return instead
// of dispatching.
func (r *Resolver) askUpstream(ctx context.Context, text string, profile persistence.UserProfile, callerName string) (command.Command, *command.Result) {
	fail := func(outcome, response string) (command.Command, *command.Result) {
		r.recorder.ObserveCommand(string(command.KindGeneral), string(command.SourceUpstream), outcome)
		res := command.Reply(command.KindGeneral, text, response)
		return command.Command{}, &res
	}

	language, ok := r.catalog.Current().LanguageName(profile.PreferredLanguage)
	if !ok {
		language = "English"
	}
	prompt, err := upstream.BuildPrompt(upstream.PromptData{
		AssistantName: profile.AssistantName,
		CallerName:    callerName,
		Language:      language,
		Text:          text,
	}, r.maxTokens)
	if err != nil {
		r.logger.Error("failed to build prompt: %v", err)
		return fail(OutcomeUpstreamError, UpstreamFailureResponse)
	}

	raw, err := r.upstream.Call(ctx, prompt)
	if err != nil {
		var open *circuit.Error
		if errors.As(err, &open) {
			return fail(OutcomeBreakerOpen, BreakerOpenResponse)
		}
		r.logger.Error("upstream call failed for request %s: %v", logx.RequestID(ctx), err)
		return fail(OutcomeUpstreamError, UpstreamFailureResponse)
	}

	cmd, err := validator.Parse(raw, text)
	if err != nil {
		r.logger.Warn("could not recover a command from the model reply: %v", err)
		return fail(OutcomeMalformed, MalformedResponse)
	}
	return cmd, nil
}

func (r *Resolver) profile(ctx context.Context, callerID string) persistence.UserProfile {
	p := persistence.UserProfile{ID: callerID, PreferredLanguage: "en"}
	if r.users == nil || callerID == "" {
		return p
	}
	u, err := r.users.FindUser(ctx, callerID)
	if err != nil {
		if !errors.Is(err, persistence.ErrUserNotFound) {
			r.logger.Warn("failed to load profile for %s: %v", callerID, err)
		}
		return p
	}
	if u.PreferredLanguage == "" {
		u.PreferredLanguage = "en"
	}
	return *u
}

func (r *Resolver) appendHistory(ctx context.Context, callerID, text string) {
	if r.users == nil || callerID == "" {
		return
	}
	if err := r.users.AppendHistory(ctx, callerID, text); err != nil {
		r.logger.Warn("failed to append history for %s: %v", callerID, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
