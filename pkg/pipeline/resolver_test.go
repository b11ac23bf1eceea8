package pipeline

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/mocks"
	"assistant/pkg/admission"
	"assistant/pkg/command"
	"assistant/pkg/dispatch"
	"assistant/pkg/persistence"
	"assistant/pkg/upstream"
	"assistant/pkg/upstream/llm"
	"assistant/pkg/upstream/llmerrors"
	"assistant/pkg/upstream/middleware/resilience/circuit"
	"assistant/pkg/upstream/middleware/resilience/retry"
)

type fixture struct {
	resolver *Resolver
	provider *mocks.MockLLMClient
	launcher *mocks.Launcher
	users    *mocks.MemoryUserStore
	breaker  circuit.Breaker
}

type fixtureOpts struct {
	baseLimit int
	breaker   circuit.Breaker
}

func newFixture(t *testing.T, provider *mocks.MockLLMClient, fo fixtureOpts) *fixture {
	t.Helper()
	if fo.breaker == nil {
		fo.breaker = circuit.New(circuit.DefaultConfig)
	}
	f := &fixture{
		provider: provider,
		launcher: mocks.NewLauncher(),
		users:    mocks.NewMemoryUserStore(),
		breaker:  fo.breaker,
	}

	sleeper := &mocks.SleepRecorder{}
	exec := upstream.NewExecutor(provider, upstream.Options{
		Breaker: fo.breaker,
		Policy: retry.NewPolicy(retry.DefaultConfig, nil,
			retry.WithSleeper(sleeper.Sleep),
			retry.WithJitter(func(time.Duration) time.Duration { return 0 }),
		),
	})
	d, err := dispatch.New(dispatch.Options{
		Launcher: f.launcher,
		Users:    f.users,
		Root:     t.TempDir(),
		Home:     t.TempDir(),
		GOOS:     "linux",
	})
	require.NoError(t, err)

	r, err := New(Options{
		Admission:    admission.NewController(admission.Config{BaseLimit: fo.baseLimit}),
		Upstream:     exec,
		Dispatcher:   d,
		Users:        f.users,
		NewRequestID: func() string { return "req-1" },
	})
	require.NoError(t, err)
	f.resolver = r
	return f
}

func (f *fixture) resolve(text string) command.Result {
	return f.resolver.ResolveCommand(context.Background(), text, "caller-1", Context{CallerName: "Asha"})
}

func TestLocalCommandSkipsUpstream(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(), fixtureOpts{})

	res := f.resolve("Jarvis, open WhatsApp.")
	assert.Equal(t, command.KindAppOpenUniversal, res.Kind)
	assert.Equal(t, "Jarvis, open WhatsApp.", res.UserInput)
	assert.Equal(t, "Opening WhatsApp for you. 💬", res.Response)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "en", res.Language)

	assert.Equal(t, 0, f.provider.Calls())
	assert.Equal(t, []string{"xdg-open 'https://web.whatsapp.com'"}, f.launcher.Commands())
	assert.Equal(t, []string{"Jarvis, open WhatsApp."}, f.users.History("caller-1"))
}

func TestUpstreamAnswer(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(
		"Sure! Here you go:\n```json\n{\"type\": \"general\", \"userInput\": \"capital of france\", \"response\": \"Paris.\"}\n```",
	), fixtureOpts{})

	res := f.resolve("what is the capital of France?")
	assert.Equal(t, command.KindGeneral, res.Kind)
	assert.Equal(t, "capital of france", res.UserInput)
	assert.Equal(t, "Paris.", res.Response)
	assert.Equal(t, 1, f.provider.Calls())

	prompt := f.provider.LastRequest().Messages[0].Content
	assert.Contains(t, prompt, "User input: what is the capital of France?")
	assert.Contains(t, prompt, "created by Asha")
}

func TestUpstreamUsesProfile(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(`{"type":"general","response":"नमस्ते"}`), fixtureOpts{})
	require.NoError(t, f.users.UpsertUser(context.Background(), &persistence.UserProfile{
		ID: "caller-1", AssistantName: "Friday", PreferredLanguage: "hi",
	}))

	res := f.resolve("say hello")
	assert.Equal(t, "hi", res.Language)
	prompt := f.provider.LastRequest().Messages[0].Content
	assert.Contains(t, prompt, "named Friday")
	assert.Contains(t, prompt, "Write \"response\" in hindi.")
}

func TestUnknownUpstreamKindBecomesGeneral(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(`{"type":"teleport","response":"I can't do that yet."}`), fixtureOpts{})

	res := f.resolve("beam me up")
	assert.Equal(t, command.KindGeneral, res.Kind)
	assert.Equal(t, "I can't do that yet.", res.Response)
}

func TestMalformedReply(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText("I think the answer is 42."), fixtureOpts{})

	res := f.resolve("meaning of life")
	assert.Equal(t, MalformedResponse, res.Response)
	assert.Equal(t, command.KindGeneral, res.Kind)
	assert.Equal(t, "meaning of life", res.UserInput)
}

func TestUpstreamFailure(t *testing.T) {
	badRequest := llmerrors.NewErrorWithStatus(llmerrors.TypeForStatus(http.StatusBadRequest), http.StatusBadRequest, "bad request")
	f := newFixture(t, mocks.NewMockLLMClient(nil, []error{badRequest}), fixtureOpts{})

	res := f.resolve("tell me a story")
	assert.Equal(t, UpstreamFailureResponse, res.Response)
	assert.Equal(t, 1, f.provider.Calls(), "a 400 is not retried")
	assert.Equal(t, 1, f.breaker.Snapshot().ConsecutiveFailures)
}

func TestBreakerOpenShortCircuits(t *testing.T) {
	breaker := circuit.New(circuit.Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Hour})
	breaker.RecordFailure()
	require.Equal(t, circuit.Open, breaker.GetState())

	f := newFixture(t, mocks.NewMockLLMClientWithText(`{"type":"general","response":"never"}`), fixtureOpts{breaker: breaker})

	res := f.resolve("tell me a joke")
	assert.Equal(t, BreakerOpenResponse, res.Response)
	assert.Equal(t, 0, f.provider.Calls())

	// Local commands do not need the model, so they still work.
	res = f.resolve("open whatsapp")
	assert.Equal(t, command.KindAppOpenUniversal, res.Kind)
}

func TestAdmissionRejects(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(), fixtureOpts{baseLimit: 1})

	first := f.resolve("open whatsapp")
	assert.Equal(t, command.KindAppOpenUniversal, first.Kind)

	second := f.resolve("open whatsapp")
	assert.Equal(t, RejectedResponse, second.Response)
	assert.Equal(t, "req-1", second.RequestID)
	assert.Len(t, f.launcher.Commands(), 1)
	assert.Len(t, f.users.History("caller-1"), 1, "rejected requests are not recorded")
}

func TestEmptyInput(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(), fixtureOpts{})

	for _, in := range []string{"", "   ", "\n\t"} {
		res := f.resolve(in)
		if res.Response != EmptyInputResponse {
			t.Errorf("Expected %q for %q, got %q", EmptyInputResponse, in, res.Response)
		}
	}
	assert.Empty(t, f.users.History("caller-1"))
}

func TestReminderFlowsToStore(t *testing.T) {
	f := newFixture(t, mocks.NewMockLLMClientWithText(), fixtureOpts{})

	res := f.resolve("reminder at 5pm call mom")
	assert.Equal(t, command.KindReminder, res.Kind)
	assert.True(t, strings.HasPrefix(res.Response, "Reminder set for 5pm"))

	reminders := f.users.Reminders("caller-1")
	require.Len(t, reminders, 1)
	assert.Equal(t, "call mom", reminders[0].Message)
	assert.Equal(t, 17, reminders[0].Time.Hour())
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, command.Command, dispatch.Env) command.Result {
	panic("dispatcher exploded")
}

func TestPanicBecomesPoliteReply(t *testing.T) {
	r, err := New(Options{
		Upstream:   upstream.NewExecutor(mocks.NewMockLLMClientWithText(), upstream.Options{Breaker: circuit.New(circuit.DefaultConfig)}),
		Dispatcher: panickingDispatcher{},
	})
	require.NoError(t, err)

	res := r.ResolveCommand(context.Background(), "open whatsapp", "c", Context{})
	assert.Equal(t, MalformedResponse, res.Response)
	assert.NotEmpty(t, res.RequestID)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Dispatcher: panickingDispatcher{}})
	assert.Error(t, err)

	var client llm.Client = mocks.NewMockLLMClientWithText()
	_, err = New(Options{Upstream: upstream.NewExecutor(client, upstream.Options{Breaker: circuit.New(circuit.DefaultConfig)})})
	assert.Error(t, err)
}
