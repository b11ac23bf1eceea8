package intent

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"assistant/pkg/command"
)

var sixPM = time.Date(2026, time.October, 14, 18, 0, 0, 0, time.UTC)

func newTestExtractor(opts ...Option) *Extractor {
	opts = append([]Option{WithClock(func() time.Time { return sixPM })}, opts...)
	return New(nil, opts...)
}

func TestResolveOpenWhatsApp(t *testing.T) {
	e := newTestExtractor()

	for _, in := range []string{"open whatsapp", "Jarvis, open WhatsApp.", "jarvish open the whatsapp"} {
		res := e.Resolve(in, Params{})
		if !res.Local {
			t.Fatalf("Expected %q to resolve locally", in)
		}
		want := command.Command{
			Kind:         command.KindAppOpenUniversal,
			RawInput:     in,
			Payload:      map[string]string{command.KeyApp: "whatsapp"},
			ResponseText: "Opening WhatsApp for you. 💬",
			Source:       command.SourceLocal,
		}
		if diff := cmp.Diff(want, res.Command); diff != "" {
			t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestResolveReminderWithUnclearTime(t *testing.T) {
	e := newTestExtractor()

	res := e.Resolve("set reminder at 25pm to sleep", Params{})
	if !res.Local {
		t.Fatal("Expected reminder to resolve locally")
	}
	cmd := res.Command
	want := "I couldn't understand the time '25pm'. Please say something like 5pm or 7:30 am."
	if cmd.ResponseText != want {
		t.Errorf("Expected %q, got %q", want, cmd.ResponseText)
	}
	if got := cmd.Get(command.KeyTime); got != "" {
		t.Errorf("Expected no resolved time, got %q", got)
	}
}

func TestResolveReminderRollsForward(t *testing.T) {
	e := newTestExtractor()

	res := e.Resolve("reminder at 5pm call mom", Params{})
	if !res.Local {
		t.Fatal("Expected reminder to resolve locally")
	}
	cmd := res.Command
	if cmd.Kind != command.KindReminder {
		t.Errorf("Expected kind reminder, got %s", cmd.Kind)
	}
	if cmd.ResponseText != "Reminder set for 5pm to call mom" {
		t.Errorf("Unexpected response %q", cmd.ResponseText)
	}
	if got := cmd.Get(command.KeyTime); got != "2026-10-15T17:00:00Z" {
		t.Errorf("Expected reminder tomorrow at 17:00, got %s", got)
	}
	if got := cmd.Get(command.KeyMessage); got != "call mom" {
		t.Errorf("Expected message 'call mom', got %q", got)
	}
}

func TestResolveDefaultRules(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name     string
		input    string
		params   Params
		kind     command.Kind
		response string
		payload  map[string]string
	}{
		{
			name:     "close app",
			input:    "close chrome.",
			kind:     command.KindWindowsControl,
			response: "Closing chrome for you.",
			payload:  map[string]string{command.KeyAction: command.ActionClose, command.KeyApp: "chrome"},
		},
		{
			name:     "language switch",
			input:    "talk in hindi",
			kind:     command.KindLanguageSwitch,
			response: "Switched to hindi. Now I will respond in hindi.",
			payload:  map[string]string{command.KeyLanguage: "hindi", command.KeyCode: "hi"},
		},
		{
			name:     "airplane mode",
			input:    "turn airplane mode on",
			kind:     command.KindWindowsControl,
			response: "Certainly! Turning on aeroplane mode for you. You'll notice your wireless connections are now disabled. ✈️",
			payload:  map[string]string{command.KeyAction: "airplane mode on"},
		},
		{
			name:     "stop with trailing wake word",
			input:    "stop jarvis",
			kind:     command.KindStop,
			response: "Understood. I’ve stopped all actions. 🙂",
			payload:  map[string]string{},
		},
		{
			name:     "pause with assistant name",
			input:    "Friday pause",
			params:   Params{AssistantName: "Friday"},
			kind:     command.KindPause,
			response: "Paused. I’ll resume whenever you say the resume command. 🙂",
			payload:  map[string]string{},
		},
		{
			name:     "windows shortcut phrase",
			input:    "visual studio code open",
			kind:     command.KindWindowsControl,
			response: "Opening Visual Studio Code for you. 💻",
			payload:  map[string]string{command.KeyAction: "open vscode"},
		},
		{
			name:     "folder shortcut",
			input:    "open desktop folder",
			kind:     command.KindFolderOpen,
			response: "Opening the requested folder for you. 📁",
			payload:  map[string]string{command.KeyName: "desktop"},
		},
		{
			name:     "youtube play",
			input:    "play despacito on youtube",
			kind:     command.KindAssistantControl,
			response: `Playing "despacito" on YouTube for you. 🎵`,
			payload:  map[string]string{command.KeyQuery: "despacito"},
		},
		{
			name:     "search",
			input:    "search golang generics on google",
			kind:     command.KindSearch,
			response: `Searching for "golang generics" on Google for you. 🔍`,
			payload:  map[string]string{command.KeyQuery: "golang generics"},
		},
		{
			name:     "call",
			input:    "call mom on whatsapp",
			kind:     command.KindCall,
			response: "Calling mom on WhatsApp.",
			payload:  map[string]string{command.KeyContact: "mom"},
		},
		{
			name:     "message",
			input:    "send message rahul, see you soon",
			params:   Params{CallerName: "Asha"},
			kind:     command.KindMessage,
			response: "Alright, Asha. I've sent a message to Rahul saying, 'see you soon'. Is there anything else I can help with today? 😊",
			payload:  map[string]string{command.KeyContact: "rahul", command.KeyText: "see you soon"},
		},
		{
			name:     "message with swapped groups",
			input:    "send hello message to rahul on whatsapp",
			params:   Params{CallerName: "Asha"},
			kind:     command.KindMessage,
			response: "Alright, Asha. I've sent a message to Rahul saying, 'hello'. Is there anything else I can help with today? 😊",
			payload:  map[string]string{command.KeyContact: "rahul", command.KeyText: "hello"},
		},
		{
			name:     "rename",
			input:    "set assistant name to friday",
			kind:     command.KindAssistantRename,
			response: "Assistant name set to friday. You can now call me friday.",
			payload:  map[string]string{command.KeyName: "friday"},
		},
		{
			name:     "trip",
			input:    "plan my next trip to goa",
			kind:     command.KindAutonomousTrip,
			response: "Planning your trip to goa. Please wait while I gather the information.",
			payload:  map[string]string{command.KeyDestination: "goa"},
		},
		{
			name:    "file operation keeps file names",
			input:   "copy code from src/main.go and paste it into out/main.go, but only the login part.",
			kind:    command.KindFileOperation,
			payload: map[string]string{command.KeySource: "src/main.go", command.KeyDest: "out/main.go", command.KeyFilter: "login part"},
		},
		{
			name:    "project",
			input:   "create a python project",
			kind:    command.KindProjectCreate,
			payload: map[string]string{command.KeyLanguage: "python"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Resolve(tt.input, tt.params)
			if !res.Local {
				t.Fatalf("Expected %q to resolve locally", tt.input)
			}
			if res.Command.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, res.Command.Kind)
			}
			if res.Command.ResponseText != tt.response {
				t.Errorf("Expected response %q, got %q", tt.response, res.Command.ResponseText)
			}
			if diff := cmp.Diff(tt.payload, res.Command.Payload); diff != "" {
				t.Errorf("Payload mismatch (-want +got):\n%s", diff)
			}
			if res.Command.RawInput != tt.input {
				t.Errorf("Expected raw input to be kept verbatim, got %q", res.Command.RawInput)
			}
		})
	}
}

func TestResolveFallsThrough(t *testing.T) {
	e := newTestExtractor()

	res := e.Resolve("  Jarvis, what is the capital of France? ", Params{})
	if res.Local {
		t.Fatalf("Expected no local match, got %s", res.Command.Kind)
	}
	if res.Normalized != "what is the capital of france?" {
		t.Errorf("Unexpected normalized text %q", res.Normalized)
	}

	// "open notepad" is not a shortcut; the model decides.
	if res := e.Resolve("open notepad", Params{}); res.Local {
		t.Errorf("Expected 'open notepad' to need upstream, got %s", res.Command.Kind)
	}
}

func TestHigherPriorityRuleWins(t *testing.T) {
	e := newTestExtractor()

	// Matches both youtube-play and search.
	res := e.Resolve("google search play despacito on youtube", Params{})
	if res.Command.Kind != command.KindAssistantControl {
		t.Errorf("Expected youtube-play to win over search, got %s", res.Command.Kind)
	}

	// Matches both close-app and search.
	res = e.Resolve("close search", Params{})
	if res.Command.Kind != command.KindWindowsControl {
		t.Errorf("Expected close-app to win over search, got %s", res.Command.Kind)
	}

	always := func(*Input) []string { return []string{} }
	low := Rule{Name: "low", Priority: 20, Predicate: always, Extract: func(*Input, []string) command.Command {
		return command.Command{Kind: command.KindJokes}
	}}
	high := Rule{Name: "high", Priority: 10, Predicate: always, Extract: func(*Input, []string) command.Command {
		return command.Command{Kind: command.KindNews}
	}}
	custom := newTestExtractor(WithRules(low, high))
	if got := custom.Resolve("anything", Params{}).Command.Kind; got != command.KindNews {
		t.Errorf("Expected the priority 10 rule to win regardless of declaration order, got %s", got)
	}
}

func TestRulesAreSortedStably(t *testing.T) {
	rules := newTestExtractor().Rules()
	for i := 1; i < len(rules); i++ {
		if rules[i-1].Priority > rules[i].Priority {
			t.Errorf("Rule %s (priority %d) evaluated before %s (priority %d)",
				rules[i-1].Name, rules[i-1].Priority, rules[i].Name, rules[i].Priority)
		}
	}

	a := Rule{Name: "a", Priority: 5, Predicate: func(*Input) []string { return nil }}
	b := Rule{Name: "b", Priority: 5, Predicate: func(*Input) []string { return nil }}
	got := newTestExtractor(WithRules(a, b)).Rules()
	if got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("Expected equal priorities to keep declaration order, got %s, %s", got[0].Name, got[1].Name)
	}
}
