package validator

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/pkg/command"
)

func TestParseEmbeddedObject(t *testing.T) {
	raw := `Sure! {"kind":"general","responseText":"Hi there"} Hope that helps.`

	cmd, err := Parse(raw, "hello")
	require.NoError(t, err)

	want := command.Command{
		Kind:         command.KindGeneral,
		RawInput:     "hello",
		ResponseText: "Hi there",
		Payload:      map[string]string{},
		Source:       command.SourceUpstream,
	}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWireAliasesAndPayload(t *testing.T) {
	raw := "```json\n{\"type\": \"autonomous-trip\", \"userInput\": \"plan goa trip\", \"response\": \"Planning.\", " +
		"\"destination\": \"Goa\", \"days\": 3, \"payload\": {\"budget\": \"low\"}, \"tags\": [\"beach\"],}\n```"

	cmd, err := Parse(raw, "original")
	require.NoError(t, err)
	assert.Equal(t, command.KindAutonomousTrip, cmd.Kind)
	assert.Equal(t, "plan goa trip", cmd.RawInput)
	assert.Equal(t, "Planning.", cmd.ResponseText)
	assert.Equal(t, map[string]string{"destination": "Goa", "days": "3", "budget": "low"}, cmd.Payload)
}

func TestParseUnknownKindIsGeneral(t *testing.T) {
	for _, kind := range []string{"generic-answer", "teleport", "RUN-COMMAND"} {
		cmd, err := Parse(`{"kind":"`+kind+`","responseText":"ok"}`, "x")
		require.NoError(t, err)
		assert.Equal(t, command.KindGeneral, cmd.Kind, kind)
	}
}

func TestParseBracesInsideStrings(t *testing.T) {
	raw := `note: "{not json" then {"kind":"coding","responseText":"use } and { freely \"{\""} and {"kind":"news"}`

	cmd, err := Parse(raw, "x")
	require.NoError(t, err)
	assert.Equal(t, command.KindCoding, cmd.Kind)
	assert.Equal(t, `use } and { freely "{"`, cmd.ResponseText)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain prose", "I cannot help with that."},
		{"unbalanced", `{"kind":"general","responseText":"Hi"`},
		{"invalid object", `{kind: general}`},
		{"missing kind", `{"responseText":"Hi"}`},
		{"missing response", `{"kind":"general"}`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, "x")
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("Expected MalformedResponseError, got %v", err)
			}
		})
	}
}

func TestFirstObjectSurroundedByProse(t *testing.T) {
	objects := []string{
		`{}`,
		`{"a":1}`,
		`{"a":{"b":[1,2,{"c":"}"}]}}`,
		`{"s":"line\nbreak \\"}`,
	}
	for _, obj := range objects {
		for _, wrap := range [][2]string{{"", ""}, {"prefix ", " suffix"}, {"a } stray ", "\n}"}} {
			got, ok := FirstObject(wrap[0] + obj + wrap[1])
			if !ok || got != obj {
				t.Errorf("FirstObject(%q) = %q, %v; expected %q", wrap[0]+obj+wrap[1], got, ok, obj)
			}
		}
	}
}
