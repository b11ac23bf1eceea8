// Package validator recovers a structured command from free-form model output.
package validator

import (
	"encoding/json"
	"fmt"
	"regexp"

	"assistant/pkg/command"
	"assistant/pkg/utils"
)

// MalformedResponseError reports model output with no usable command object.
type MalformedResponseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model response: %s: %v", e.Reason, e.Err)
	}
	return "malformed model response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Field aliases, in preference order.
var (
	kindKeys     = []string{"kind", "type"}
	responseKeys = []string{"responseText", "response"}
	rawInputKeys = []string{"rawInput", "userInput"}
)

var reserved = map[string]bool{
	"kind": true, "type": true,
	"responseText": true, "response": true,
	"rawInput": true, "userInput": true,
	"payload": true,
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Parse extracts the first balanced JSON object from raw and maps it to a Command.
// original fills RawInput when the model omits it.
func Parse(raw, original string) (command.Command, error) {
	obj, err := decodeFirst(raw)
	if err != nil {
		return command.Command{}, err
	}

	kind, _ := utils.FirstString(obj, kindKeys...)
	if kind == "" {
		return command.Command{}, &MalformedResponseError{Reason: "missing kind", Raw: raw}
	}
	response, _ := utils.FirstString(obj, responseKeys...)
	if response == "" {
		return command.Command{}, &MalformedResponseError{Reason: "missing responseText", Raw: raw}
	}
	rawInput, _ := utils.FirstString(obj, rawInputKeys...)
	if rawInput == "" {
		rawInput = original
	}

	cmd := command.Command{
		Kind:         command.ParseKind(kind),
		RawInput:     rawInput,
		ResponseText: response,
		Payload:      map[string]string{},
		Source:       command.SourceUpstream,
	}
	if nested, ok := utils.SafeAssert[map[string]any](obj["payload"]); ok {
		for k, v := range nested {
			if s, ok := utils.Scalar(v); ok {
				cmd.Payload[k] = s
			}
		}
	}
	for k, v := range obj {
		if reserved[k] {
			continue
		}
		if s, ok := utils.Scalar(v); ok {
			cmd.Payload[k] = s
		}
	}
	return cmd, nil
}

// decodeFirst decodes the first balanced span that is a valid object. Prose before the
// object may itself contain braces, so a span that fails to decode moves the scan on.
func decodeFirst(raw string) (map[string]any, error) {
	var firstErr error
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		end, ok := matchBrace(raw, start)
		if !ok {
			continue
		}
		span := raw[start : end+1]

		var obj map[string]any
		err := json.Unmarshal([]byte(span), &obj)
		if err != nil {
			// Models often leave a trailing comma before the closing brace.
			err = json.Unmarshal([]byte(trailingComma.ReplaceAllString(span, "$1")), &obj)
		}
		if err == nil {
			return obj, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, &MalformedResponseError{Reason: "invalid JSON object", Raw: raw, Err: firstErr}
	}
	return nil, &MalformedResponseError{Reason: "no JSON object found", Raw: raw}
}

// FirstObject returns the first balanced {...} span in s. Braces inside JSON strings
// are ignored.
func FirstObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
	}
	return "", false
}

// matchBrace finds the index of the brace closing the one at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
