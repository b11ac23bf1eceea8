package command

// Source records which stage produced a Command.
type Source string

const (
	SourceLocal    Source = "local"
	SourceUpstream Source = "upstream"
)

// Payload keys shared by the intent rules, the validator, and the handlers.
const (
	KeyApp         = "app"
	KeyAction      = "action"
	KeyName        = "name"
	KeyQuery       = "query"
	KeyContact     = "contact"
	KeyText        = "text"
	KeyTime        = "time"
	KeyTimeText    = "time_text"
	KeyMessage     = "message"
	KeyDestination = "destination"
	KeySource      = "source"
	KeyDest        = "dest"
	KeyFilter      = "filter"
	KeyLanguage    = "language"
	KeyCode        = "code"
)

// ActionClose is the KeyAction value for closing the application named by KeyApp.
const ActionClose = "close"

// Command is the canonical resolved unit of work. It is consumed exactly once by the dispatcher.
type Command struct {
	Kind         Kind
	RawInput     string
	Payload      map[string]string
	ResponseText string
	Source       Source
}

// Get returns a payload value or "".
func (c Command) Get(key string) string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload[key]
}

// With returns a copy of c with key set in its payload.
func (c Command) With(key, value string) Command {
	p := make(map[string]string, len(c.Payload)+1)
	for k, v := range c.Payload {
		p[k] = v
	}
	p[key] = value
	c.Payload = p
	return c
}

// Image is generated binary content. Data is base64-encoded by encoding/json.
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Result is the caller-facing outcome of one pipeline run.
type Result struct {
	Kind        Kind   `json:"type"`
	UserInput   string `json:"userInput"`
	Response    string `json:"response"`
	Language    string `json:"language,omitempty"`
	Image       *Image `json:"image,omitempty"`
	Destination string `json:"destination,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

// Reply builds a Result for kind k.
func Reply(k Kind, userInput, response string) Result {
	return Result{Kind: k, UserInput: userInput, Response: response}
}
