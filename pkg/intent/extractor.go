// Package intent resolves caller text into a Command locally when a deterministic rule matches,
// so the upstream model is only consulted for text no rule understands.
package intent

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"assistant/pkg/catalog"
	"assistant/pkg/command"
	"assistant/pkg/logx"
)

// Params carries caller context that some rules splice into their replies.
type Params struct {
	AssistantName string
	CallerName    string
}

// Resolution is the extractor's verdict. Local is false when the text needs the upstream model.
type Resolution struct {
	Command    command.Command
	Local      bool
	Normalized string
}

// Input is the text in each normalization stage, handed to every rule.
type Input struct {
	Raw      string // caller text, verbatim
	Stripped string // lowercased, trimmed, wake word removed
	Text     string // Stripped with punctuation normalized
	Params   Params
	Catalog  *catalog.Catalog
	Now      time.Time
}

// Rule is one deterministic pattern. Predicate returns the capture groups on a match and nil
// otherwise; Extract builds the command from those groups.
type Rule struct {
	Name      string
	Priority  int
	Predicate func(in *Input) []string
	Extract   func(in *Input, groups []string) command.Command
}

// CatalogSource yields the current catalog snapshot. *catalog.Store implements it.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides time.Now for reminder parsing.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(e *Extractor) { e.rules = append([]Rule(nil), rules...) }
}

// Extractor evaluates rules in ascending Priority; the first match wins.
type Extractor struct {
	rules   []Rule
	catalog CatalogSource
	now     func() time.Time
	logger  *logx.Logger
}

// New creates an extractor over the default rules. A nil source uses the embedded catalog.
func New(source CatalogSource, opts ...Option) *Extractor {
	if source == nil {
		source = catalog.NewStore(catalog.Default())
	}
	e := &Extractor{
		rules:   DefaultRules(),
		catalog: source,
		now:     time.Now,
		logger:  logx.NewLogger("intent"),
	}
	for _, opt := range opts {
		opt(e)
	}
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority < e.rules[j].Priority
	})
	return e
}

// Rules returns the rules in evaluation order.
func (e *Extractor) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Resolve runs the rules against text.
func (e *Extractor) Resolve(text string, p Params) Resolution {
	cat := e.catalog.Current()
	in := newInput(text, p, cat, e.now())

	for i := range e.rules {
		r := &e.rules[i]
		groups := r.Predicate(in)
		if groups == nil {
			continue
		}
		cmd := r.Extract(in, groups)
		cmd.RawInput = text
		cmd.Source = command.SourceLocal
		e.logger.Debug("rule %s matched %q -> %s", r.Name, in.Text, cmd.Kind)
		return Resolution{Command: cmd, Local: true, Normalized: in.Text}
	}

	e.logger.Debug("no rule matched %q", in.Text)
	return Resolution{Local: false, Normalized: in.Text}
}

var whitespace = regexp.MustCompile(`\s+`)

func newInput(raw string, p Params, cat *catalog.Catalog, now time.Time) *Input {
	lower := strings.ToLower(strings.TrimSpace(raw))
	stripped := strings.TrimSpace(stripWakeWord(lower, wakeWords(p, cat)))

	text := strings.Trim(stripped, ",. \t\r\n")
	text = strings.ReplaceAll(text, ".", " ")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	return &Input{
		Raw:      raw,
		Stripped: stripped,
		Text:     text,
		Params:   p,
		Catalog:  cat,
		Now:      now,
	}
}

func wakeWords(p Params, cat *catalog.Catalog) []string {
	var words []string
	if name := strings.ToLower(strings.TrimSpace(p.AssistantName)); name != "" {
		words = append(words, name)
	}
	if cat != nil {
		words = append(words, cat.WakeWords...)
	}
	// Longest first so "jarvish" is not left as "h".
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	return words
}

// stripWakeWord removes one leading wake word followed by spaces and an optional comma.
func stripWakeWord(s string, words []string) string {
	for _, w := range words {
		if w == "" || !strings.HasPrefix(s, w) {
			continue
		}
		rest := s[len(w):]
		if rest == "" {
			return ""
		}
		if rest[0] != ' ' && rest[0] != ',' && rest[0] != '\t' {
			continue
		}
		return strings.TrimLeft(rest, " ,\t")
	}
	return s
}

// stripTrailingWakeWord removes one trailing wake word, as in "stop jarvis".
func stripTrailingWakeWord(s string, words []string) string {
	for _, w := range words {
		if w != "" && strings.HasSuffix(s, " "+w) {
			return strings.TrimRight(strings.TrimSuffix(s, w), " ,")
		}
	}
	return s
}

// firstNonEmpty picks the first non-empty capture, mirroring alternation groups.
func firstNonEmpty(groups ...string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
