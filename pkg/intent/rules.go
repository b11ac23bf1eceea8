package intent

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"assistant/pkg/command"
)

// Rule priorities. Lower values are evaluated first.
const (
	PriorityCloseApp        = 10
	PriorityLanguageSwitch  = 20
	PriorityAirplaneMode    = 30
	PriorityControl         = 40
	PriorityAppShortcut     = 50
	PriorityYoutubePlay     = 60
	PrioritySearch          = 70
	PriorityCall            = 80
	PriorityMessage         = 90
	PriorityAssistantRename = 100
	PriorityTrip            = 110
	PriorityReminder        = 120
	PriorityFileOperation   = 130
	PriorityProjectCreate   = 140
)

const defaultMessage = "How are you?"

var (
	closeRe          = regexp.MustCompile(`(?i)\bclose\s*[.,]?\s*(.+)`)
	languageSwitchRe = regexp.MustCompile(`(?i)\b(?:talk|speak|respond|reply) in\s+([a-z ]+)`)
	openVerbRe       = regexp.MustCompile(`(?i)^(?:open|start|launch|run)[\s,]*(?:the\s+)?(.+)$`)
	youtubePlayRe    = regexp.MustCompile(`(?i)play\s+(.+?)\s+on\s+youtube|youtube\s+play\s+(.+)|open\s+youtube\s+and\s+play\s+(.+)`)
	searchRe         = regexp.MustCompile(`(?i)search\s+(.+?)\s+on\s+google|google\s+search\s+(.+)|search\s+(.+)`)
	callRe           = regexp.MustCompile(`(?i)call\s+(\w+)\s+on\s+whatsapp`)
	messageRes       = []*regexp.Regexp{
		regexp.MustCompile(`(?i)send\s+message\s+(\w+),\s*(.+)`),
		regexp.MustCompile(`(?i)sent\s+(\w+)\s+message[.,]?\s*(.+)`),
	}
	// Message first, contact second.
	messageSwappedRe = regexp.MustCompile(`(?i)send\s+(.+)\s+message\s+to\s+(\w+)\s+on\s+whatsapp`)
	tripRe           = regexp.MustCompile(`(?i)plan\s+(?:my\s+)?(?:next\s+)?(?:weekend\s+)?trip\s+to\s+(.+)|plan\s+(.+)\s+trip`)
	reminderRe       = regexp.MustCompile(`(?i)(?:set\s+a\s+)?reminder\s+(?:at\s+)?(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)\s+(?:to\s+)?(.+)`)
	fileOperationRe  = regexp.MustCompile(`(?i)copy\s+(?:code\s+)?from\s+([\w./\\]+)\s+.*?\s*paste\s+(?:it\s+)?(?:into\s+|to\s+)?([\w./\\]+)(?:\s*,\s*but\s+only\s+the\s+(.+))?`)
)

var projectPhrases = map[string][]string{
	"python": {"create python project", "create a python project", "make python project"},
	"java":   {"create java project", "create a java project", "make java project"},
}

const renamePrefix = "set assistant name to "

// DefaultRules returns the built-in rule set in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "close-app", Priority: PriorityCloseApp, Predicate: onStripped(closeRe), Extract: extractCloseApp},
		{Name: "language-switch", Priority: PriorityLanguageSwitch, Predicate: onText(languageSwitchRe), Extract: extractLanguageSwitch},
		{Name: "airplane-mode", Priority: PriorityAirplaneMode, Predicate: matchAirplaneMode, Extract: extractAirplaneMode},
		{Name: "control", Priority: PriorityControl, Predicate: matchControl, Extract: extractControl},
		{Name: "app-shortcut", Priority: PriorityAppShortcut, Predicate: matchShortcut, Extract: extractShortcut},
		{Name: "youtube-play", Priority: PriorityYoutubePlay, Predicate: onText(youtubePlayRe), Extract: extractYoutubePlay},
		{Name: "search", Priority: PrioritySearch, Predicate: onText(searchRe), Extract: extractSearch},
		{Name: "call", Priority: PriorityCall, Predicate: onText(callRe), Extract: extractCall},
		{Name: "message", Priority: PriorityMessage, Predicate: matchMessage, Extract: extractMessage},
		{Name: "assistant-rename", Priority: PriorityAssistantRename, Predicate: matchRename, Extract: extractRename},
		{Name: "trip", Priority: PriorityTrip, Predicate: onText(tripRe), Extract: extractTrip},
		{Name: "reminder", Priority: PriorityReminder, Predicate: onText(reminderRe), Extract: extractReminder},
		{Name: "file-operation", Priority: PriorityFileOperation, Predicate: onStripped(fileOperationRe), Extract: extractFileOperation},
		{Name: "project-create", Priority: PriorityProjectCreate, Predicate: matchProject, Extract: extractProject},
	}
}

// onText matches re against the fully normalized text.
func onText(re *regexp.Regexp) func(in *Input) []string {
	return func(in *Input) []string { return submatches(re, in.Text) }
}

// onStripped matches re before punctuation is normalized, so file names and
// "close." survive intact.
func onStripped(re *regexp.Regexp) func(in *Input) []string {
	return func(in *Input) []string { return submatches(re, in.Stripped) }
}

func submatches(re *regexp.Regexp, s string) []string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return m[1:]
}

func trimPunct(s string) string {
	return strings.Trim(s, ",. \t")
}

func local(kind command.Kind, response string) command.Command {
	return command.Command{Kind: kind, ResponseText: response, Payload: map[string]string{}}
}

func extractCloseApp(_ *Input, g []string) command.Command {
	app := trimPunct(g[0])
	return local(command.KindWindowsControl, fmt.Sprintf("Closing %s for you.", app)).
		With(command.KeyAction, command.ActionClose).
		With(command.KeyApp, app)
}

func extractLanguageSwitch(in *Input, g []string) command.Command {
	name := strings.TrimSpace(strings.ToLower(g[0]))
	code := "en"
	if in.Catalog != nil {
		if c, ok := in.Catalog.LanguageCode(name); ok {
			code = c
		}
	}
	return local(command.KindLanguageSwitch, fmt.Sprintf("Switched to %s. Now I will respond in %s.", name, name)).
		With(command.KeyLanguage, name).
		With(command.KeyCode, code)
}

func matchAirplaneMode(in *Input) []string {
	for _, state := range []string{"on", "off"} {
		if strings.Contains(in.Text, "aeroplane mode "+state) || strings.Contains(in.Text, "airplane mode "+state) {
			return []string{state}
		}
	}
	return nil
}

func extractAirplaneMode(in *Input, g []string) command.Command {
	response := in.Catalog.Replies.AirplaneOff
	if g[0] == "on" {
		response = in.Catalog.Replies.AirplaneOn
	}
	return local(command.KindWindowsControl, response).
		With(command.KeyAction, "airplane mode "+g[0])
}

func matchControl(in *Input) []string {
	phrase := stripTrailingWakeWord(in.Text, wakeWords(in.Params, in.Catalog))
	switch phrase {
	case "stop", "pause", "resume":
		return []string{phrase}
	}
	return nil
}

func extractControl(in *Input, g []string) command.Command {
	switch g[0] {
	case "pause":
		return local(command.KindPause, in.Catalog.Replies.Pause)
	case "resume":
		return local(command.KindResume, in.Catalog.Replies.Resume)
	default:
		return local(command.KindStop, in.Catalog.Replies.Stop)
	}
}

func matchShortcut(in *Input) []string {
	if in.Catalog == nil {
		return nil
	}
	if _, ok := in.Catalog.ShortcutByPhrase(in.Text); ok {
		return []string{in.Text}
	}
	g := submatches(openVerbRe, in.Text)
	if g == nil {
		return nil
	}
	if _, ok := in.Catalog.ShortcutByName(g[0]); ok {
		return []string{g[0]}
	}
	return nil
}

func extractShortcut(in *Input, g []string) command.Command {
	s, ok := in.Catalog.ShortcutByName(g[0])
	if !ok {
		s, _ = in.Catalog.ShortcutByPhrase(g[0])
	}
	cmd := local(s.Kind, s.Response)
	switch s.Kind {
	case command.KindFolderOpen:
		return cmd.With(command.KeyName, strings.TrimSuffix(g[0], " folder"))
	case command.KindWindowsControl:
		return cmd.With(command.KeyAction, "open "+s.App)
	default:
		return cmd.With(command.KeyApp, s.App)
	}
}

func extractYoutubePlay(_ *Input, g []string) command.Command {
	q := firstNonEmpty(g...)
	return local(command.KindAssistantControl, fmt.Sprintf("Playing %q on YouTube for you. 🎵", q)).
		With(command.KeyQuery, q)
}

func extractSearch(_ *Input, g []string) command.Command {
	q := firstNonEmpty(g...)
	return local(command.KindSearch, fmt.Sprintf("Searching for %q on Google for you. 🔍", q)).
		With(command.KeyQuery, q)
}

func extractCall(_ *Input, g []string) command.Command {
	return local(command.KindCall, fmt.Sprintf("Calling %s on WhatsApp.", g[0])).
		With(command.KeyContact, g[0])
}

func matchMessage(in *Input) []string {
	for _, re := range messageRes {
		if g := submatches(re, in.Text); g != nil {
			return g
		}
	}
	if g := submatches(messageSwappedRe, in.Text); g != nil {
		return []string{g[1], g[0]}
	}
	return nil
}

func extractMessage(in *Input, g []string) command.Command {
	contact := g[0]
	msg := g[1]
	if msg == "" {
		msg = defaultMessage
	}
	caller := in.Params.CallerName
	if caller == "" {
		caller = "friend"
	}
	response := fmt.Sprintf(
		"Alright, %s. I've sent a message to %s saying, '%s'. Is there anything else I can help with today? 😊",
		caller, capitalize(contact), msg)
	return local(command.KindMessage, response).
		With(command.KeyContact, contact).
		With(command.KeyText, msg)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func matchRename(in *Input) []string {
	if !strings.HasPrefix(in.Text, renamePrefix) {
		return nil
	}
	name := strings.TrimSpace(strings.TrimPrefix(in.Text, renamePrefix))
	if name == "" {
		return nil
	}
	return []string{name}
}

func extractRename(_ *Input, g []string) command.Command {
	return local(command.KindAssistantRename, fmt.Sprintf("Assistant name set to %s. You can now call me %s.", g[0], g[0])).
		With(command.KeyName, g[0])
}

func extractTrip(_ *Input, g []string) command.Command {
	dest := strings.TrimSpace(firstNonEmpty(g...))
	return local(command.KindAutonomousTrip, fmt.Sprintf("Planning your trip to %s. Please wait while I gather the information.", dest)).
		With(command.KeyDestination, dest)
}

func extractReminder(in *Input, g []string) command.Command {
	timeText := strings.TrimSpace(g[0])
	msg := strings.TrimSpace(g[1])
	at, ok := ParseReminderTime(timeText, in.Now)
	if !ok {
		return local(command.KindReminder, fmt.Sprintf(UnclearReminderTime, timeText)).
			With(command.KeyTimeText, timeText).
			With(command.KeyMessage, msg)
	}
	return local(command.KindReminder, fmt.Sprintf("Reminder set for %s to %s", timeText, msg)).
		With(command.KeyTimeText, timeText).
		With(command.KeyMessage, msg).
		With(command.KeyTime, at.Format(time.RFC3339))
}

// ParseFileOperation pulls the source, destination, and optional filter out of a
// "copy code from A and paste it into B, but only the X" request. Case is preserved.
func ParseFileOperation(text string) (src, dst, filter string, ok bool) {
	g := submatches(fileOperationRe, text)
	if g == nil {
		return "", "", "", false
	}
	return strings.TrimRight(g[0], ".,"), strings.TrimRight(g[1], ".,"), trimPunct(g[2]), true
}

func extractFileOperation(_ *Input, g []string) command.Command {
	src := strings.TrimRight(g[0], ".,")
	dst := strings.TrimRight(g[1], ".,")
	filter := trimPunct(g[2])
	cmd := local(command.KindFileOperation, "").
		With(command.KeySource, src).
		With(command.KeyDest, dst)
	if filter != "" {
		cmd = cmd.With(command.KeyFilter, filter)
	}
	return cmd
}

func matchProject(in *Input) []string {
	for _, lang := range []string{"python", "java"} {
		for _, phrase := range projectPhrases[lang] {
			if strings.Contains(in.Text, phrase) {
				return []string{lang}
			}
		}
	}
	return nil
}

func extractProject(_ *Input, g []string) command.Command {
	return local(command.KindProjectCreate, "").
		With(command.KeyLanguage, g[0])
}
