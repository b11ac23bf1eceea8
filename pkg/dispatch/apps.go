package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"assistant/pkg/catalog"
	"assistant/pkg/command"
)

var (
	appPrefixRe  = regexp.MustCompile(`(?i)^(?:open|start|launch|run|please|can you|would you|help me|certainly|sure|okay|alright)\s+`)
	appSuffixRe  = regexp.MustCompile(`(?i)\s+(?:please|now|for me|for you|right now|immediately)$`)
	brightnessRe = regexp.MustCompile(`brightness\s+(\d+)`)
	youtubeRe    = regexp.MustCompile(`(?i)(?:play\s+(.+?)\s+on\s+youtube|youtube\s+play\s+(.+)|open\s+youtube\s+and\s+play\s+(.+)|play\s+(.+))`)
)

// appCandidates returns the lookup keys for a spoken app name, whole phrase first.
func appCandidates(text string, wakeWords []string) []string {
	s := strings.ToLower(strings.TrimSpace(text))
	for _, w := range wakeWords {
		if strings.HasPrefix(s, w+" ") {
			s = strings.TrimSpace(s[len(w):])
			break
		}
	}
	for {
		next := appPrefixRe.ReplaceAllString(s, "")
		next = appSuffixRe.ReplaceAllString(next, "")
		next = strings.TrimSpace(strings.TrimPrefix(next, "the "))
		if next == s {
			break
		}
		s = next
	}

	words := nameTokens(s)
	if len(words) == 0 {
		return nil
	}
	return append([]string{strings.Join(words, " ")}, words...)
}

func (d *Dispatcher) handleAppOpen(ctx context.Context, cmd command.Command, env Env) (command.Result, error) {
	cat := d.catalog.Current()
	name := strings.TrimSpace(cmd.Get(command.KeyApp))
	if name == "" {
		name = cmd.RawInput
	}

	// "open downloads" is a folder, not an app.
	if _, _, ok := cat.CommonFolder(strings.ToLower(name)); ok {
		return d.handleFolderOpen(ctx, cmd.With(command.KeyName, name), env)
	}

	for _, key := range appCandidates(name, cat.WakeWords) {
		if u, ok := cat.WebApps[key]; ok {
			if err := d.launch(ctx, catalog.LaunchOpenURL, u); err != nil {
				return command.Result{}, failed(fmt.Sprintf("%s could not be opened.", key), err)
			}
			return command.Reply(cmd.Kind, cmd.RawInput, confirm(cmd, fmt.Sprintf("Opening %s for you.", key))), nil
		}
		if exe, ok := cat.WindowsApps[key]; ok {
			if err := d.launch(ctx, catalog.LaunchStart, exe); err != nil {
				return command.Result{}, failed(fmt.Sprintf("%s could not be opened.", key), err)
			}
			return command.Reply(cmd.Kind, cmd.RawInput, confirm(cmd, fmt.Sprintf("Opening %s for you.", key))), nil
		}
	}

	return command.Reply(cmd.Kind, cmd.RawInput,
		fmt.Sprintf("I don't know how to open '%s'. Please try a different application name.", strings.TrimSpace(name))), nil
}

func (d *Dispatcher) handleWindowsControl(ctx context.Context, cmd command.Command, _ Env) (command.Result, error) {
	cat := d.catalog.Current()
	action := strings.ToLower(strings.TrimSpace(cmd.Get(command.KeyAction)))
	if action == "" {
		action = strings.ToLower(strings.TrimSpace(cmd.RawInput))
	}

	switch {
	case action == command.ActionClose:
		return d.closeApp(ctx, cat, cmd, cmd.Get(command.KeyApp))
	case strings.HasPrefix(action, command.ActionClose+" "):
		return d.closeApp(ctx, cat, cmd, strings.TrimPrefix(action, command.ActionClose+" "))
	}

	if strings.Contains(action, "brightness") {
		m := brightnessRe.FindStringSubmatch(action)
		if m == nil {
			return command.Reply(cmd.Kind, cmd.RawInput, "Please specify brightness level (0-100)."), nil
		}
		level, _ := strconv.Atoi(m[1])
		level = min(100, max(0, level))
		line := fmt.Sprintf(`powershell.exe -Command "(Get-WmiObject -Namespace root/WMI -Class WmiMonitorBrightnessMethods).WmiSetBrightness(1,%d)"`, level)
		if err := d.run(ctx, line); err != nil {
			return command.Result{}, failed("the brightness could not be changed.", err)
		}
		return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Setting brightness to %d%%.", level)), nil
	}

	if a, ok := cat.WindowsAction(action); ok {
		if err := d.run(ctx, a.Command); err != nil {
			return command.Result{}, failed("that control command could not be run.", err)
		}
		return command.Reply(cmd.Kind, cmd.RawInput, confirm(cmd, a.Response)), nil
	}

	return command.Reply(cmd.Kind, cmd.RawInput,
		fmt.Sprintf("I don't know how to execute '%s'. Please try a different Windows control command.", action)), nil
}

// closeApp terminates the executable for app. Apps that live in a browser close the browsers.
func (d *Dispatcher) closeApp(ctx context.Context, cat *catalog.Catalog, cmd command.Command, app string) (command.Result, error) {
	phrase := strings.ToLower(strings.Trim(strings.TrimSpace(app), ".,!?"))

	var executables []string
	var response string
	first := phrase
	if i := strings.IndexByte(phrase, ' '); i > 0 {
		first = phrase[:i]
	}
	switch {
	case cat.IsBrowserApp(phrase) || cat.IsBrowserApp(first):
		executables = cat.Browsers
		response = fmt.Sprintf("Closing %s by terminating browser processes (this will close all tabs/windows of the browser).", phrase)
	case cat.CloseApps[phrase] != "":
		executables = []string{cat.CloseApps[phrase]}
	case cat.CloseApps[first] != "":
		executables = []string{cat.CloseApps[first]}
	default:
		return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf(
			"Sorry, I don't know how to close '%s' yet. Please try a common application like Chrome, Notepad, or Calculator.", phrase)), nil
	}
	if response == "" {
		response = confirm(cmd, fmt.Sprintf("Closing %s.", phrase))
	}

	for _, exe := range executables {
		if err := d.launch(ctx, catalog.LaunchKill, exe); err != nil {
			return command.Result{}, failed(fmt.Sprintf("%s could not be closed.", phrase), err)
		}
	}
	return command.Reply(cmd.Kind, cmd.RawInput, response), nil
}

// handleAssistantControl plays YouTube requests and otherwise passes the model's text through.
func (d *Dispatcher) handleAssistantControl(ctx context.Context, cmd command.Command, env Env) (command.Result, error) {
	query := strings.TrimSpace(cmd.Get(command.KeyQuery))
	if query == "" {
		lower := strings.ToLower(cmd.RawInput)
		if !strings.Contains(lower, "youtube") && !strings.Contains(lower, "play") {
			return d.handlePassThrough(ctx, cmd, env)
		}
		if m := youtubeRe.FindStringSubmatch(cmd.RawInput); m != nil {
			query = strings.Trim(firstNonEmpty(m[1:]...), " .,!?")
		}
	}
	if query == "" {
		return d.handlePassThrough(ctx, cmd, env)
	}

	target := "https://www.youtube.com/search?q=" + url.QueryEscape(query)
	if err := d.launch(ctx, catalog.LaunchOpenURL, target); err != nil {
		return command.Result{}, failed("YouTube could not be opened.", err)
	}
	return command.Reply(cmd.Kind, cmd.RawInput, confirm(cmd, fmt.Sprintf("Playing %s on YouTube.", query))), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
