// Package dispatch routes a resolved Command to the handler for its kind and turns whatever the
// handler does into a caller-facing Result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"assistant/pkg/catalog"
	"assistant/pkg/command"
	"assistant/pkg/exec"
	"assistant/pkg/imagegen"
	"assistant/pkg/logx"
	"assistant/pkg/persistence"
)

// Env is the caller context a handler may need.
type Env struct {
	CallerID   string
	CallerName string
}

// UnknownKindError reports a command whose kind no handler serves.
type UnknownKindError struct {
	Kind command.Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("no handler for command kind %q", string(e.Kind))
}

// HandlerFailure wraps an error or panic raised while running a handler. Message is what the
// caller sees. Err is logged and never shown.
type HandlerFailure struct {
	Kind     command.Kind
	RawInput string
	Message  string
	Err      error
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("%s handler failed: %v", e.Kind, e.Err)
}

func (e *HandlerFailure) Unwrap() error { return e.Err }

// Reason is the text shown to the caller.
func (e *HandlerFailure) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	var r reason
	switch {
	case errors.As(e.Err, &r):
		return string(r)
	case errors.Is(e.Err, ErrOutsideRoot):
		return outsideRootReason
	default:
		return genericReason
	}
}

// failed pairs the caller-facing message with the error behind it.
func failed(message string, err error) error {
	return &HandlerFailure{Message: message, Err: err}
}

const (
	unknownKindResponse = "I didn't understand that command."
	genericReason       = "something went wrong on my side. Please try again."
	outsideRootReason   = "I can only work with files and folders inside the workspace."
)

// handlerFunc is the shape every handler follows.
type handlerFunc func(ctx context.Context, cmd command.Command, env Env) (command.Result, error)

// Options wires a Dispatcher's collaborators. Zero values select local defaults.
type Options struct {
	Catalog  *catalog.Store
	Launcher exec.ProcessLauncher
	Users    persistence.UserStore
	Images   imagegen.Client

	// Root is the directory folder, file, and project handlers work under.
	Root string
	// Home is where the common folders (documents, downloads, ...) live.
	Home string
	// GOOS selects the launch templates. Defaults to runtime.GOOS.
	GOOS string
	Now  func() time.Time
}

// Dispatcher executes commands. It is safe for concurrent use.
type Dispatcher struct {
	catalog  *catalog.Store
	launcher exec.ProcessLauncher
	users    persistence.UserStore
	images   imagegen.Client
	root     string
	home     string
	goos     string
	now      func() time.Time
	logger   *logx.Logger
}

// New creates a dispatcher.
func New(opts Options) (*Dispatcher, error) {
	d := &Dispatcher{
		catalog:  opts.Catalog,
		launcher: opts.Launcher,
		users:    opts.Users,
		images:   opts.Images,
		goos:     opts.GOOS,
		now:      opts.Now,
		logger:   logx.NewLogger("dispatch"),
	}
	if d.catalog == nil {
		d.catalog = catalog.NewStore(catalog.Default())
	}
	if d.launcher == nil {
		d.launcher = exec.NewLocalLauncher(exec.DefaultOpts())
	}
	if d.goos == "" {
		d.goos = runtime.GOOS
	}
	if d.now == nil {
		d.now = time.Now
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root %s: %w", root, err)
	}
	d.root = abs

	d.home = opts.Home
	if d.home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			d.home = home
		} else {
			d.home = d.root
		}
	}
	return d, nil
}

// Root returns the absolute workspace root.
func (d *Dispatcher) Root() string { return d.root }

// Dispatch runs the handler for cmd.Kind. It always returns a well-formed Result: handler errors and
// panics become a failure reply quoting the caller's text. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command, env Env) (res command.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("💥 %s handler panicked: %v", cmd.Kind, r)
			res = d.failure(cmd, &HandlerFailure{Kind: cmd.Kind, RawInput: cmd.RawInput, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	h, err := d.handler(cmd.Kind)
	if err != nil {
		d.logger.Warn("%v", err)
		return command.Reply(cmd.Kind, cmd.RawInput, unknownKindResponse)
	}

	res, err = h(ctx, cmd, env)
	if err != nil {
		var hf *HandlerFailure
		if !errors.As(err, &hf) {
			hf = &HandlerFailure{Err: err}
		}
		hf.Kind, hf.RawInput = cmd.Kind, cmd.RawInput
		d.logger.Error("%s handler failed for %q: %v", cmd.Kind, cmd.RawInput, hf.Err)
		return d.failure(cmd, hf)
	}

	if res.Kind == "" {
		res.Kind = cmd.Kind
	}
	if res.UserInput == "" {
		res.UserInput = cmd.RawInput
	}
	return res
}

func (d *Dispatcher) failure(cmd command.Command, hf *HandlerFailure) command.Result {
	return command.Reply(cmd.Kind, cmd.RawInput,
		fmt.Sprintf("Sorry, I couldn't complete '%s': %s", cmd.RawInput, hf.Reason()))
}

// handler selects the handler for k.
func (d *Dispatcher) handler(k command.Kind) (handlerFunc, error) {
	//exhaustive:enforce
	switch k {
	case command.KindFolderAdd:
		return d.handleFolderAdd, nil
	case command.KindFolderDelete:
		return d.handleFolderDelete, nil
	case command.KindFolderOpen:
		return d.handleFolderOpen, nil
	case command.KindAppOpen, command.KindAppOpenUniversal:
		return d.handleAppOpen, nil
	case command.KindWindowsControl:
		return d.handleWindowsControl, nil
	case command.KindFileOperation:
		return d.handleFileOperation, nil
	case command.KindImageGenerate:
		return d.handleImageGenerate, nil
	case command.KindAssistantControl:
		return d.handleAssistantControl, nil
	case command.KindGetDate, command.KindGetTime, command.KindGetDay, command.KindGetMonth:
		return d.handleClock, nil
	case command.KindReminder:
		return d.handleReminder, nil
	case command.KindAssistantRename:
		return d.handleRename, nil
	case command.KindLanguageSwitch:
		return d.handleLanguageSwitch, nil
	case command.KindProjectCreate:
		return d.handleProjectCreate, nil
	case command.KindAutonomousTrip:
		return d.handleTrip, nil
	case command.KindGeneral,
		command.KindSearch, command.KindCall, command.KindMessage,
		command.KindStop, command.KindPause, command.KindResume,
		command.KindHealthcare, command.KindEducation, command.KindFullstack, command.KindCoding,
		command.KindEntertainment, command.KindCricket, command.KindJokes, command.KindMotivation,
		command.KindNews, command.KindWeather, command.KindTechnology, command.KindTravel,
		command.KindFood, command.KindGeneralKnowledge, command.KindEnglish, command.KindSports,
		command.KindAstrology, command.KindMeditation,
		command.KindGoogleSearch, command.KindYoutubeSearch, command.KindYoutubePlay,
		command.KindYoutubeOpen, command.KindGoogleOpen, command.KindCalculatorOpen,
		command.KindInstagramOpen, command.KindFacebookOpen, command.KindWeatherShow:
		return d.handlePassThrough, nil
	default:
		return nil, &UnknownKindError{Kind: k}
	}
}

func (d *Dispatcher) handlePassThrough(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	return command.Reply(cmd.Kind, cmd.RawInput, cmd.ResponseText), nil
}

func (d *Dispatcher) handleTrip(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	res := command.Reply(cmd.Kind, cmd.RawInput, cmd.ResponseText)
	res.Destination = cmd.Get(command.KeyDestination)
	return res, nil
}

// launch renders a catalog launch template and runs it. A non-zero exit is logged, not returned.
func (d *Dispatcher) launch(ctx context.Context, template, target string) error {
	line, err := d.catalog.Current().LaunchCommandFor(d.goos, template, target)
	if err != nil {
		return err
	}
	return d.run(ctx, line)
}

func (d *Dispatcher) run(ctx context.Context, line string) error {
	code, err := d.launcher.Launch(ctx, line)
	if err != nil {
		return fmt.Errorf("failed to run %q: %w", line, err)
	}
	if code != 0 {
		d.logger.Warn("command %q exited with code %d", line, code)
	}
	return nil
}

// confirm keeps a locally resolved confirmation text and falls back to the handler's own.
func confirm(cmd command.Command, fallback string) string {
	if cmd.Source == command.SourceLocal && cmd.ResponseText != "" {
		return cmd.ResponseText
	}
	return fallback
}
