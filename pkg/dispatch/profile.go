package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant/pkg/command"
	"assistant/pkg/intent"
	"assistant/pkg/persistence"
)

const renameFailed = "Sorry, I couldn't update your assistant name. Please try again."

func (d *Dispatcher) handleClock(_ context.Context, cmd command.Command, _ Env) (command.Result, error) {
	now := d.now()
	var text string
	switch cmd.Kind {
	case command.KindGetDate:
		text = "Current date is " + now.Format("2006-01-02")
	case command.KindGetTime:
		text = "Current time is " + now.Format("03:04 PM")
	case command.KindGetDay:
		text = "Today is " + now.Format("Monday")
	default:
		text = "Today is " + now.Format("January")
	}
	return command.Reply(cmd.Kind, cmd.RawInput, text), nil
}

// handleReminder confirms with the resolved text and hands the reminder to the store. A store
// failure does not change the reply. A spoken time that cannot be parsed is never confirmed.
func (d *Dispatcher) handleReminder(ctx context.Context, cmd command.Command, env Env) (command.Result, error) {
	res := command.Reply(cmd.Kind, cmd.RawInput, cmd.ResponseText)
	at, ok := d.reminderTime(cmd)
	if !ok {
		spoken := firstNonEmpty(cmd.Get(command.KeyTimeText), cmd.Get(command.KeyTime))
		if spoken == "" {
			d.logger.Warn("reminder %q has no time, not storing it", cmd.RawInput)
			return res, nil
		}
		d.logger.Warn("reminder %q has an unusable time %q, not storing it", cmd.RawInput, spoken)
		return command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf(intent.UnclearReminderTime, spoken)), nil
	}

	if d.users == nil || env.CallerID == "" {
		return res, nil
	}
	r := persistence.Reminder{Time: at, Message: cmd.Get(command.KeyMessage), Active: true}
	if err := d.users.AppendReminder(ctx, env.CallerID, r); err != nil {
		d.logger.Error("failed to store reminder for %s: %v", env.CallerID, err)
	}
	return res, nil
}

func (d *Dispatcher) reminderTime(cmd command.Command) (time.Time, bool) {
	if s := cmd.Get(command.KeyTime); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, ok := intent.ParseReminderTime(s, d.now()); ok {
			return t, true
		}
	}
	if s := cmd.Get(command.KeyTimeText); s != "" {
		return intent.ParseReminderTime(s, d.now())
	}
	return time.Time{}, false
}

func (d *Dispatcher) handleRename(ctx context.Context, cmd command.Command, env Env) (command.Result, error) {
	name := strings.TrimSpace(cmd.Get(command.KeyName))
	if name == "" {
		return command.Result{}, reason("Assistant name is required.")
	}
	if d.users != nil && env.CallerID != "" {
		if err := d.users.UpdateAssistantName(ctx, env.CallerID, name); err != nil {
			d.logger.Error("failed to rename assistant for %s: %v", env.CallerID, err)
			return command.Reply(cmd.Kind, cmd.RawInput, renameFailed), nil
		}
	}
	return command.Reply(cmd.Kind, cmd.RawInput,
		fmt.Sprintf("Assistant name set to %s. You can now call me %s.", name, name)), nil
}

func (d *Dispatcher) handleLanguageSwitch(ctx context.Context, cmd command.Command, env Env) (command.Result, error) {
	name := strings.ToLower(strings.TrimSpace(cmd.Get(command.KeyLanguage)))
	if name == "" {
		return command.Result{}, reason("Language name is required.")
	}
	code, ok := d.catalog.Current().LanguageCode(name)
	if !ok {
		code = "en"
	}

	if d.users != nil && env.CallerID != "" {
		if err := d.users.UpdatePreferredLanguage(ctx, env.CallerID, code); err != nil {
			d.logger.Error("failed to save language preference for %s: %v", env.CallerID, err)
		}
	}

	res := command.Reply(cmd.Kind, cmd.RawInput, fmt.Sprintf("Switched to %s. Now I will respond in %s.", name, name))
	res.Language = code
	return res, nil
}

func (d *Dispatcher) handleImageGenerate(ctx context.Context, cmd command.Command, _ Env) (command.Result, error) {
	if d.images == nil {
		return command.Result{}, reason("image generation is not configured.")
	}
	description := cmd.RawInput
	for _, key := range []string{command.KeyQuery, "prompt", "description"} {
		if v := strings.TrimSpace(cmd.Get(key)); v != "" {
			description = v
			break
		}
	}

	out, err := d.images.Generate(ctx, description)
	if err != nil {
		return command.Result{}, failed("the image could not be generated right now.", err)
	}

	res := command.Reply(cmd.Kind, cmd.RawInput, out.Text)
	if out.Image != nil {
		res.Image = out.Image
		if res.Response == "" {
			res.Response = confirm(cmd, "Here is the image you asked for.")
		}
	}
	return res, nil
}
