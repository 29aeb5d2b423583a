package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bz888/agentchat/internal/speech"
)

type command struct {
	name  string
	usage string
	run   func(v *View, arg string)
}

var commands []command

func init() {
	commands = []command{
		{"/help", "Show this help", (*View).showHelp},
		{"/clear", "Start a new conversation", func(v *View, _ string) { v.reset() }},
		{"/models", "List the models the agent can use", (*View).showModels},
		{"/health", "Check the agent backend", func(v *View, _ string) {
			v.setNotice("Checking backend health...")
			v.async(v.refreshHealth)
		}},
		{"/debug", "Toggle the debug console", func(v *View, _ string) { v.toggleDebugConsole() }},
		{"/voice", "Dictate a message", (*View).startDictation},
		{"/bye", "Exit the application", func(v *View, _ string) { v.Stop() }},
		{"/quit", "", func(v *View, _ string) { v.Stop() }},
		{"/exit", "", func(v *View, _ string) { v.Stop() }},
	}
}

// parseCommand splits "/name rest" input. Text that does not start with a
// slash is a chat message.
func parseCommand(text string) (name, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (v *View) runCommand(name, arg string) {
	c, ok := lookupCommand(name)
	if !ok {
		v.setNotice(fmt.Sprintf("[yellow]Unknown command %s, try /help[-]", name))
		return
	}
	v.log.Debug("running command", name)
	c.run(v, arg)
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Here are some commands you can use:\n\n")
	for _, c := range commands {
		if c.usage == "" {
			continue
		}
		fmt.Fprintf(&b, "%-8s %s\n", c.name, c.usage)
	}
	b.WriteString("\n/quit and /exit work like /bye.")
	return b.String()
}

func (v *View) showHelp(string) {
	v.showMessage(helpText())
}

func (v *View) showModels(string) {
	v.setNotice("Loading models...")
	v.async(func() {
		models, err := v.backend.ListModels(v.ctx)
		v.queue(func() {
			if err != nil {
				v.log.Error("failed to list models:", err)
				v.setNotice("[red]Could not load models[-]")
				return
			}
			v.setNotice("")
			v.showModelList(models)
		})
	})
}

func (v *View) startDictation(string) {
	if v.voice == nil {
		v.setNotice("[yellow]Voice input is disabled, set API_KEY to enable it[-]")
		v.log.Warn("API_KEY is not set, voice recognition is disabled")
		return
	}
	if v.busy() {
		return
	}

	v.dictating = true
	v.setNotice("[blue]Listening...[-]")
	v.applyAffordances()

	v.async(func() {
		text, err := v.voice.Dictate(v.ctx)
		v.queue(func() {
			v.dictating = false
			v.applyAffordances()
			v.finishDictation(text, err)
		})
	})
}

func (v *View) finishDictation(text string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, speech.ErrNoSpeech):
		v.setNotice("[yellow]No speech detected[-]")
		return
	case err != nil:
		v.log.Error("failed to process voice:", err)
		v.setNotice("[red]Voice input failed[-]")
		return
	}

	v.log.Info("voice transcript ready")
	if !v.canSubmit(text) {
		// leave it for the user to send once the reply lands
		v.input.SetText(text, true)
		v.setNotice("")
		return
	}
	v.submit(strings.TrimSpace(text))
}
