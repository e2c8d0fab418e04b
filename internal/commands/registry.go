// Package commands maps slash commands and button presses to handlers and
// answers every interaction exactly once.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/winhacks/hackbot/internal/discord"
)

// DeferMode is how a command acknowledges an interaction before its handler
// runs. It must match what the handler does or Discord rejects the reply.
type DeferMode int

const (
	// DeferNone leaves acknowledging to the handler.
	DeferNone DeferMode = iota
	// DeferNormal shows a public "thinking" placeholder.
	DeferNormal
	// DeferEphemeral shows a placeholder only the caller can see.
	DeferEphemeral
)

func (m DeferMode) String() string {
	switch m {
	case DeferNormal:
		return "normal"
	case DeferEphemeral:
		return "ephemeral"
	default:
		return "none"
	}
}

// HandlerFunc answers one interaction. Returning an error without replying
// makes the router send the generic error reply.
type HandlerFunc func(ctx context.Context, in *discord.Interaction) error

// Command is a slash command definition and its handler.
type Command struct {
	Definition *discordgo.ApplicationCommand
	Defer      DeferMode
	Handle     HandlerFunc
}

// Registry is the fixed set of commands and button handlers, keyed by
// command name and button id prefix.
type Registry struct {
	Commands map[string]*Command
	Buttons  map[string]HandlerFunc
}

// Validate checks that every entry is complete and consistently named.
func (r *Registry) Validate() error {
	var errs []error
	if len(r.Commands) == 0 {
		errs = append(errs, errors.New("no commands registered"))
	}
	for name, c := range r.Commands {
		switch {
		case c == nil || c.Definition == nil:
			errs = append(errs, fmt.Errorf("command %q: missing definition", name))
			continue
		case c.Definition.Name != name:
			errs = append(errs, fmt.Errorf("command %q: registered as %q", c.Definition.Name, name))
		case c.Definition.Description == "":
			errs = append(errs, fmt.Errorf("command %q: missing description", name))
		}
		if c.Handle == nil {
			errs = append(errs, fmt.Errorf("command %q: missing handler", name))
		}
		if c.Defer < DeferNone || c.Defer > DeferEphemeral {
			errs = append(errs, fmt.Errorf("command %q: unknown defer mode %d", name, c.Defer))
		}
	}
	for prefix, h := range r.Buttons {
		if prefix == "" {
			errs = append(errs, errors.New("button with empty prefix"))
		}
		if h == nil {
			errs = append(errs, fmt.Errorf("button %q: missing handler", prefix))
		}
	}
	return errors.Join(errs...)
}

// Definitions returns the command definitions sorted by name, ready for a
// bulk overwrite.
func (r *Registry) Definitions() []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(r.Commands))
	for _, c := range r.Commands {
		defs = append(defs, c.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
