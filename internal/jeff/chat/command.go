package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Command is one parsed slash command.
type Command struct {
	Name       string
	Subcommand string
	Args       []string
	Flags      map[string]string
	RawText    string
}

// Rest returns everything after the command name, useful for commands whose
// argument is free text rather than tokens.
func (c *Command) Rest() string {
	return strings.TrimSpace(strings.TrimPrefix(c.RawText, c.Name))
}

// ErrNotACommand is returned by Parse when the line does not start with the
// command prefix. Callers should use errors.Is to distinguish this expected
// case from real errors.
var ErrNotACommand = errors.New("chat: not a command (missing prefix)")

// Handler executes one command and returns the text to show the user.
type Handler func(ctx context.Context, cmd *Command) (string, error)

// CommandRouter parses prefixed lines and routes them to handlers.
type CommandRouter struct {
	handlers map[string]Handler
	prefix   string
}

// NewCommandRouter creates a router for commands starting with prefix.
func NewCommandRouter(prefix string) *CommandRouter {
	return &CommandRouter{
		handlers: make(map[string]Handler),
		prefix:   prefix,
	}
}

// Register registers a command handler under its name.
func (r *CommandRouter) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Parse parses a line into a command.
func (r *CommandRouter) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	if text == "" {
		return nil, fmt.Errorf("chat: empty command")
	}

	parts := strings.Fields(text)
	cmd := &Command{
		Name:    parts[0],
		Args:    []string{},
		Flags:   make(map[string]string),
		RawText: text,
	}

	if len(parts) > 1 {
		if !strings.HasPrefix(parts[1], "-") {
			cmd.Subcommand = parts[1]
			parts = parts[2:]
		} else {
			parts = parts[1:]
		}

		for i := 0; i < len(parts); i++ {
			part := parts[i]

			if strings.HasPrefix(part, "--") {
				flagName := strings.TrimPrefix(part, "--")
				if i+1 < len(parts) && !strings.HasPrefix(parts[i+1], "--") {
					cmd.Flags[flagName] = parts[i+1]
					i++
				} else {
					cmd.Flags[flagName] = "true"
				}
			} else {
				cmd.Args = append(cmd.Args, part)
			}
		}
	}

	return cmd, nil
}

// Handle parses the line and runs the matching handler.
func (r *CommandRouter) Handle(ctx context.Context, text string) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}
	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("chat: unknown command %s%s (try %shelp)", r.prefix, cmd.Name, r.prefix)
	}
	return handler(ctx, cmd)
}
