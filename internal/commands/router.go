package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/pkg/response"
)

// Router dispatches interactions through a validated Registry.
type Router struct {
	registry  *Registry
	responder discord.Responder
	logger    *zap.Logger
}

// NewRouter validates reg and returns a router that answers through
// responder.
func NewRouter(reg *Registry, responder discord.Responder, logger *zap.Logger) (*Router, error) {
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command registry: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{registry: reg, responder: responder, logger: logger}, nil
}

// Handle answers i. Whatever the handler does, the caller receives exactly
// one reply: the handler's own, or the generic error.
func (r *Router) Handle(ctx context.Context, i *discordgo.Interaction) {
	in := discord.NewInteraction(i, r.responder)
	logger := r.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("user_id", in.UserID()),
		zap.String("guild_id", i.GuildID),
	)

	var (
		kind, name string
		mode       DeferMode
		handle     HandlerFunc
	)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		kind, name = "command", in.CommandName()
		if c, ok := r.registry.Commands[name]; ok {
			mode, handle = c.Defer, c.Handle
		}
		if sub := in.Subcommand(); sub != "" {
			logger = logger.With(zap.String("subcommand", sub))
		}
	case discordgo.InteractionMessageComponent:
		kind = "button"
		name, _, _ = strings.Cut(in.CustomID(), ";")
		handle = r.registry.Buttons[name]
	default:
		return
	}
	logger = logger.With(zap.String("kind", kind), zap.String("name", name))

	start := time.Now()
	outcome := outcomeOK
	defer func() {
		interactionCounter.WithLabelValues(kind, name, outcome).Inc()
		interactionDuration.WithLabelValues(kind, name).Observe(time.Since(start).Seconds())
		logger.Info("interaction handled", zap.String("outcome", outcome), zap.Duration("latency", time.Since(start)))
	}()

	if handle == nil {
		outcome = outcomeUnknown
		logger.Warn("no handler for interaction")
		r.fallback(ctx, in, logger)
		return
	}

	if mode != DeferNone {
		if err := in.Defer(ctx, mode == DeferEphemeral); err != nil {
			outcome = outcomeError
			logger.Error("defer interaction", zap.Error(err))
			return
		}
	}

	err := r.run(ctx, in, handle)
	var p *panicError
	switch {
	case errors.As(err, &p):
		outcome = outcomePanic
		logger.Error("handler panicked", zap.Any("panic", p.value), zap.ByteString("stack", p.stack))
	case err != nil:
		outcome = outcomeError
		logger.Error("handler failed", zap.Error(err))
	}
	if !in.Replied() {
		if err == nil {
			logger.Warn("handler returned without replying")
		}
		r.fallback(ctx, in, logger)
	}
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func (r *Router) run(ctx context.Context, in *discord.Interaction, handle HandlerFunc) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v, stack: debug.Stack()}
		}
	}()
	return handle(ctx, in)
}

func (r *Router) fallback(ctx context.Context, in *discord.Interaction, logger *zap.Logger) {
	if err := in.Reply(ctx, response.Generic()); err != nil && !errors.Is(err, discord.ErrAlreadyReplied) {
		logger.Error("send fallback reply", zap.Error(err))
	}
}
