package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/winhacks/hackbot/config"
	"github.com/winhacks/hackbot/internal/commands"
	"github.com/winhacks/hackbot/internal/discord"
	"github.com/winhacks/hackbot/internal/events"
	"github.com/winhacks/hackbot/internal/ops"
	"github.com/winhacks/hackbot/internal/presence"
	"github.com/winhacks/hackbot/internal/roster"
	"github.com/winhacks/hackbot/internal/store/postgres"
	"github.com/winhacks/hackbot/internal/teams"
	"github.com/winhacks/hackbot/internal/verification"
	"github.com/winhacks/hackbot/pkg/database"
	"github.com/winhacks/hackbot/pkg/redis"
	"github.com/winhacks/hackbot/pkg/storage"
)

const (
	// interactionTimeout bounds a single handler; Discord keeps follow-up
	// tokens valid for 15 minutes.
	interactionTimeout = 2 * time.Minute
	shutdownTimeout    = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and handle interactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	if cfg.Discord.Token == "" {
		return errors.New("discord token is required")
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, logger); err != nil {
		return err
	}
	st := postgres.New(pool)

	lookup, err := newRoster(ctx, cfg)
	if err != nil {
		return err
	}

	bus := events.NewBus(logger)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		bridge := events.NewRedisBridge(rdb.Client, logger)
		if err := bridge.Run(ctx, bus); err != nil {
			return fmt.Errorf("start event bridge: %w", err)
		}
		bus.SetRemote(bridge)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	platform := discord.NewClient(session)
	guild := cfg.Discord.Guild()

	updater := presence.NewUpdater(st, platform, logger)
	updater.Subscribe(bus)

	verifier := verification.NewService(st, lookup, platform, bus, verification.Config{
		GuildID:  guild,
		RoleName: cfg.Verify.RoleName,
	}, logger)
	teamService := teams.NewService(st, platform, teams.Config{
		GuildID:          guild,
		MaxTeamSize:      cfg.Teams.MaxTeamSize,
		MaxNameLength:    cfg.Teams.MaxNameLength,
		TeamsPerCategory: cfg.Teams.TeamsPerCategory,
		CategoryBaseName: cfg.Teams.CategoryBaseName,
		ModeratorRoles:   cfg.Teams.ModeratorRoles,
		EventName:        cfg.Bot.EventName,
		DevMode:          cfg.Discord.DevMode,
	}, logger)

	handlers := commands.NewHandlers(cfg, commands.Deps{
		Verification: verifier,
		Teams:        teamService,
		Hackers:      st,
		Gateway:      session,
	}, logger)
	router, err := commands.NewRouter(handlers.Registry(), session, logger)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	var (
		ready    atomic.Bool
		inflight gate
	)
	// Handlers outlive the signal so in-flight interactions still get
	// their reply during shutdown.
	base := context.WithoutCancel(ctx)

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		ready.Store(true)
		logger.Info("connected to discord",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
		if err := updater.Refresh(base); err != nil {
			logger.Warn("refresh presence", zap.Error(err))
		}
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		ready.Store(false)
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		ready.Store(true)
	})
	session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		if !inflight.enter() {
			logger.Debug("dropping interaction during shutdown", zap.String("interaction_id", i.ID))
			return
		}
		defer inflight.leave()
		hctx, cancel := context.WithTimeout(base, interactionTimeout)
		defer cancel()
		router.Handle(hctx, i.Interaction)
	})
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
		if m.GuildID != guild || m.User == nil {
			return
		}
		if err := verifier.Forget(base, m.User.ID); err != nil {
			logger.Error("forget departed member", zap.String("user_id", m.User.ID), zap.Error(err))
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	opsServer := ops.NewServer(cfg.Ops.Addr, map[string]ops.Check{
		"database": func(ctx context.Context) error { return pool.Ping(ctx) },
		"gateway": func(context.Context) error {
			if !ready.Load() {
				return errors.New("not connected")
			}
			return nil
		},
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(opsServer.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := updater.Invisible(); err != nil {
			logger.Warn("clear presence", zap.Error(err))
		}
		inflight.close()
		bus.Wait()
		if err := session.Close(); err != nil {
			logger.Warn("close gateway", zap.Error(err))
		}
		return opsServer.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("bot stopped")
	return nil
}

// newRoster chains the spreadsheet roster, cached, in front of the S3
// export when both are configured.
func newRoster(ctx context.Context, cfg *config.Config) (roster.Lookup, error) {
	var primary, secondary roster.Lookup

	if cfg.Sheets.Enabled() {
		sheets, err := roster.NewSheets(ctx, cfg.Sheets, logger)
		if err != nil {
			return nil, err
		}
		primary = roster.NewCached(sheets, cfg.Sheets.CacheSize, time.Duration(cfg.Sheets.CacheTTLSeconds)*time.Second)
	}
	if cfg.AWS.RosterBucket != "" {
		objects, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		secondary = roster.NewCSV(objects, cfg.AWS.RosterBucket, cfg.AWS.RosterKey, logger)
	}

	switch {
	case primary != nil && secondary != nil:
		return &roster.Fallback{Primary: primary, Secondary: secondary, Logger: logger}, nil
	case primary != nil:
		return primary, nil
	case secondary != nil:
		return secondary, nil
	default:
		return nil, errors.New("no roster configured: set sheets credentials or an S3 roster bucket")
	}
}
