package main

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/winhacks/hackbot/internal/commands"
)

var (
	registerGuild string

	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Overwrite the bot's slash command definitions",
		Long: "Replaces every slash command definition with the bot's current set. " +
			"Commands are registered globally, or to the development guild in dev mode.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Discord.ApplicationID == "" {
				return errors.New("discord application id is required")
			}
			reg := commands.NewHandlers(cfg, commands.Deps{}, logger).Registry()
			if err := reg.Validate(); err != nil {
				return err
			}

			guild := registerGuild
			if guild == "" && cfg.Discord.DevMode {
				guild = cfg.Discord.DevGuildID
			}

			session, err := discordgo.New("Bot " + cfg.Discord.Token)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			defs, err := session.ApplicationCommandBulkOverwrite(cfg.Discord.ApplicationID, guild, reg.Definitions(),
				discordgo.WithContext(cmd.Context()))
			if err != nil {
				return fmt.Errorf("overwrite commands: %w", err)
			}
			for _, d := range defs {
				logger.Info("registered command", zap.String("name", d.Name), zap.String("id", d.ID), zap.String("guild_id", guild))
			}
			return nil
		},
	}
)

func init() {
	registerCmd.Flags().StringVar(&registerGuild, "guild", "", "register to this guild instead of globally")
}
