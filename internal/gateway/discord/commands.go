package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/interaction"
)

// RegisterCommands replaces the application's slash commands with specs.
// An empty guildID registers them globally.
func RegisterCommands(ctx context.Context, s *discordgo.Session, guildID string, specs []interaction.CommandSpec) error {
	if s.State == nil || s.State.User == nil {
		return fmt.Errorf("discord: session is not ready")
	}
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, toApplicationCommands(specs), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	return nil
}

func toApplicationCommands(specs []interaction.CommandSpec) []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	out := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmd := &discordgo.ApplicationCommand{Name: spec.Name, Description: spec.Description}
		if spec.AdminOnly {
			cmd.DefaultMemberPermissions = &adminOnly
		}
		for _, opt := range spec.Options {
			kind := discordgo.ApplicationCommandOptionString
			if opt.Kind == interaction.OptionUserRef {
				kind = discordgo.ApplicationCommandOptionUser
			}
			cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
				Type:        kind,
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			})
		}
		out = append(out, cmd)
	}
	return out
}
