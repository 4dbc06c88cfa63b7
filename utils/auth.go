package utils

import (
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// IsDeveloper checks if a user is listed as a bot developer.
func IsDeveloper(userID string) bool {
	for _, devID := range viper.GetStringSlice("bot.developers") {
		if userID == devID {
			return true
		}
	}
	return false
}

// IsModerator checks for moderation permissions on a guild member.
func IsModerator(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	perms := member.Permissions
	return perms&discordgo.PermissionModerateMembers != 0 ||
		perms&discordgo.PermissionBanMembers != 0 ||
		perms&discordgo.PermissionAdministrator != 0
}

// ModCheck verifies that an interaction comes from a guild moderator.
func ModCheck(i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" || i.Member == nil {
		return false
	}
	return IsModerator(i.Member)
}
