package bot

import (
	"fmt"
	"strings"

	"colorgame/bot/common"
	"colorgame/models"

	"github.com/bwmarrin/discordgo"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorViolet  = 0x9B59B6
)

var colorEmoji = map[models.Color]string{
	models.ColorRed:    "🔴",
	models.ColorGreen:  "🟢",
	models.ColorViolet: "🟣",
}

func buildPeriodStartEmbed(round *models.Round, lockWindow string) *discordgo.MessageEmbed {
	description := fmt.Sprintf("Draw %s", common.FormatDiscordTimestamp(round.EndTime, "R"))
	if lockWindow != "" {
		description += fmt.Sprintf("\nBetting closes %s before the draw", lockWindow)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎲 Period %s is open", round.ID),
		Description: description,
		Color:       ColorPrimary,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Color pays 2x • Number pays 9x",
		},
	}
}

func buildPeriodEndEmbed(round *models.Round) *discordgo.MessageEmbed {
	outcome := round.Outcome()
	if outcome == nil {
		return &discordgo.MessageEmbed{
			Title: fmt.Sprintf("Period %s closed", round.ID),
			Color: ColorPrimary,
		}
	}

	var swatches []string
	for _, c := range outcome.Colors {
		swatches = append(swatches, fmt.Sprintf("%s %s", colorEmoji[c], c))
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🏁 Period %s result", round.ID),
		Color: embedColor(outcome.Colors),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Number", Value: fmt.Sprintf("**%d**", outcome.Number), Inline: true},
			{Name: "Color", Value: strings.Join(swatches, " + "), Inline: true},
			{Name: "Price", Value: common.FormatAmount(outcome.Price), Inline: true},
		},
	}
}

// embedColor uses violet for the two-color numbers
func embedColor(colors models.ColorSet) int {
	switch {
	case colors.Contains(models.ColorViolet):
		return ColorViolet
	case colors.Contains(models.ColorGreen):
		return ColorSuccess
	default:
		return ColorDanger
	}
}
