package presenters

import "github.com/bwmarrin/discordgo"

const helpColor = 0x0099ff

// HelpEmbed lists the chat commands of the bot.
func HelpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       helpColor,
		Title:       "🎮 Clutch Gaming Coach Bot",
		Description: "Bot de análisis de comunicación para gaming",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎙️ !record", Value: "Comenzar a grabar audio del canal de voz", Inline: true},
			{Name: "⏹️ !stop", Value: "Detener grabación y procesar análisis", Inline: true},
			{Name: "📊 !status", Value: "Ver estado actual de grabación", Inline: true},
			{Name: "🧪 !test-analysis", Value: "Analizar de nuevo tu última grabación", Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Para usar el bot, únete a un canal de voz y usa !record",
		},
	}
}
