package discord

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/bwmarrin/discordgo"
)

// Discord rejects embeds past these lengths.
const (
	maxTitle      = 256
	maxFieldName  = 256
	maxFieldValue = 1024
	maxDesc       = 4096
)

// embedSender is the part of *discordgo.Session the sink needs.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sink posts messages as channel embeds.
type Sink struct {
	session embedSender
}

var _ delivery.Sink = (*Sink)(nil)

func NewSink(session embedSender) *Sink {
	return &Sink{session: session}
}

func (s *Sink) Send(ctx context.Context, msg delivery.Message) error {
	if msg.ChannelID == "" {
		return delivery.ErrNoChannel
	}
	if _, err := s.session.ChannelMessageSendEmbed(msg.ChannelID, ToEmbed(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending embed to %s: %w", msg.ChannelID, err)
	}
	return nil
}

// ToEmbed converts a message, clipping every part to Discord's limits.
func ToEmbed(msg delivery.Message) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       clip(msg.Title, maxTitle),
		Description: clip(msg.Description, maxDesc),
		URL:         msg.URL,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   clip(f.Name, maxFieldName),
			Value:  clip(f.Value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	if msg.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	return e
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
