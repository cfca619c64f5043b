// Package discord connects the router to a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/noise/internal/bot"
	"github.com/alexanderramin/noise/internal/service"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// handleTimeout bounds the synchronous part of one message: embedding and the
// store write. The connection pipeline continues on the supervisor.
const handleTimeout = 30 * time.Second

// Handler is the part of bot.Router the gateway drives.
type Handler interface {
	Handle(ctx context.Context, in bot.Inbound) (*service.RecordResult, error)
}

type Gateway struct {
	session *discordgo.Session
	handler Handler
	log     *zap.Logger
}

// NewSession opens nothing yet; it only prepares an authenticated session
// with the intents needed to read message content.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	return s, nil
}

func NewGateway(session *discordgo.Session, handler Handler, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{session: session, handler: handler, log: log}
}

// Run connects, routes messages until ctx ends, then disconnects.
func (g *Gateway) Run(ctx context.Context) error {
	remove := g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		g.onMessage(ctx, m)
	})
	defer remove()

	g.session.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		g.log.Info("discord gateway ready", zap.String("user", r.User.Username))
	})

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	<-ctx.Done()
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("closing discord gateway: %w", err)
	}
	return nil
}

func (g *Gateway) onMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if ctx.Err() != nil || m.Author == nil {
		return
	}
	in := ToInbound(m.Message)

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	if _, err := g.handler.Handle(hctx, in); err != nil {
		g.log.Error("handling discord message",
			zap.String("member_id", in.MemberID),
			zap.String("channel_id", in.ChannelID),
			zap.Error(err))
	}
}

// ToInbound maps a Discord message onto the router's input.
func ToInbound(m *discordgo.Message) bot.Inbound {
	in := bot.Inbound{ChannelID: m.ChannelID, Text: m.Content}
	if m.Author != nil {
		in.MemberID = m.Author.ID
		in.FromBot = m.Author.Bot
	}
	return in
}
