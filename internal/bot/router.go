// Package bot turns platform events into calls on the message and settings
// services. State lives in the services and the store.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/alexanderramin/noise/internal/service"
	"go.uber.org/zap"
)

// CommandPrefix marks a message as a command rather than a thought.
const CommandPrefix = "/"

// Inbound is one message as seen by the router.
type Inbound struct {
	MemberID  string
	ChannelID string
	Text      string
	FromBot   bool
}

type Router struct {
	messages        service.MessageService
	settings        service.SettingsService
	sink            delivery.Sink
	log             *zap.Logger
	defaultInterval int
}

type Option func(*Router)

// WithDefaultInterval sets the interval used by "/recommend on" without days.
func WithDefaultInterval(days int) Option {
	return func(r *Router) {
		if days > 0 {
			r.defaultInterval = days
		}
	}
}

func NewRouter(messages service.MessageService, settings service.SettingsService, sink delivery.Sink, log *zap.Logger, opts ...Option) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		messages:        messages,
		settings:        settings,
		sink:            sink,
		log:             log,
		defaultInterval: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes one inbound message. Bot messages are ignored; commands are
// answered in the sender's channel; everything else is recorded. The
// returned result is nil unless a message was recorded.
func (r *Router) Handle(ctx context.Context, in Inbound) (*service.RecordResult, error) {
	if in.FromBot || strings.TrimSpace(in.Text) == "" {
		return nil, nil
	}
	if strings.HasPrefix(in.Text, CommandPrefix) {
		return nil, r.command(ctx, in)
	}
	res, err := r.messages.RecordMessage(ctx, in.MemberID, in.Text, service.InChannel(in.ChannelID))
	if err != nil {
		return nil, fmt.Errorf("handling message from %s: %w", in.MemberID, err)
	}
	return res, nil
}

func (r *Router) command(ctx context.Context, in Inbound) error {
	fields := strings.Fields(strings.TrimPrefix(in.Text, CommandPrefix))
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	var (
		reply string
		err   error
	)
	switch name {
	case "connection", "toggle_connection":
		reply, err = r.connection(ctx, in.MemberID, args)
	case "recommend", "auto_recommend":
		reply, err = r.recommend(ctx, in.MemberID, args)
	case "status":
		reply, err = r.status(ctx, in.MemberID)
	default:
		// Unknown commands belong to other bots or the platform.
		return nil
	}
	if err != nil {
		var uerr usageError
		if !errors.As(err, &uerr) {
			return fmt.Errorf("command %s: %w", name, err)
		}
		reply = uerr.Error()
	}
	return r.reply(ctx, in.ChannelID, name, reply)
}

type usageError string

func (u usageError) Error() string { return string(u) }

const noDataReply = "There is no data for you yet. Post something first."

func (r *Router) connection(ctx context.Context, memberID string, args []string) (string, error) {
	if _, err := r.settings.Status(ctx, memberID); errors.Is(err, repository.ErrNotFound) {
		return noDataReply, nil
	} else if err != nil {
		return "", err
	}

	var enabled bool
	switch {
	case len(args) == 0:
		var err error
		if enabled, err = r.settings.ToggleConnection(ctx, memberID); err != nil {
			return "", err
		}
	case strings.EqualFold(args[0], "on"), strings.EqualFold(args[0], "off"):
		enabled = strings.EqualFold(args[0], "on")
		if err := r.settings.SetConnectionEnabled(ctx, memberID, enabled); err != nil {
			return "", err
		}
	default:
		return "", usageError("Usage: /connection [on|off]")
	}
	return fmt.Sprintf("Thought connections are now **%s**.", onOff(enabled)), nil
}

func (r *Router) recommend(ctx context.Context, memberID string, args []string) (string, error) {
	const usage = usageError("Usage: /recommend on [days] | /recommend off")

	// "/recommend 5" is shorthand for "/recommend on 5".
	if len(args) == 1 {
		if _, err := strconv.Atoi(args[0]); err == nil {
			args = []string{"on", args[0]}
		}
	}
	if len(args) == 0 {
		args = []string{"on"}
	}

	switch strings.ToLower(args[0]) {
	case "off":
		if err := r.settings.SetRecommendationSchedule(ctx, memberID, false, 0); err != nil {
			return "", err
		}
		return "Recommendations are now **off**.", nil
	case "on":
		days := r.defaultInterval
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return "", usage
			}
			days = n
		}
		if err := r.settings.SetRecommendationSchedule(ctx, memberID, true, days); err != nil {
			if errors.Is(err, service.ErrInvalidInterval) {
				return "", usage
			}
			return "", err
		}
		return fmt.Sprintf("Recommendations are **on**: one every %d day(s).", days), nil
	default:
		return "", usage
	}
}

func (r *Router) status(ctx context.Context, memberID string) (string, error) {
	rec, err := r.settings.Status(ctx, memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return noDataReply, nil
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Points: **%d**\n", rec.Points)
	fmt.Fprintf(&b, "Thoughts recorded: %d\n", len(rec.History))
	fmt.Fprintf(&b, "Thought connections: %s\n", onOff(rec.ConnectionEnabled))
	if rec.Recommendation.Enabled {
		fmt.Fprintf(&b, "Recommendations: every %d day(s)", rec.Recommendation.IntervalDays)
		if rec.Recommendation.LastRun != nil {
			fmt.Fprintf(&b, ", last on %s", rec.Recommendation.LastRun.Format("2006-01-02"))
		}
	} else {
		b.WriteString("Recommendations: off")
	}
	return b.String(), nil
}

func (r *Router) reply(ctx context.Context, channelID, command, text string) error {
	if r.sink == nil || channelID == "" {
		return nil
	}
	err := r.sink.Send(ctx, delivery.Message{
		ChannelID:   channelID,
		Title:       "/" + command,
		Description: text,
		Color:       delivery.ColorNotice,
	})
	if err != nil {
		r.log.Warn("command reply failed", zap.String("command", command), zap.Error(err))
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
