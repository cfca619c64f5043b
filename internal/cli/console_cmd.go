package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alexanderramin/noise/internal/bot"
	"github.com/alexanderramin/noise/internal/cli/formatter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ParseConsoleLine splits "member> text" into its parts. Lines without the
// separator belong to defaultMember.
func ParseConsoleLine(line, defaultMember string) (memberID, text string) {
	if id, rest, ok := strings.Cut(line, ">"); ok && id != "" && !strings.ContainsAny(id, " \t") {
		return id, strings.TrimSpace(rest)
	}
	return defaultMember, strings.TrimSpace(line)
}

func newConsoleCmd(g *globalFlags) *cobra.Command {
	var member string
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Drive the bot from stdin, one \"member> text\" line at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := g.openApp(ctx, consoleSink(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer closeApp(ctx, app)

			stopScheduler := func() {}
			if !noScheduler {
				sctx, stop := context.WithCancel(ctx)
				done := make(chan struct{})
				go func() {
					defer close(done)
					_ = app.Scheduler.Run(sctx)
				}()
				stopScheduler = func() {
					stop()
					<-done
				}
			}

			fmt.Fprintln(cmd.ErrOrStderr(), formatter.Dim("type \"member> message\" or \"member> /status\"; Ctrl-D to quit"))
			err = runConsole(ctx, cmd.InOrStdin(), app.Router, member, app.Log)
			// No new tasks may start once Drain is waiting.
			stopScheduler()
			if err != nil {
				return err
			}
			// Let pending connections finish rendering before exit.
			return app.Tasks.Drain(ctx)
		},
	}
	cmd.Flags().StringVar(&member, "member", "console", "Member id for lines without a \"member>\" prefix")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not run the recommendation scheduler")
	return cmd
}

func runConsole(ctx context.Context, in io.Reader, router *bot.Router, defaultMember string, log *zap.Logger) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		memberID, text := ParseConsoleLine(line, defaultMember)
		inbound := bot.Inbound{MemberID: memberID, ChannelID: "times-" + memberID, Text: text}
		if _, err := router.Handle(ctx, inbound); err != nil {
			log.Error("console message failed", zap.String("member_id", memberID), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}
