package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexanderramin/noise/internal/bot"
	"github.com/alexanderramin/noise/internal/connection"
	"github.com/alexanderramin/noise/internal/delivery"
	"github.com/alexanderramin/noise/internal/repository"
	"github.com/alexanderramin/noise/internal/service"
	"github.com/alexanderramin/noise/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestParseConsoleLine(t *testing.T) {
	tests := []struct {
		line       string
		wantMember string
		wantText   string
	}{
		{"ana> hello there", "ana", "hello there"},
		{"ana>/status", "ana", "/status"},
		{"just a thought", "console", "just a thought"},
		{"a b> not a member id", "console", "a b> not a member id"},
		{"> empty id", "console", "> empty id"},
		{"x > y", "console", "x > y"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			member, text := ParseConsoleLine(tt.line, "console")
			assert.Equal(t, tt.wantMember, member)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestRunConsole_RoutesEachLine(t *testing.T) {
	repo := repository.NewSQLiteMemberRepo(testutil.NewTestDB(t))
	live := connection.NewLive(connection.DefaultSettings())
	rnd := connection.NewRand(1)
	messages := service.NewMessageService(service.MessageDeps{
		Members: repo,
		Trigger: connection.NewTriggerPolicy(live, rnd),
		Matcher: connection.NewMatcher(live, rnd),
	})
	sink := &delivery.RecordingSink{}
	router := bot.NewRouter(messages, service.NewSettingsService(repo), sink, nil)

	in := strings.NewReader("ana> morning pages\n\nbo> /status\nloose line\n")
	require.NoError(t, runConsole(context.Background(), in, router, "console", zaptest.NewLogger(t)))

	ids, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "console"}, ids, "commands are not recorded")

	ana, err := repo.Get(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "times-ana", ana.ChannelID)

	msgs := sink.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "times-bo", msgs[0].ChannelID)
}

// Drives the real command tree against a file store.
func TestRootCmd_ConsoleThenMemberShow(t *testing.T) {
	t.Setenv("NOISE_CONFIG", "")
	t.Setenv("NOISE_GEMINI_API_KEY", "")
	t.Setenv("NOISE_SEARCH_API_KEY", "")
	t.Setenv("NOISE_DISCORD_TOKEN", "")
	store := filepath.Join(t.TempDir(), "members.json")

	run := func(stdin string, args ...string) string {
		t.Helper()
		root := NewRootCmd()
		var out bytes.Buffer
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"--backend", "file", "--store", store, "--log-level", "error"}, args...))
		require.NoError(t, root.ExecuteContext(context.Background()))
		return out.String()
	}

	out := run("ana> first thought about AI\nana> /status\n", "console", "--no-scheduler")
	assert.Contains(t, out, "== /status ==")

	out = run("", "member", "show", "ana")
	assert.Contains(t, out, "MEMBER ANA")
	assert.Contains(t, out, "first thought about AI")

	out = run("", "member", "list")
	assert.Contains(t, out, "ana")
}

// The scheduler must be stopped before pending tasks are drained.
func TestRootCmd_ConsoleStopsSchedulerBeforeExit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	t.Setenv("NOISE_CONFIG", "")
	t.Setenv("NOISE_GEMINI_API_KEY", "")
	t.Setenv("NOISE_SEARCH_API_KEY", "")
	t.Setenv("NOISE_DISCORD_TOKEN", "")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader("ana> a thought\nana> /recommend on 1\n"))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--backend", "file", "--store", filepath.Join(t.TempDir(), "m.json"), "--log-level", "error", "console"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "== /recommend ==")
}

func TestMemberShow_UnknownMember(t *testing.T) {
	t.Setenv("NOISE_CONFIG", "")
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--backend", "file", "--store", filepath.Join(t.TempDir(), "m.json"), "member", "show", "ghost"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data yet")
}
