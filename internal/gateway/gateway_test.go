package gateway

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/rahul/robodriver/internal/action"
	"github.com/rahul/robodriver/internal/agent"
)

func TestFormatResult(t *testing.T) {
	res := &agent.ExecutionResult{
		Status:    agent.StatusAborted,
		Reason:    agent.ReasonStepBudgetExhausted,
		Message:   "reached maximum steps (2) without completing goal",
		StepCount: 2,
		History: []agent.StepRecord{
			{Step: 1, Action: action.Navigate{URL: "https://example.com"}, Outcome: agent.Outcome{Success: true}},
			{Step: 2, Action: action.Click{Target: action.IndexTarget(4)}, Outcome: agent.Outcome{Success: false}},
		},
	}

	got := FormatResult(res)

	assert.True(t, strings.HasPrefix(got, "✗ reached maximum steps (2)"))
	assert.Contains(t, got, "Steps: 2 (stopped: step budget exhausted)")
	assert.Contains(t, got, "1. navigate https://example.com [ok]")
	assert.Contains(t, got, "2. click [4] [failed]")
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", truncateMessage("short", 10))
	got := truncateMessage(strings.Repeat("é", 30), 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	runner := &blockingRunner{release: release}
	d := NewDispatcher(runner, 1, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Execute(context.Background(), "goal")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, runner.peak)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.sem.Acquire(context.Background(), 1))
	_, err := d.Execute(ctx, "goal")
	assert.Error(t, err)
	d.sem.Release(1)
}

type blockingRunner struct {
	mu      sync.Mutex
	active  int
	peak    int
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, goal string, opts ...agent.RunOption) *agent.ExecutionResult {
	b.mu.Lock()
	b.active++
	if b.active > b.peak {
		b.peak = b.active
	}
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return &agent.ExecutionResult{Goal: goal, Status: agent.StatusFinished, Success: true, Message: "ok"}
}

type fakeBot struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	sent    []tgbotapi.MessageConfig
	stopped int
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped++
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.sent {
		out = append(out, m.Text)
	}
	return out
}

func TestTelegramGateway_RunsGoals(t *testing.T) {
	defer goleak.VerifyNone(t)

	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	runner := &fakeRunner{}
	tg := &TelegramGateway{Bot: bot, Dispatcher: NewDispatcher(runner, 1, nil), logger: zaptest.NewLogger(t)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Start(ctx) }()

	chat := &tgbotapi.Chat{ID: 42}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat, Text: "find the title of example.com"}}
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     chat,
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
	}}

	assert.Eventually(t, func() bool { return len(bot.texts()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	texts := bot.texts()
	assert.Contains(t, texts, "Working on it...")
	assert.Contains(t, texts, "Send me a goal, for example: find the price of a wireless mouse on amazon.com")
	assert.Contains(t, strings.Join(texts, "\n"), "✓ Example Domain")
	assert.Equal(t, []string{"find the title of example.com"}, runner.received())
	assert.Equal(t, 1, bot.stopped)

	require.NoError(t, tg.Stop())
	assert.Equal(t, 1, bot.stopped, "stopping twice must not close the updates twice")
}

func TestTelegramGateway_SendRejectsBadChat(t *testing.T) {
	tg := &TelegramGateway{Bot: &fakeBot{}}
	assert.Error(t, tg.Send("not-a-number", "hi"))
	assert.Error(t, tg.Send("0", "hi"))
}

func TestDiscordGoal(t *testing.T) {
	tests := []struct {
		name    string
		msg     *discordgo.Message
		want    string
		matched bool
	}{
		{name: "direct message", msg: &discordgo.Message{Content: " open example.com "}, want: "open example.com", matched: true},
		{name: "guild with prefix", msg: &discordgo.Message{GuildID: "g", Content: "!goal open example.com"}, want: "open example.com", matched: true},
		{name: "guild without prefix", msg: &discordgo.Message{GuildID: "g", Content: "open example.com"}},
		{name: "guild prefix lookalike", msg: &discordgo.Message{GuildID: "g", Content: "!goalkeeper"}},
		{name: "guild prefix only", msg: &discordgo.Message{GuildID: "g", Content: "!goal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := discordGoal(tt.msg)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeDiscord struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeDiscord) count(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[channelID])
}

func TestDiscordGateway_OnMessage(t *testing.T) {
	sender := &fakeDiscord{sent: map[string][]string{}}
	runner := &fakeRunner{}
	dg := &DiscordGateway{
		Dispatcher: NewDispatcher(runner, 1, nil),
		sender:     sender,
		selfID:     "bot",
		logger:     zaptest.NewLogger(t),
	}

	dg.onMessage(context.Background(), &discordgo.Message{ChannelID: "c1", Author: &discordgo.User{ID: "bot"}, Content: "loop"})
	dg.onMessage(context.Background(), &discordgo.Message{ChannelID: "c1", Author: &discordgo.User{ID: "other", Bot: true}, Content: "loop"})
	dg.onMessage(context.Background(), &discordgo.Message{ChannelID: "c2", Author: &discordgo.User{ID: "u1", Username: "ana"}, Content: "open example.com"})
	dg.wg.Wait()

	assert.Equal(t, 0, sender.count("c1"))
	require.Equal(t, 2, sender.count("c2"))
	assert.Equal(t, "Working on it...", sender.sent["c2"][0])
	assert.Contains(t, sender.sent["c2"][1], "✓ Example Domain")
	assert.Equal(t, []string{"open example.com"}, runner.received())
}
