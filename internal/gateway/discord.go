package gateway

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	discordMessageLimit = 2000
	discordGoalPrefix   = "!goal"
)

type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordGateway accepts goals from direct messages, and from guild channels
// when prefixed with !goal.
type DiscordGateway struct {
	Session    *discordgo.Session
	Dispatcher *Dispatcher
	sender     discordSender
	selfID     string
	logger     *zap.Logger
	wg         sync.WaitGroup
}

func NewDiscordGateway(token string, dispatcher *Dispatcher, logger *zap.Logger) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return &DiscordGateway{
		Session:    s,
		Dispatcher: dispatcher,
		sender:     s,
		logger:     logger,
	}, nil
}

func (dg *DiscordGateway) Start(ctx context.Context) error {
	remove := dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		dg.onMessage(ctx, m.Message)
	})
	defer remove()

	if err := dg.Session.Open(); err != nil {
		return err
	}
	if dg.Session.State != nil && dg.Session.State.User != nil {
		dg.selfID = dg.Session.State.User.ID
		dg.logger.Info("Discord connected", zap.String("account", dg.Session.State.User.Username))
	}

	<-ctx.Done()
	err := dg.Stop()
	dg.wg.Wait()
	return err
}

func (dg *DiscordGateway) onMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == dg.selfID {
		return
	}
	goal, ok := discordGoal(m)
	if !ok {
		return
	}

	dg.wg.Add(1)
	go func() {
		defer dg.wg.Done()
		dg.handle(ctx, m.ChannelID, m.Author.Username, goal)
	}()
}

// discordGoal extracts the goal from m. Guild messages need the prefix.
func discordGoal(m *discordgo.Message) (string, bool) {
	text := strings.TrimSpace(m.Content)
	if m.GuildID != "" {
		rest, found := strings.CutPrefix(text, discordGoalPrefix)
		if !found || (rest != "" && rest[0] != ' ' && rest[0] != '\n') {
			return "", false
		}
		text = strings.TrimSpace(rest)
	}
	return text, text != ""
}

func (dg *DiscordGateway) handle(ctx context.Context, channelID, user, goal string) {
	log := dg.logger.With(zap.String("channel_id", channelID), zap.String("user", user))
	log.Info("Goal received", zap.String("goal", goal))

	dg.reply(log, channelID, "Working on it...")
	res, err := dg.Dispatcher.Execute(ctx, goal)
	if err != nil {
		log.Warn("Goal not started", zap.Error(err))
		return
	}
	dg.reply(log, channelID, FormatResult(res))
}

func (dg *DiscordGateway) reply(log *zap.Logger, channelID, text string) {
	if err := dg.Send(channelID, text); err != nil {
		log.Error("Failed to send Discord message", zap.Error(err))
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, err := dg.sender.ChannelMessageSend(chatID, truncateMessage(text, discordMessageLimit))
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
