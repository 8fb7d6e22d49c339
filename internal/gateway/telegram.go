package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const telegramMessageLimit = 4096

// telegramBot is the part of *tgbotapi.BotAPI the gateway uses.
type telegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type TelegramGateway struct {
	Bot        telegramBot
	Dispatcher *Dispatcher
	logger     *zap.Logger
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func NewTelegramGateway(token string, dispatcher *Dispatcher, logger *zap.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("Telegram authorized", zap.String("account", bot.Self.UserName))

	return &TelegramGateway{
		Bot:        bot,
		Dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)
	defer tg.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return tg.Stop()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
				continue
			}
			tg.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer tg.wg.Done()
				tg.handle(ctx, msg)
			}(update.Message)
		}
	}
}

func (tg *TelegramGateway) handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	user := ""
	if msg.From != nil {
		user = msg.From.UserName
	}
	log := tg.logger.With(zap.String("chat_id", chatID), zap.String("user", user))

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			tg.reply(log, chatID, "Send me a goal, for example: find the price of a wireless mouse on amazon.com")
			return
		case "goal":
			msg.Text = msg.CommandArguments()
		default:
			tg.reply(log, chatID, fmt.Sprintf("Unknown command /%s", msg.Command()))
			return
		}
	}
	goal := strings.TrimSpace(msg.Text)
	if goal == "" {
		tg.reply(log, chatID, "Please include a goal.")
		return
	}

	log.Info("Goal received", zap.String("goal", goal))
	tg.reply(log, chatID, "Working on it...")

	res, err := tg.Dispatcher.Execute(ctx, goal)
	if err != nil {
		log.Warn("Goal not started", zap.Error(err))
		return
	}
	tg.reply(log, chatID, FormatResult(res))
}

func (tg *TelegramGateway) reply(log *zap.Logger, chatID, text string) {
	if err := tg.Send(chatID, text); err != nil {
		log.Error("Failed to send Telegram message", zap.Error(err))
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, truncateMessage(text, telegramMessageLimit))
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.stopOnce.Do(tg.Bot.StopReceivingUpdates)
	return nil
}
