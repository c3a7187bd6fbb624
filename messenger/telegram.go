package messenger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v3"
)

// TelegramConfig holds the bot credentials and target chats.
type TelegramConfig struct {
	Token        string
	LogChatID    int64
	ResultChatID int64

	// APIURL overrides the Bot API endpoint. Empty means the public API.
	APIURL string
	// Client overrides the HTTP client used by the bot.
	Client *http.Client
}

// Telegram is a Transport posting through the Telegram Bot API.
type Telegram struct {
	bot        *tele.Bot
	logChat    tele.ChatID
	resultChat tele.ChatID
}

// NewTelegram creates a send-only bot. No updates are polled.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Telegram{
		bot:        b,
		logChat:    tele.ChatID(cfg.LogChatID),
		resultChat: tele.ChatID(cfg.ResultChatID),
	}, nil
}

func (t *Telegram) SendLog(ctx context.Context, text string) error {
	return t.send(ctx, t.logChat, text)
}

func (t *Telegram) SendResult(ctx context.Context, text string) error {
	return t.send(ctx, t.resultChat, text)
}

func (t *Telegram) send(ctx context.Context, chat tele.ChatID, text string) error {
	for _, chunk := range Split(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(chat, chunk, tele.ModeMarkdown, tele.NoPreview); err != nil {
			return fmt.Errorf("telegram send to %d: %w", int64(chat), err)
		}
	}
	return nil
}
