// Package telegram отправляет сообщения через Telegram Bot API.
//
// Бот не может писать пользователю по username: chat id берется из
// getUpdates, поэтому пользователь должен хотя бы раз написать боту.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/bankrot-course/internal/config"
)

// ErrChatNotFound пользователь не писал боту, chat id неизвестен.
var ErrChatNotFound = errors.New("chat not found")

// Messenger клиент бота. Подключение (getMe) выполняется при первом вызове,
// неудачная попытка повторяется при следующем.
type Messenger struct {
	token    string
	endpoint string
	client   *http.Client
	log      *slog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// New создает Messenger. Пустой токен возвращает nil.
func New(cfg config.Telegram, log *slog.Logger) *Messenger {
	if cfg.BotToken == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &Messenger{
		token:    cfg.BotToken,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (m *Messenger) api() (*tgbotapi.BotAPI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bot != nil {
		return m.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(m.token, m.endpoint, m.client)
	if err != nil {
		return nil, err
	}
	m.log.Debug("telegram bot authorized", slog.String("bot", bot.Self.UserName))
	m.bot = bot
	return bot, nil
}

// NormalizeUsername убирает ведущий @ и пробелы.
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}

// FindChatID ищет среди последних обновлений бота сообщение от username
// (без учета регистра) и возвращает id отправителя.
func (m *Messenger) FindChatID(ctx context.Context, username string) (int64, error) {
	const op = "telegram.FindChatID"
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	bot, err := m.api()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	updates, err := bot.GetUpdates(tgbotapi.NewUpdate(0))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	name := NormalizeUsername(username)
	for _, u := range updates {
		if u.Message == nil || u.Message.From == nil {
			continue
		}
		if strings.EqualFold(u.Message.From.UserName, name) {
			return u.Message.From.ID, nil
		}
	}
	return 0, fmt.Errorf("%s: %s: %w", op, name, ErrChatNotFound)
}

// SendHTML отправляет сообщение с разметкой HTML.
func (m *Messenger) SendHTML(ctx context.Context, chatID int64, text string) error {
	const op = "telegram.SendHTML"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	bot, err := m.api()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
