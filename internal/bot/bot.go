// Package bot is the thin Telegram delivery surface over the session engine.
// It holds no scheduling logic; it renders queue items and routes answers.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/lingobot/internal/access"
	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/internal/rounds"
	"github.com/example/lingobot/internal/session"
)

// MenuButton represents a button in an inline menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot represents the Telegram bot application
type Bot struct {
	api      *tgbotapi.BotAPI
	manager  *session.Manager
	gate     *access.Gate
	rounds   *rounds.Evaluator
	users    *database.UserRepository
	records  *database.MemoryRecordRepository
	entities *database.EntityRepository
	skips    *database.SkipRepository
	log      *zap.Logger

	// Per-chat live state; one session per user, discarded at session end.
	// Only the update loop goroutine touches these maps; Stop waits for the
	// loop to exit before flushing them.
	sessions map[int64]*session.Session
	exams    map[int64]*examState

	loopDone chan struct{}
}

// New creates a new bot instance
func New(cfg *config.Config, manager *session.Manager, gate *access.Gate, evaluator *rounds.Evaluator, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return &Bot{
		api:      api,
		manager:  manager,
		gate:     gate,
		rounds:   evaluator,
		users:    database.NewUserRepository(),
		records:  database.NewMemoryRecordRepository(),
		entities: database.NewEntityRepository(),
		skips:    database.NewSkipRepository(),
		log:      log,
		sessions: make(map[int64]*session.Session),
		exams:    make(map[int64]*examState),
		loopDone: make(chan struct{}),
	}, nil
}

// Start begins processing updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	defer close(b.loopDone)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop shuts down update processing and flushes any live sessions so partial
// progress is preserved. It waits for the update loop to exit before touching
// session state; the loop owns the session map while it runs.
func (b *Bot) Stop(ctx context.Context) error {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}

	select {
	case <-b.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	for userID, sess := range b.sessions {
		sess.Abandon(ctx)
		delete(b.sessions, userID)
	}
	return nil
}

// SendReminder implements scheduler.Notifier.
func (b *Bot) SendReminder(userID int64, dueCount int) error {
	text := fmt.Sprintf("You have %d items due for review. Send /today to start.", dueCount)
	_, err := b.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
