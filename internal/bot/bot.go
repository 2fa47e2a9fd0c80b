package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/langsched/internal/excel"
	"github.com/example/langsched/internal/learning"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/internal/spaced_repetition"
	"github.com/example/langsched/pkg/models"
)

// MenuButton represents a button in the menu
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

// Learner is the part of the learning service the bot drives
type Learner interface {
	RegisterUser(ctx context.Context, id int64, username, firstName string) (*models.User, error)
	NextSession(ctx context.Context, userID int64, now time.Time) ([]queue.Item, error)
	RecordResponse(ctx context.Context, userID int64, objectID string, resp models.Response, now time.Time) (learning.Outcome, error)
	Stats(ctx context.Context, userID int64, now time.Time) (learning.Stats, error)
	SetLevel(ctx context.Context, userID int64, theta float64) (models.UserState, error)
	Forecast(item queue.Item, now time.Time) map[spaced_repetition.Rating]time.Time
}

// Reminder sends an on-demand reminder and returns the announced count
type Reminder interface {
	RunManualCheck(ctx context.Context, userID int64) (int, error)
}

// NotificationSettings updates reminder preferences
type NotificationSettings interface {
	UpdateNotificationSettings(ctx context.Context, id int64, enabled bool, hour int) error
}

// Bot represents the Telegram bot application
type Bot struct {
	api                *tgbotapi.BotAPI
	token              string
	learner            Learner
	settings           NotificationSettings
	objects            excel.ObjectSaver
	reminder           Reminder
	config             *BotConfig
	adminUserIDs       map[int64]bool
	now                func() time.Time
	mu                 sync.Mutex
	learningSessions   map[int64]*learningSession
	awaitingFileUpload map[int64]bool
}

// New creates a new bot instance
func New(token string, adminIDs []int64, learner Learner, settings NotificationSettings, objects excel.ObjectSaver) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	bot := &Bot{
		token:              token,
		learner:            learner,
		settings:           settings,
		objects:            objects,
		config:             DefaultConfig(),
		adminUserIDs:       make(map[int64]bool),
		now:                time.Now,
		learningSessions:   make(map[int64]*learningSession),
		awaitingFileUpload: make(map[int64]bool),
	}
	for _, id := range adminIDs {
		bot.adminUserIDs[id] = true
	}
	return bot, nil
}

// SetReminder enables the /remind command
func (b *Bot) SetReminder(r Reminder) {
	b.reminder = r
}

// Start authorizes the bot and handles updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %v", err)
	}

	b.api = botAPI
	log.Printf("Authorized on account %s", botAPI.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout

	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop(ctx context.Context) error {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	b.mu.Lock()
	active := len(b.learningSessions)
	b.learningSessions = make(map[int64]*learningSession)
	b.mu.Unlock()

	log.Printf("Bot stopped, %d active sessions dropped", active)
	return ctx.Err()
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(userID int64, count int) error {
	if b.api == nil {
		return fmt.Errorf("bot is not started")
	}

	// В Telegram user ID и chat ID совпадают для личных чатов
	chatID := userID

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("У вас %d %s для повторения! Нажмите «Начать занятие», чтобы продолжить.", count, wordForm(count)))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "▶️ Начать занятие", CallbackData: "start_session"}}})
	_, err := b.api.Send(msg)

	if err != nil {
		log.Printf("Error sending reminder to user %d: %v", userID, err)
	} else {
		log.Printf("Successfully sent reminder to user %d for %d words", userID, count)
	}

	return err
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserIDs[userID]
}

// send delivers a message and logs failures
func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// reply sends plain text with the main menu attached
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	b.send(msg)
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		message := update.Message
		if message.IsCommand() {
			b.handleCommand(ctx, message)
			return
		}
		if b.isAwaitingUpload(message.Chat.ID) && message.Document != nil {
			b.handleDocument(ctx, message)
			return
		}
		b.reply(message.Chat.ID, "Не понимаю. Используйте /menu, чтобы открыть меню.")
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// MainMenuButtons returns the buttons for the main menu
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "▶️ Начать занятие", CallbackData: "start_session"}},
		{{Text: "📊 Статистика", CallbackData: "show_stats"}},
	}
}

// errNoSession means the user has no live practice session
var errNoSession = errors.New("no active session")

// withSession runs fn on the user's live session under the bot lock
func (b *Bot) withSession(userID int64, fn func(s *learningSession) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.learningSessions[userID]
	if ok && s.Expired(b.now(), b.config.SessionTTL) {
		delete(b.learningSessions, userID)
		ok = false
	}
	if !ok {
		return errNoSession
	}
	return fn(s)
}

func (b *Bot) setSession(userID int64, s *learningSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s == nil {
		delete(b.learningSessions, userID)
		return
	}
	b.learningSessions[userID] = s
}

func (b *Bot) isAwaitingUpload(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingFileUpload[chatID]
}

func (b *Bot) setAwaitingUpload(chatID int64, waiting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if waiting {
		b.awaitingFileUpload[chatID] = true
	} else {
		delete(b.awaitingFileUpload, chatID)
	}
}
