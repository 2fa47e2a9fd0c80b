package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/langsched/internal/excel"
	"github.com/example/langsched/internal/learning"
	"github.com/example/langsched/internal/mastery"
	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/internal/spaced_repetition"
	"github.com/example/langsched/pkg/models"
)

const helpText = `Доступные команды:
/session - начать занятие
/stats - ваша статистика
/level - уровень (beginner, intermediate, advanced или число от -3 до 3)
/notify on|off [час] - напоминания
/remind - проверить, есть ли что повторить
/menu - главное меню`

// handleCommand dispatches a slash command
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.reply(chatID, helpText)
	case "menu":
		b.reply(chatID, "Главное меню - выберите действие:")
	case "session":
		b.startSession(ctx, chatID, userID)
	case "stats":
		b.handleStats(ctx, chatID, userID)
	case "level":
		b.handleLevel(ctx, chatID, userID, strings.TrimSpace(message.CommandArguments()))
	case "notify":
		b.handleNotify(ctx, chatID, userID, strings.Fields(message.CommandArguments()))
	case "remind":
		b.handleRemind(ctx, chatID, userID)
	case "import":
		// Admin-only command
		if !b.isAdmin(userID) {
			b.reply(chatID, "Эта команда доступна только администраторам.")
			return
		}
		b.setAwaitingUpload(chatID, true)
		b.reply(chatID, "Отправьте файл .xlsx или .csv с колонками: id, kind, content, translation, frequency, relational_density, contextual_contribution, irt_difficulty.")
	default:
		b.reply(chatID, "Неизвестная команда. Используйте /help.")
	}
}

// handleStart registers the user and greets them
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.learner.RegisterUser(ctx, message.From.ID, message.From.UserName, message.From.FirstName)
	if err != nil {
		log.Printf("Error registering user %d: %v", message.From.ID, err)
		b.reply(message.Chat.ID, "❌ Не удалось зарегистрироваться, попробуйте позже.")
		return
	}

	b.reply(message.Chat.ID, fmt.Sprintf("Привет, %s! 🎓\nЯ подбираю слова и грамматику по важности и по тому, что вы начинаете забывать.\n\n%s",
		user.FirstName, helpText))
}

// handleCallbackQuery handles button presses
func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	switch callback.Data {
	case "start_session":
		b.ack(callback, "")
		b.startSession(ctx, chatID, userID)
		return
	case "show_stats":
		b.ack(callback, "")
		b.handleStats(ctx, chatID, userID)
		return
	}

	action, objectID, verdict, err := parseCallback(callback.Data)
	if err != nil {
		log.Printf("Error parsing callback from user %d: %v", userID, err)
		b.ack(callback, "")
		return
	}

	switch action {
	case actionHint:
		b.handleHint(callback, objectID)
	case actionAnswer:
		b.handleAnswer(ctx, callback, objectID, verdict == verdictCorrect)
	case "level":
		b.ack(callback, "")
		b.handleLevel(ctx, chatID, userID, objectID)
	default:
		b.ack(callback, "")
	}
}

// ack answers a callback query so the client stops the spinner
func (b *Bot) ack(callback *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		log.Printf("Error answering callback: %v", err)
	}
}

// startSession builds a fresh session and asks the first item
func (b *Bot) startSession(ctx context.Context, chatID, userID int64) {
	now := b.now()
	items, err := b.learner.NextSession(ctx, userID, now)
	if err != nil {
		if shared.IsNotFound(err) {
			b.reply(chatID, "Сначала отправьте /start.")
			return
		}
		log.Printf("Error building session for user %d: %v", userID, err)
		b.reply(chatID, "❌ Не удалось собрать занятие, попробуйте позже.")
		return
	}
	if len(items) == 0 {
		b.reply(chatID, "🎉 Сейчас повторять нечего. Загляните позже!")
		return
	}

	b.setSession(userID, newLearningSession(items, now))
	b.reply(chatID, fmt.Sprintf("Занятие: %d %s.", len(items), wordForm(len(items))))
	b.askCurrent(chatID, userID)
}

// askCurrent sends the current item of the user's session
func (b *Bot) askCurrent(chatID, userID int64) {
	var (
		item queue.Item
		done bool
		cue  int
	)
	now := b.now()
	err := b.withSession(userID, func(s *learningSession) error {
		var ok bool
		item, ok = s.Current()
		done = !ok
		s.AskedAt = now
		s.Touched = now
		cue = s.CueLevel
		return nil
	})
	if err != nil {
		b.reply(chatID, "Сессия истекла. Отправьте /session.")
		return
	}
	if done {
		b.finishSession(chatID, userID)
		return
	}

	msg := tgbotapi.NewMessage(chatID, b.promptText(item, cue, now))
	msg.ReplyMarkup = createKeyboard(answerButtons(item.Object.ID, cue))
	b.send(msg)
}

// promptText renders the practice card with the review forecast
func (b *Bot) promptText(item queue.Item, cue int, now time.Time) string {
	text := formatPrompt(item, cue)
	if forecast := formatForecast(b.learner.Forecast(item, now)); forecast != "" {
		text += "\n" + forecast
	}
	return text
}

// handleHint reveals more scaffolding for the current item
func (b *Bot) handleHint(callback *tgbotapi.CallbackQuery, objectID string) {
	userID := callback.From.ID
	var (
		item queue.Item
		cue  int
	)
	err := b.withSession(userID, func(s *learningSession) error {
		current, ok := s.Current()
		if !ok || current.Object.ID != objectID {
			return errNoSession
		}
		item = current
		cue = s.RevealHint(b.now())
		return nil
	})
	if err != nil {
		b.ack(callback, "Эта карточка уже неактуальна")
		return
	}
	b.ack(callback, "")

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID,
		b.promptText(item, cue, b.now()), createKeyboard(answerButtons(objectID, cue)))
	b.send(edit)
}

// handleAnswer records an answer and moves on to the next item
func (b *Bot) handleAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery, objectID string, correct bool) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	now := b.now()

	var (
		item queue.Item
		resp models.Response
	)
	err := b.withSession(userID, func(s *learningSession) error {
		current, ok := s.Current()
		if !ok || current.Object.ID != objectID {
			return errNoSession
		}
		item = current
		resp = s.Answer(correct, now, b.config.MaxAnswerTime)
		return nil
	})
	if err != nil {
		b.ack(callback, "Эта карточка уже неактуальна")
		return
	}

	outcome, err := b.learner.RecordResponse(ctx, userID, objectID, resp, now)
	if err != nil {
		log.Printf("Error recording response of user %d for %s: %v", userID, objectID, err)
		b.ack(callback, "Ошибка сохранения ответа")
		return
	}
	b.ack(callback, "")

	// Remove buttons from the answered card
	edit := tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID, formatFeedback(item, resp, outcome))
	b.send(edit)

	b.askCurrent(chatID, userID)
}

// finishSession reports the result and drops the session
func (b *Bot) finishSession(chatID, userID int64) {
	var total, correct int
	_ = b.withSession(userID, func(s *learningSession) error {
		total, correct = len(s.Items), s.Correct
		return nil
	})
	b.setSession(userID, nil)
	b.reply(chatID, fmt.Sprintf("✅ Занятие завершено: %d из %d верно.", correct, total))
}

// handleStats shows queue and stage statistics
func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	stats, err := b.learner.Stats(ctx, userID, b.now())
	if err != nil {
		if shared.IsNotFound(err) {
			b.reply(chatID, "Сначала отправьте /start.")
			return
		}
		log.Printf("Error getting stats for user %d: %v", userID, err)
		b.reply(chatID, "❌ Не удалось получить статистику.")
		return
	}
	b.reply(chatID, formatStats(stats))
}

// handleLevel sets the learner's ability by level name or theta
func (b *Bot) handleLevel(ctx context.Context, chatID, userID int64, arg string) {
	if arg == "" {
		msg := tgbotapi.NewMessage(chatID, "Выберите уровень:")
		msg.ReplyMarkup = createKeyboard([][]MenuButton{{
			{Text: "🌱 Beginner", CallbackData: "level:" + string(priority.Beginner)},
			{Text: "🌿 Intermediate", CallbackData: "level:" + string(priority.Intermediate)},
			{Text: "🌳 Advanced", CallbackData: "level:" + string(priority.Advanced)},
		}})
		b.send(msg)
		return
	}

	theta, err := parseLevelArg(arg)
	if err != nil {
		b.reply(chatID, "Уровень: beginner, intermediate, advanced или число от -3 до 3.")
		return
	}

	state, err := b.learner.SetLevel(ctx, userID, theta)
	switch {
	case shared.IsDataError(err):
		b.reply(chatID, "Уровень должен быть в диапазоне от -3 до 3.")
		return
	case shared.IsNotFound(err):
		b.reply(chatID, "Сначала отправьте /start.")
		return
	case err != nil:
		log.Printf("Error setting level for user %d: %v", userID, err)
		b.reply(chatID, "❌ Не удалось сохранить уровень.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Уровень: %s (θ = %.1f)", priority.InferLevel(state.Theta), state.Theta))
}

// parseLevelArg accepts a level name or a theta value
func parseLevelArg(arg string) (float64, error) {
	if level, err := priority.ParseLevel(strings.ToLower(arg)); err == nil {
		return priority.ThetaForLevel(level)
	}
	return strconv.ParseFloat(strings.Replace(arg, ",", ".", 1), 64)
}

// handleRemind checks the user's queue now and sends a reminder when reviews are due
func (b *Bot) handleRemind(ctx context.Context, chatID, userID int64) {
	if b.reminder == nil {
		b.reply(chatID, "Напоминания отключены.")
		return
	}
	count, err := b.reminder.RunManualCheck(ctx, userID)
	switch {
	case shared.IsNotFound(err):
		b.reply(chatID, "Сначала отправьте /start.")
	case err != nil:
		log.Printf("Error running manual reminder for user %d: %v", userID, err)
		b.reply(chatID, "❌ Не удалось проверить очередь.")
	case count == 0:
		b.reply(chatID, "🎉 Сейчас повторять нечего. Загляните позже!")
	}
}

// handleNotify toggles reminders: /notify on 19, /notify off
func (b *Bot) handleNotify(ctx context.Context, chatID, userID int64, args []string) {
	enabled, hour, err := parseNotifyArgs(args)
	if err != nil {
		b.reply(chatID, "Использование: /notify on [час 0-23] или /notify off")
		return
	}
	if err := b.settings.UpdateNotificationSettings(ctx, userID, enabled, hour); err != nil {
		if shared.IsNotFound(err) {
			b.reply(chatID, "Сначала отправьте /start.")
			return
		}
		log.Printf("Error updating notifications for user %d: %v", userID, err)
		b.reply(chatID, "❌ Не удалось сохранить настройки.")
		return
	}
	if enabled {
		b.reply(chatID, fmt.Sprintf("🔔 Напоминания включены на %02d:00 (UTC).", hour))
	} else {
		b.reply(chatID, "🔕 Напоминания выключены.")
	}
}

func parseNotifyArgs(args []string) (enabled bool, hour int, err error) {
	hour = learning.DefaultNotificationHour
	if len(args) == 0 {
		return false, 0, errors.New("missing argument")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return false, 0, fmt.Errorf("unknown argument %q", args[0])
	}
	if len(args) > 1 {
		hour, err = strconv.Atoi(args[1])
		if err != nil || hour < 0 || hour > 23 {
			return false, 0, fmt.Errorf("invalid hour %q", args[1])
		}
	}
	return enabled, hour, nil
}

// handleDocument imports an uploaded signal file
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) {
	b.setAwaitingUpload(message.Chat.ID, false)

	doc := message.Document
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		b.reply(message.Chat.ID, "Поддерживаются только файлы .xlsx и .csv.")
		return
	}

	path, err := b.download(doc.FileID, ext)
	if err != nil {
		log.Printf("Error downloading %s: %v", doc.FileName, err)
		b.reply(message.Chat.ID, "❌ Не удалось скачать файл.")
		return
	}
	defer os.Remove(path)

	config := excel.DefaultImportConfig()
	config.FilePath = path
	result, err := excel.ImportObjects(ctx, config, b.objects)
	if err != nil {
		b.reply(message.Chat.ID, fmt.Sprintf("❌ Ошибка импорта: %v", err))
		return
	}
	b.reply(message.Chat.ID, formatImportResult(result))
}

// download saves a Telegram file to a temporary path
func (b *Bot) download(fileID, ext string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "import-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// answerButtons builds the keyboard of a practice card
func answerButtons(objectID string, cue int) [][]MenuButton {
	rows := [][]MenuButton{{
		{Text: "✅ Знаю", CallbackData: answerData(objectID, verdictCorrect)},
		{Text: "❌ Не знаю", CallbackData: answerData(objectID, verdictIncorrect)},
	}}
	if cue < mastery.MaxCueLevel {
		rows = append(rows, []MenuButton{{Text: "💡 Подсказка", CallbackData: hintData(objectID)}})
	}
	return rows
}

// formatPrompt renders a practice card
func formatPrompt(item queue.Item, cue int) string {
	var sb strings.Builder
	sb.WriteString("📖 " + item.Object.Content + "\n")

	stage := models.StageUnknown
	if item.Mastery != nil {
		stage = item.Mastery.Stage
	}
	sb.WriteString(fmt.Sprintf("(%s · %s)", item.Object.Kind, stageLabel(stage)))

	if hint := formatHint(item.Object.Translation, cue); hint != "" {
		sb.WriteString("\n💡 " + hint)
	}
	return sb.String()
}

// formatForecast shows when the item comes back after a correct or a wrong answer
func formatForecast(forecast map[spaced_repetition.Rating]time.Time) string {
	good, okGood := forecast[spaced_repetition.Good]
	again, okAgain := forecast[spaced_repetition.Again]
	if !okGood || !okAgain {
		return ""
	}
	return fmt.Sprintf("🗓 ✅ %s · ❌ %s", good.Format("02.01"), again.Format("02.01"))
}

// formatFeedback renders an answered card
func formatFeedback(item queue.Item, resp models.Response, outcome learning.Outcome) string {
	var sb strings.Builder
	mark := "✅"
	if !resp.Correct {
		mark = "❌"
	}
	sb.WriteString(fmt.Sprintf("%s %s", mark, item.Object.Content))
	if item.Object.Translation != "" {
		sb.WriteString(" - " + item.Object.Translation)
	}
	if outcome.Transition.Changed() {
		sb.WriteString(fmt.Sprintf("\n%s → %s", stageLabel(outcome.Transition.From), stageLabel(outcome.Transition.To)))
	}
	sb.WriteString("\nСледующее повторение: " + outcome.NextReview.Format("02.01.2006"))
	return sb.String()
}

// formatStats renders the /stats reply
func formatStats(stats learning.Stats) string {
	var sb strings.Builder
	sb.WriteString("📊 Ваша статистика:\n")
	sb.WriteString(fmt.Sprintf("Всего в программе: %d\n", stats.Queue.Total))
	sb.WriteString(fmt.Sprintf("К повторению: %d\n", stats.Queue.Due))
	sb.WriteString(fmt.Sprintf("Новых: %d\n", stats.Queue.New))
	sb.WriteString(fmt.Sprintf("Освоено: %d\n", stats.Mastered))

	if len(stats.Stages) > 0 {
		sb.WriteString("\nПо стадиям:\n")
		for s := models.StageUnknown; s <= models.StageAutomatic; s++ {
			if n := stats.Stages[s]; n > 0 {
				sb.WriteString(fmt.Sprintf("%s: %d\n", stageLabel(s), n))
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatImportResult renders an import summary
func formatImportResult(result *excel.ImportResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Импорт завершён:\n- Обработано: %d\n- Добавлено: %d\n- Обновлено: %d\n- Отклонено: %d\n",
		result.TotalProcessed, result.Created, result.Updated, result.Skipped))

	if len(result.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\n❌ Ошибки (%d):\n", len(result.Errors)))
		for i, e := range result.Errors {
			// Telegram messages are limited to 4096 characters
			if i == 20 {
				sb.WriteString(fmt.Sprintf("... и ещё %d\n", len(result.Errors)-i))
				break
			}
			sb.WriteString("- " + e + "\n")
		}
	}
	return sb.String()
}
