// Package bot is the Telegram front end for study sessions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/wordwindow/internal/quiz"
	"github.com/example/wordwindow/internal/session"
	"github.com/example/wordwindow/internal/storage"
)

// Callback data prefixes and values
const (
	answerPrefix    = "ans:"
	callbackStudy   = "study"
	callbackChoice  = "choice"
	callbackStats   = "stats"
	callbackWindow  = "window"
	callbackKnown   = "known"
	callbackIKnowIt = "iknow"
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

// sender is the part of the Telegram API the bot talks to
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// chatState is what the bot remembers about one chat
type chatState struct {
	Language string
	Pending  *quiz.Question
}

// Bot represents the Telegram bot application
type Bot struct {
	api      sender
	updates  func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stop     func()
	sessions *session.Manager
	config   *BotConfig
	logger   *slog.Logger

	mu    sync.Mutex
	chats map[int64]*chatState
	rnd   *rand.Rand
}

// New creates a bot authorized with the given token
func New(token string, sessions *session.Manager, config *BotConfig, logger *slog.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	b := newBot(botAPI, sessions, config, logger)
	b.updates = botAPI.GetUpdatesChan
	b.stop = botAPI.StopReceivingUpdates
	b.logger.Info("authorized on account", "username", botAPI.Self.UserName)
	return b, nil
}

func newBot(api sender, sessions *session.Manager, config *BotConfig, logger *slog.Logger) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:      api,
		sessions: sessions,
		config:   config,
		logger:   logger.With("component", "bot"),
		chats:    make(map[int64]*chatState),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start receives updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.updates == nil {
		return errors.New("bot is not connected")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.updates(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.stop()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	switch message.Command() {
	case "start", "menu":
		b.handleStartCommand(chatID)
	case "study":
		b.askQuestion(ctx, chatID, quiz.TextInput)
	case "choice":
		b.askQuestion(ctx, chatID, quiz.MultipleChoice)
	case "known":
		b.handleKnownCommand(chatID)
	case "stats":
		b.handleStatsCommand(chatID)
	case "window":
		b.handleWindowCommand(chatID)
	case "language":
		b.handleLanguageCommand(chatID, message.CommandArguments())
	default:
		b.reply(chatID, "Unknown command. Use /menu to show the main menu.", true)
	}
}

// handleStartCommand handles the /start command
func (b *Bot) handleStartCommand(chatID int64) {
	welcomeText := `Welcome to Word Window! 🎓

Available commands:
/study - Type the translation of a word
/choice - Pick the translation from options
/known - List the words you know
/stats - Show your statistics
/window - Show the words you are studying
/language <name> - Switch language (now: ` + b.language(chatID) + `)`
	b.reply(chatID, welcomeText, true)
}

// handleLanguageCommand switches the pool the chat studies
func (b *Bot) handleLanguageCommand(chatID int64, arg string) {
	lang, ok := matchLanguage(b.config.Languages, arg)
	if !ok {
		b.reply(chatID, "Usage: /language <name>\nAvailable: "+strings.Join(b.config.Languages, ", "), false)
		return
	}
	b.mu.Lock()
	st := b.chatLocked(chatID)
	st.Language = lang
	st.Pending = nil
	b.mu.Unlock()
	b.reply(chatID, "Language set to "+lang+".", true)
}

// askQuestion samples the window and sends the next flashcard
func (b *Bot) askQuestion(ctx context.Context, chatID int64, kind quiz.QuestionType) {
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}
	sample, err := s.RandomWords(b.config.SampleSize)
	if err != nil {
		b.fail(chatID, "sample words", err)
		return
	}
	if len(sample) == 0 {
		b.reply(chatID, "Nothing left to study in "+s.Language+". 🎉", true)
		return
	}

	builder := quiz.NewBuilder(s.Policy(), b.config.ChoiceOptions, b.newRand())
	q := builder.TextInput(sample[0])
	if kind == quiz.MultipleChoice {
		q, _ = builder.FromSample(sample)
	}

	b.mu.Lock()
	b.chatLocked(chatID).Pending = &q
	b.mu.Unlock()

	msg := tgbotapi.NewMessage(chatID, formatQuestion(q))
	msg.ReplyMarkup = createKeyboard(questionButtons(q))
	b.send(msg)
}

// handleText treats free text as the answer to the pending question
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	q := b.takePending(chatID)
	if q == nil {
		b.reply(chatID, "I don't understand. Use /study to get a word.", true)
		return
	}
	b.answer(ctx, chatID, *q, strings.TrimSpace(message.Text))
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}

	switch data := callback.Data; {
	case data == callbackStudy:
		b.askQuestion(ctx, chatID, quiz.TextInput)
	case data == callbackChoice:
		b.askQuestion(ctx, chatID, quiz.MultipleChoice)
	case data == callbackStats:
		b.handleStatsCommand(chatID)
	case data == callbackWindow:
		b.handleWindowCommand(chatID)
	case data == callbackKnown:
		b.handleKnownCommand(chatID)
	case data == callbackIKnowIt:
		b.markPendingKnown(ctx, chatID)
	case strings.HasPrefix(data, answerPrefix):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, answerPrefix))
		if err != nil {
			b.logger.Warn("bad answer callback", "data", data)
			return
		}
		q := b.takePending(chatID)
		if q == nil {
			b.reply(chatID, "This question has expired. Use /choice for a new one.", true)
			return
		}
		text, ok := q.Option(idx)
		if !ok {
			b.reply(chatID, "This question has expired. Use /choice for a new one.", true)
			return
		}
		b.answer(ctx, chatID, *q, text)
	}
}

// answer grades the pending question and asks the next one of the same kind
func (b *Bot) answer(ctx context.Context, chatID int64, q quiz.Question, text string) {
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}
	out, err := s.Check(ctx, q.Word.Foreign, text)
	if err != nil {
		b.fail(chatID, "check answer", err)
		return
	}
	b.reply(chatID, formatOutcome(out.Correct, out.BecameKnown, s.Policy().Expected(&out.Word)), false)
	b.askQuestion(ctx, chatID, q.QuestionType)
}

// markPendingKnown retires the pending word without answering it
func (b *Bot) markPendingKnown(ctx context.Context, chatID int64) {
	q := b.takePending(chatID)
	if q == nil {
		b.reply(chatID, "There is no word to mark.", true)
		return
	}
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}
	if _, err := s.MarkKnown(ctx, q.Word.Foreign); err != nil {
		b.fail(chatID, "mark known", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("👍 %s marked as known.", q.Word.Foreign), false)
	b.askQuestion(ctx, chatID, q.QuestionType)
}

func (b *Bot) handleKnownCommand(chatID int64) {
	s, ok := b.session(context.Background(), chatID)
	if !ok {
		return
	}
	words, err := s.KnownWords()
	if err != nil {
		b.fail(chatID, "list known words", err)
		return
	}
	b.reply(chatID, formatKnown(words), true)
}

func (b *Bot) handleStatsCommand(chatID int64) {
	s, ok := b.session(context.Background(), chatID)
	if !ok {
		return
	}
	stats, err := s.Stats()
	if err != nil {
		b.fail(chatID, "get statistics", err)
		return
	}
	b.reply(chatID, formatStats(s.Language, stats), true)
}

func (b *Bot) handleWindowCommand(chatID int64) {
	s, ok := b.session(context.Background(), chatID)
	if !ok {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		b.fail(chatID, "show window", err)
		return
	}
	b.reply(chatID, formatWindow(snap), true)
}

// session returns the chat's live session, starting one if it was evicted.
// On failure the chat has already been told.
func (b *Bot) session(ctx context.Context, chatID int64) (*session.Session, bool) {
	user, lang := userName(chatID), b.language(chatID)
	s, err := b.sessions.Get(session.PersonalID(user, lang))
	if errors.Is(err, session.ErrSessionNotFound) {
		s, err = b.sessions.StartPersonal(ctx, user, lang, session.Overrides{})
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.reply(chatID, "There are no words for "+lang+" yet. Try /language to pick another one.", false)
		return nil, false
	case err != nil:
		b.fail(chatID, "start session", err)
		return nil, false
	}
	return s, true
}

func (b *Bot) language(chatID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chatLocked(chatID).Language
}

func (b *Bot) takePending(chatID int64) *quiz.Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.chatLocked(chatID)
	q := st.Pending
	st.Pending = nil
	return q
}

// chatLocked must be called with b.mu held
func (b *Bot) chatLocked(chatID int64) *chatState {
	st, ok := b.chats[chatID]
	if !ok {
		st = &chatState{Language: b.config.DefaultLanguage}
		b.chats[chatID] = st
	}
	return st
}

func (b *Bot) newRand() *rand.Rand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return rand.New(rand.NewSource(b.rnd.Int63()))
}

func (b *Bot) reply(chatID int64, text string, withMenu bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if withMenu {
		msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	}
	b.send(msg)
}

func (b *Bot) fail(chatID int64, action string, err error) {
	b.logger.Error("failed to "+action, "chat_id", chatID, "error", err)
	b.reply(chatID, "❌ Something went wrong, please try again.", true)
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", "chat_id", msg.ChatID, "error", err)
	}
}

// userName is the pool owner name of a Telegram chat
func userName(chatID int64) string {
	return "tg" + strconv.FormatInt(chatID, 10)
}

func matchLanguage(languages []string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, l := range languages {
		if strings.EqualFold(l, name) {
			return l, true
		}
	}
	return "", false
}
