package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
	"github.com/xaenox/astro-bot/internal/render"
	"github.com/xaenox/astro-bot/internal/storage"
)

// sender is the part of the Telegram API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	svc    *consultation.Service
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[int64]string
}

func New(token string, debug bool, svc *consultation.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug

	b := newBot(api, svc, logger)
	b.api = api
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	return b, nil
}

func newBot(s sender, svc *consultation.Service, logger *zap.Logger) *Bot {
	return &Bot{
		sender:   s,
		svc:      svc,
		logger:   logger,
		sessions: make(map[int64]string),
	}
}

// Start polls for updates until ctx is cancelled. Each message is handled in
// its own goroutine; Start waits for them before returning.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			wg.Add(1)
			go func(message *tgbotapi.Message) {
				defer wg.Done()
				b.handleMessage(ctx, message)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		b.sendMessage(message.Chat.ID, "I can only read text messages. Please describe your concern in words.")
		return
	}

	b.handleText(ctx, message, content)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start", "reset":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "stage":
		b.handleStage(ctx, message)
	case "profile":
		b.handleProfile(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) sessionID(chatID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[chatID]
	return id, ok
}

func (b *Bot) setSession(chatID int64, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[chatID] = id
}

func (b *Bot) forgetSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, chatID)
}

// startSession opens a fresh consultation for the chat and returns the
// welcome text.
func (b *Bot) startSession(ctx context.Context, chatID int64) (string, error) {
	session, _, err := b.svc.Start(ctx, "")
	if err != nil {
		return "", err
	}
	b.setSession(chatID, session.ID)

	b.logger.Info("Telegram consultation started",
		zap.Int64("chat_id", chatID),
		zap.String("session_id", session.ID))

	welcome, _ := session.LastMessage()
	return welcome.Text, nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	welcome, err := b.startSession(ctx, message.Chat.ID)
	if err != nil {
		b.logger.Error("Failed to start consultation",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't start a consultation. Please try again.")
		return
	}
	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Begin a new consultation
/reset - Forget this consultation and start over
/stage - Show how far the consultation has come
/profile - Show what I have learned about you
/help - Show this help message

Just write to me about what is troubling you, and I will guide you through the planetary influences.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleStage(ctx context.Context, message *tgbotapi.Message) {
	id, ok := b.sessionID(message.Chat.ID)
	if !ok {
		b.sendMessage(message.Chat.ID, "No consultation yet. Use /start to begin.")
		return
	}

	session, err := b.svc.Get(ctx, id)
	if err != nil {
		b.handleLookupError(message.Chat.ID, err)
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf("Stage: %s\nQuestions answered: %d", session.Stage, session.QuestionCount))
}

func (b *Bot) handleProfile(ctx context.Context, message *tgbotapi.Message) {
	id, ok := b.sessionID(message.Chat.ID)
	if !ok {
		b.sendMessage(message.Chat.ID, "No consultation yet. Use /start to begin.")
		return
	}

	session, err := b.svc.Get(ctx, id)
	if err != nil {
		b.handleLookupError(message.Chat.ID, err)
		return
	}

	if session.Profile.IsEmpty() {
		b.sendMessage(message.Chat.ID, "I don't know anything about you yet.")
		return
	}

	response := "*Your profile:*\n"
	for _, field := range session.Profile.Fields() {
		response += fmt.Sprintf("*%s:* %s\n", render.EscapeMarkdown(field[0]), render.EscapeMarkdown(field[1]))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send profile",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleLookupError(chatID int64, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		b.forgetSession(chatID)
		b.sendMessage(chatID, "Your consultation has expired. Use /start to begin a new one.")
		return
	}
	b.logger.Error("Failed to load consultation", zap.Error(err), zap.Int64("chat_id", chatID))
	b.sendErrorMessage(chatID, "Sorry, I couldn't load your consultation. Please try again.")
}

func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message, text string) {
	chatID := message.Chat.ID

	if _, err := b.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("Failed to send typing action", zap.Error(err), zap.Int64("chat_id", chatID))
	}

	exchange, err := b.submit(ctx, chatID, text)
	switch {
	case errors.Is(err, consultation.ErrMessageTooLong):
		b.sendErrorMessage(chatID, "Your message is too long. Please keep it shorter.")
		return
	case errors.Is(err, consultation.ErrEmptyMessage):
		b.sendErrorMessage(chatID, "Please write something about your concern.")
		return
	case err != nil:
		b.logger.Error("Failed to process message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Sorry, I couldn't process your message. Please try again.")
		return
	}

	b.sendReply(chatID, message.MessageID, exchange.Reply.Text)
}

// submit sends text to the chat's session, opening a new one when the chat
// has none or its session was swept.
func (b *Bot) submit(ctx context.Context, chatID int64, text string) (*consultation.Exchange, error) {
	id, ok := b.sessionID(chatID)
	if ok {
		exchange, err := b.svc.Submit(ctx, id, text)
		if !errors.Is(err, storage.ErrSessionNotFound) {
			return exchange, err
		}
		b.forgetSession(chatID)
	}

	session, exchange, err := b.svc.Start(ctx, text)
	if err != nil {
		return nil, err
	}
	b.setSession(chatID, session.ID)
	return exchange, nil
}

// sendReply sends an assistant reply as MarkdownV2 and falls back to plain
// text if Telegram rejects the markup.
func (b *Bot) sendReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, render.TelegramMarkdown(render.Parse(text)))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID

	_, err := b.sender.Send(msg)
	if err == nil {
		return
	}
	b.logger.Warn("Failed to send formatted reply, resending as plain text",
		zap.Error(err),
		zap.Int64("chat_id", chatID))

	plain := tgbotapi.NewMessage(chatID, text)
	plain.ReplyToMessageID = replyToID
	if _, err := b.sender.Send(plain); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
