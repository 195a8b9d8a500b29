// ABOUTME: Telegram bridge connecting bot updates to the admission controller.
// ABOUTME: Handles commands, model selection callbacks, and reply delivery.

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heliomancer/aplmint/internal/admission"
	"github.com/heliomancer/aplmint/internal/models"
)

// modelCallbackPrefix marks inline keyboard callbacks carrying a model
// selection.
const modelCallbackPrefix = "model_"

// Handler is what the bridge needs from the admission layer.
type Handler interface {
	Handle(ctx context.Context, req *admission.Request) admission.Outcome
}

// Bridge connects a Telegram bot account to the admission controller. It
// long-polls for updates and handles each one in its own goroutine; the
// admission controller, not the bridge, serializes per-user work.
type Bridge struct {
	bot        *tgbotapi.BotAPI
	handler    Handler
	prefs      *models.Prefs
	dailyLimit int
	logger     *slog.Logger
}

// NewBridge creates a bridge for the given bot token. The admission
// handler is attached afterward via SetHandler: the bridge is the
// controller's transport, so the two reference each other.
func NewBridge(token string, prefs *models.Prefs, dailyLimit int, logger *slog.Logger) (*Bridge, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		bot:        bot,
		prefs:      prefs,
		dailyLimit: dailyLimit,
		logger:     logger.With("component", "telegram"),
	}, nil
}

// SetHandler attaches the admission handler. Must be called before Run.
func (b *Bridge) SetHandler(handler Handler) {
	b.handler = handler
}

// Username returns the bot account's username.
func (b *Bridge) Username() string {
	return b.bot.Self.UserName
}

// Run starts long polling and blocks until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("starting telegram bridge", "bot", b.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down telegram bridge")
			b.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram update channel closed")
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate routes one update to the right handler.
func (b *Bridge) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage feeds a plain text message into the admission controller.
func (b *Bridge) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || b.handler == nil {
		return
	}

	b.handler.Handle(ctx, &admission.Request{
		UserID:   msg.From.ID,
		Username: msg.From.UserName,
		ChatID:   msg.Chat.ID,
		Prompt:   msg.Text,
	})
}

// handleCommand serves the bot commands.
func (b *Bridge) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, startMessage(firstName(msg), b.dailyLimit))
	case "model":
		out := tgbotapi.NewMessage(msg.Chat.ID, "Choose a model:")
		out.ReplyMarkup = modelKeyboard(b.prefs.Registry())
		if _, err := b.bot.Send(out); err != nil {
			b.logger.Warn("sending model menu failed", "chat_id", msg.Chat.ID, "error", err)
		}
	default:
		b.reply(msg.Chat.ID, "Unknown command. Send me any text to query the model, or /model to pick one.")
	}
}

// handleCallback applies a model selection from the inline keyboard.
func (b *Bridge) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	modelID, ok := parseModelCallback(cq.Data)
	if !ok {
		return
	}

	var note string
	if err := b.prefs.Select(ctx, cq.From.ID, modelID); err != nil {
		b.logger.Warn("model selection failed", "user_id", cq.From.ID, "model", modelID, "error", err)
		note = "Couldn't switch models, please try again."
	} else {
		m, _ := b.prefs.Registry().Lookup(modelID)
		note = fmt.Sprintf("Model set to %s.", m.Name)
	}

	// Ack the button press, then confirm in the chat.
	if _, err := b.bot.Request(tgbotapi.NewCallback(cq.ID, note)); err != nil {
		b.logger.Debug("callback ack failed", "error", err)
	}
	if cq.Message != nil {
		b.reply(cq.Message.Chat.ID, note)
	}
}

// SendReply delivers a terminal reply. Model output is rendered from
// markdown to Telegram HTML; if Telegram rejects the markup the text is
// resent as plain text so the user always gets an answer.
func (b *Bridge) SendReply(ctx context.Context, chatID int64, text string) error {
	html, rendered := RenderHTML(text)
	if rendered && html != "" {
		msg := tgbotapi.NewMessage(chatID, html)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.bot.Send(msg); err == nil {
			return nil
		}
	}

	if _, err := b.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}

// SendTyping emits the "typing..." chat action as the working indicator.
func (b *Bridge) SendTyping(ctx context.Context, chatID int64) error {
	if _, err := b.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("sending chat action: %w", err)
	}
	return nil
}

// reply sends plain text, logging delivery failures.
func (b *Bridge) reply(chatID int64, text string) {
	if _, err := b.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("sending reply failed", "chat_id", chatID, "error", err)
	}
}

// startMessage renders the /start greeting.
func startMessage(name string, limit int) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s, I can process your queries for LLM. Just send your text to me. Remember, you have %d queries per day.", name, limit)
}

// firstName extracts the sender's first name, if present.
func firstName(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.FirstName
}

// modelKeyboard renders the registry as an inline keyboard, one model per
// row, preserving registry order.
func modelKeyboard(registry *models.Registry) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, registry.Len())
	for _, m := range registry.All() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(m.Name, modelCallbackPrefix+m.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// parseModelCallback extracts the model identifier from callback data.
func parseModelCallback(data string) (string, bool) {
	if !strings.HasPrefix(data, modelCallbackPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(data, modelCallbackPrefix)
	return id, id != ""
}
