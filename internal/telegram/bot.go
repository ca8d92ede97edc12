package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"threadchat/internal/auth"
	"threadchat/internal/chat"
	"threadchat/internal/store"
)

const resetCmd = "reset_ctx"

// ThreadStore is what the gateway needs from the persistence layer.
type ThreadStore interface {
	EnsureThread(ctx context.Context, threadID, title string) (store.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
}

// Bot is the optional Telegram surface. Every Telegram chat maps to a
// persistent thread (tg-<chatID>), so the web UI sees the same history.
type Bot struct {
	api        *tgbotapi.BotAPI
	s          sender
	authSvc    *auth.Service
	dispatcher *chat.Dispatcher
	threads    ThreadStore
}

func New(botToken string, authSvc *auth.Service, dispatcher *chat.Dispatcher, threads ThreadStore) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:        api,
		s:          botAPISender{api: api},
		authSvc:    authSvc,
		dispatcher: dispatcher,
		threads:    threads,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
		}
	}
}

func threadIDFor(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.authSvc.IsAllowed(msg.From.ID) {
		log.Printf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, "Access denied.")
		return
	}

	log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, msg.Text)

	threadID := threadIDFor(msg.Chat.ID)
	title := fmt.Sprintf("Telegram chat %d", msg.Chat.ID)
	if _, err := b.threads.EnsureThread(ctx, threadID, title); err != nil {
		log.Printf("failed to ensure thread %s: %v", threadID, err)
		b.sendMessage(msg.Chat.ID, "Sorry, something went wrong.")
		return
	}

	reply, err := b.dispatcher.Send(ctx, threadID, msg.Text)
	if err != nil {
		if errors.Is(err, chat.ErrModel) {
			log.Printf("model failure on %s: %v", threadID, err)
			b.sendMessage(msg.Chat.ID, "The model is unavailable right now, please try again.")
		} else {
			log.Printf("storage failure on %s: %v", threadID, err)
			b.sendMessage(msg.Chat.ID, "Sorry, something went wrong.")
		}
		return
	}

	meta := fmt.Sprintf("[model=%s, tokens: prompt=%d, completion=%d, total=%d]",
		reply.Model, reply.PromptTokens, reply.CompletionTokens, reply.TotalTokens)
	final := meta + "\n\n" + reply.Assistant.Content

	// Reply with inline button to reset the conversation
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reset conversation", resetCmd),
		),
	)

	msgOut := tgbotapi.NewMessage(msg.Chat.ID, final)
	msgOut.ReplyMarkup = kb
	if _, err := b.s.Send(msgOut); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Data != resetCmd {
		return
	}
	threadID := threadIDFor(cb.Message.Chat.ID)
	if err := b.threads.DeleteThread(ctx, threadID); err != nil && !errors.Is(err, store.ErrThreadNotFound) {
		log.Printf("failed to reset thread %s: %v", threadID, err)
		b.sendMessage(cb.Message.Chat.ID, "Sorry, something went wrong.")
		return
	}
	b.dispatcher.Forget(threadID)
	b.sendMessage(cb.Message.Chat.ID, "Conversation reset")
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
