package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/senga07/xAgentic/internal/engine"
)

// TelegramGateway runs sessions from chat messages. A plain message
// starts a session for that chat; when the session suspends for
// confirmation, the chat's next message is taken as the feedback and
// resumes it.
type TelegramGateway struct {
	Bot    *tgbotapi.BotAPI
	Engine *engine.Engine

	mu      sync.Mutex
	pending map[int64]string // chat id -> suspended session id
}

func NewTelegramGateway(token string, eng *engine.Engine) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:     bot,
		Engine:  eng,
		pending: make(map[int64]string),
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)
		go tg.handleMessage(update.Message.Chat.ID, update.Message.Text)
	}
	return nil
}

// handleMessage routes one chat message: feedback for a suspended
// session when one is pending, otherwise a new task.
func (tg *TelegramGateway) handleMessage(chatID int64, text string) {
	ctx := context.Background()

	tg.mu.Lock()
	sessionID, suspended := tg.pending[chatID]
	if suspended {
		delete(tg.pending, chatID)
	}
	tg.mu.Unlock()

	if suspended {
		stream, err := tg.Engine.Resume(ctx, sessionID, text)
		if err != nil {
			tg.reply(chatID, fmt.Sprintf("Could not resume: %v", err))
			return
		}
		tg.relay(chatID, stream)
		return
	}

	stream := tg.Engine.Start(ctx, "", text)
	tg.relay(chatID, stream)
}

// relay forwards session events to the chat and records a suspension so
// the next message resumes it.
func (tg *TelegramGateway) relay(chatID int64, stream *engine.Stream) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case engine.EventPlanCreated, engine.EventStepStarted, engine.EventStepFailed:
			tg.reply(chatID, ev.Message)
		case engine.EventConfirmationRequired:
			tg.reply(chatID, ev.Message+"\n\nReply with your answer to continue.")
		case engine.EventCompleted:
			if response, ok := ev.Data["response"].(string); ok && response != "" {
				tg.reply(chatID, response)
			} else {
				tg.reply(chatID, ev.Message)
			}
		case engine.EventFailed:
			tg.reply(chatID, ev.Message)
		}
	}

	st, err := stream.Result()
	if err != nil || st == nil {
		return
	}
	if st.Status == engine.StatusAwaitingConfirmation {
		tg.mu.Lock()
		tg.pending[chatID] = st.SessionID
		tg.mu.Unlock()
	}
}

func (tg *TelegramGateway) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := tg.Bot.Send(msg); err != nil {
		log.Printf("Error sending to chat %d: %v", chatID, err)
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
