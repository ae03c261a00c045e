package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plan-tracker/internal/logger"
	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
	"plan-tracker/internal/service"
)

const (
	cbDonePrefix  = "done:"
	cbUndoPrefix  = "undo:"
	cbStartPrefix = "start:"
)

const (
	menuLabelToday     = "📅 Сегодня"
	menuLabelTemplates = "📚 Шаблоны"
	menuLabelMe        = "⭐️ Мой прогресс"
	menuLabelHelp      = "ℹ️ Помощь"
)

// sender is the subset of *tgbotapi.BotAPI the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services bundles what chat commands drive.
type Services struct {
	Users     *repository.UserRepository
	Plans     *service.PlanService
	Scoring   *service.ScoringService
	Templates *service.TemplateService
	Digest    *service.DigestService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      sender
	updates  func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stop     func()
	services Services
}

func New(token string, services Services) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:      api,
		updates:  api.GetUpdatesChan,
		stop:     api.StopReceivingUpdates,
		services: services,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.updates(updateConfig)

	logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.stop()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				logger.Error("handle callback", "err", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				logger.Error("handle message", "err", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		logger.Info("command", "from", msg.From.ID, "cmd", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /templates, чтобы выбрать план, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "templates":
		return b.handleTemplates(ctx, msg)
	case "startplan":
		return b.handleStartPlan(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "done":
		return b.handleStatus(ctx, msg, model.TaskStatusDone)
	case "undo":
		return b.handleStatus(ctx, msg, model.TaskStatusPending)
	case "me", "report":
		return b.handleMe(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelTemplates):
		return true, b.handleTemplates(ctx, msg)
	case strings.ToLower(menuLabelMe):
		return true, b.handleMe(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.Warn("callback ack", "err", err)
	}

	data := cb.Data
	logger.Info("callback", "from", cb.From.ID, "data", data)

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDonePrefix))
		if err != nil {
			return nil
		}
		return b.setStatus(ctx, cb.Message.Chat.ID, cb.From, id, model.TaskStatusDone)
	case strings.HasPrefix(data, cbUndoPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbUndoPrefix))
		if err != nil {
			return nil
		}
		return b.setStatus(ctx, cb.Message.Chat.ID, cb.From, id, model.TaskStatusPending)
	case strings.HasPrefix(data, cbStartPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbStartPrefix))
		if err != nil {
			return nil
		}
		return b.startPlan(ctx, cb.Message.Chat.ID, cb.From, id)
	default:
		return nil
	}
}

// SendDailyReports sends a digest to every user linked to a chat.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.services.Users.ListWithTelegram(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.services.Digest.Summary(ctx, user.ID)
		if err != nil {
			logger.Warn("build digest", "user", user.ID, "err", err)
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			logger.Warn("send digest", "chat", *user.TelegramID, "err", err)
		}
	}
	return nil
}

// NotifyPenalty tells the plan owner that the sweep closed their plan.
func (b *Bot) NotifyPenalty(ctx context.Context, p service.Penalty) {
	user, err := b.services.Users.FindByID(ctx, p.UserID)
	if err != nil || user.TelegramID == nil {
		return
	}
	if err := b.sendText(*user.TelegramID, formatPenalty(p, user.Points)); err != nil {
		logger.Warn("send penalty notice", "chat", *user.TelegramID, "err", err)
	}
}

func formatPenalty(p service.Penalty, balance int) string {
	return fmt.Sprintf(
		"⌛️ План «%s» завершён.\nНе выполнено обязательных задач: %d, списано %d очк.\nТекущий баланс: %d",
		escape(p.PlanTitle), p.TaskCount, p.Points, balance,
	)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelTemplates),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelMe),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(value), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(title)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
