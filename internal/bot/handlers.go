package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plan-tracker/internal/logger"
	"plan-tracker/internal/model"
	"plan-tracker/internal/service"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Выбери план, выполняй задачи каждый день и копи очки.</b>\n\n%s",
		escape(name), commandList,
	)
	return b.sendText(msg.Chat.ID, text)
}

const commandList = "Команды:\n" +
	"• /templates — шаблоны планов\n" +
	"• /startplan &lt;id&gt; — начать план по шаблону\n" +
	"• /today — задачи на сегодня\n" +
	"• /done &lt;id&gt; — отметить задачу выполненной\n" +
	"• /undo &lt;id&gt; — вернуть задачу в работу\n" +
	"• /me — очки, активный план и мои шаблоны\n" +
	"• /help — подсказки"

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" + commandList + "\n\n" +
		"За задачу начисляется 10 очков, +10 за обязательную и +5 за повторяющуюся. " +
		"Когда план заканчивается, за каждую невыполненную обязательную задачу списывается 15 очков."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTemplates(ctx context.Context, msg *tgbotapi.Message) error {
	category := strings.TrimSpace(msg.CommandArguments())
	templates, err := b.services.Templates.List(ctx, service.TemplateQuery{Category: category, SortBy: "likes"})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить шаблоны: %s", escape(err.Error())))
	}
	if len(templates) == 0 {
		return b.sendText(msg.Chat.ID, "Шаблонов пока нет.")
	}

	var builder strings.Builder
	builder.WriteString("📚 <b>Шаблоны планов</b>\n")
	builder.WriteString("Нажми на кнопку, чтобы начать план.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, t := range templates {
		builder.WriteString(fmt.Sprintf("#%d <b>%s</b> · ❤️ %d", t.ID, escape(t.Title), t.LikesCount))
		if t.Category != "" {
			builder.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(t.Category)))
		}
		if t.Description != "" {
			builder.WriteString(fmt.Sprintf("\n   📝 %s", escape(t.Description)))
		}
		builder.WriteByte('\n')
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("▶️ #%d · %s", t.ID, shortTitle(t.Title, 24)),
				fmt.Sprintf("%s%d", cbStartPrefix, t.ID),
			),
		))
	}

	return b.sendWithReplyMarkup(msg.Chat.ID, strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleStartPlan(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Укажи ID шаблона: /startplan 3")
	}
	id, err := parseID(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "ID шаблона должен быть числом.")
	}
	return b.startPlan(ctx, msg.Chat.ID, msg.From, id)
}

func (b *Bot) startPlan(ctx context.Context, chatID int64, from *tgbotapi.User, templateID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	plan, err := b.services.Plans.StartPlan(ctx, user.ID, templateID)
	if err != nil {
		logger.Warn("start plan", "user", user.ID, "template", templateID, "err", err)
		return b.sendText(chatID, userMessage(err))
	}

	text := fmt.Sprintf("🚀 План «%s» начат: %d задач(и). Задачи на сегодня: /today",
		escape(plan.Title), len(plan.Tasks))
	return b.sendText(chatID, text)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendToday(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendToday(ctx context.Context, chatID int64, user *model.User) error {
	digest, err := b.services.Digest.Build(ctx, user.ID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if digest.ActivePlan == nil {
		return b.sendText(chatID, "У тебя нет активного плана. Выбери шаблон: /templates")
	}
	if len(digest.TodayTasks) == 0 {
		return b.sendText(chatID, fmt.Sprintf("🔥 <b>%s</b>\nНа сегодня задач нет.", escape(digest.ActivePlan.Title)))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🔥 <b>%s</b> · %s\n\n", escape(digest.ActivePlan.Title), digest.Day.Format("02.01.2006")))

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range digest.TodayTasks {
		builder.WriteString(service.FormatTask(task))
		if task.Status == model.TaskStatusDone {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("↩️ #%d · %s", task.ID, shortTitle(task.Title, 24)),
					fmt.Sprintf("%s%d", cbUndoPrefix, task.ID),
				),
			))
			continue
		}
		if task.PenaltyApplied {
			continue
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)),
				fmt.Sprintf("%s%d", cbDonePrefix, task.ID),
			),
		))
	}

	text := strings.TrimSpace(builder.String())
	if len(buttons) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message, status model.TaskStatus) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Укажи ID задачи: /%s 12", msg.Command()))
	}
	id, err := parseID(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "ID задачи должен быть числом.")
	}
	return b.setStatus(ctx, msg.Chat.ID, msg.From, id, status)
}

func (b *Bot) setStatus(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, status model.TaskStatus) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.services.Scoring.SetTaskStatus(ctx, taskID, status, service.SetStatusOptions{ActorID: user.ID})
	if err != nil {
		logger.Warn("set task status", "user", user.ID, "task", taskID, "status", status, "err", err)
		return b.sendText(chatID, userMessage(err))
	}

	var info string
	if task.Status == model.TaskStatusDone {
		info = fmt.Sprintf("✅ Задача «%s» выполнена. +%d очк.", escape(task.Title), task.AwardedPoints)
	} else {
		info = fmt.Sprintf("↩️ Задача «%s» снова в работе.", escape(task.Title))
	}
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendToday(ctx, chatID, user)
}

func (b *Bot) handleMe(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.services.Digest.Summary(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.services.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

// userMessage turns a service error into a chat reply.
func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "Не найдено. Проверь номер."
	case errors.Is(err, service.ErrForbidden):
		return "Это не твоя задача."
	case errors.Is(err, service.ErrConflict):
		return "Действие уже недоступно: задача просрочена или план изменился."
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidInput):
		return "Некорректный запрос."
	default:
		return "Что-то пошло не так, попробуй ещё раз позже."
	}
}
