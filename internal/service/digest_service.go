package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"gorm.io/gorm"

	"plan-tracker/internal/model"
	"plan-tracker/internal/repository"
)

// Digest is the user's current standing: balance, running plan with the
// tasks due today, and the templates they authored.
type Digest struct {
	User         model.User           `json:"user"`
	ActivePlan   *model.PlanInstance  `json:"activePlan,omitempty"`
	TodayTasks   []model.TaskInstance `json:"todayTasks"`
	OwnTemplates []model.TemplatePlan `json:"ownTemplates"`
	Day          time.Time            `json:"day"`
}

// DigestService builds per-user summaries for the API and chat reports.
type DigestService struct {
	repos *repository.Repositories
	now   Clock
	loc   *time.Location
}

func NewDigestService(repos *repository.Repositories, now Clock, loc *time.Location) *DigestService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &DigestService{repos: repos, now: now, loc: loc}
}

func (s *DigestService) Build(ctx context.Context, userID uint) (*Digest, error) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", userID), err)
	}

	day := DayStart(s.now(), s.loc)
	digest := &Digest{User: *user, Day: day, TodayTasks: []model.TaskInstance{}}

	plan, err := s.repos.Instances.FindActiveByUser(ctx, userID)
	switch {
	case err == nil:
		digest.ActivePlan = plan
		tasks, err := s.repos.Instances.ListTasksForDay(ctx, plan.ID, day)
		if err != nil {
			return nil, err
		}
		digest.TodayTasks = tasks
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}

	templates, err := s.repos.Templates.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	digest.OwnTemplates = templates
	return digest, nil
}

// Summary renders the digest as Telegram HTML.
func (s *DigestService) Summary(ctx context.Context, userID uint) (string, error) {
	d, err := s.Build(ctx, userID)
	if err != nil {
		return "", err
	}
	return FormatDigest(d), nil
}

func FormatDigest(d *Digest) string {
	var b strings.Builder
	b.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s · ⭐️ %d очк.\n\n", d.Day.Format("02.01.2006"), d.User.Points))

	if d.ActivePlan == nil {
		b.WriteString("— нет активного плана, выберите шаблон: /templates\n")
	} else {
		b.WriteString(fmt.Sprintf("🔥 <b>%s</b>\n", html.EscapeString(strings.TrimSpace(d.ActivePlan.Title))))
		if len(d.TodayTasks) == 0 {
			b.WriteString("— на сегодня задач нет\n")
		}
		for _, task := range d.TodayTasks {
			b.WriteString(FormatTask(task))
		}
	}

	if len(d.OwnTemplates) > 0 {
		b.WriteString("\n📚 <b>Мои шаблоны</b>\n")
		for _, t := range d.OwnTemplates {
			b.WriteString(fmt.Sprintf("#%d %s · ❤️ %d\n", t.ID, html.EscapeString(t.Title), t.LikesCount))
		}
	}
	return strings.TrimSpace(b.String())
}

// FormatTask renders one task line with its status icon and id.
func FormatTask(task model.TaskInstance) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.Status == model.TaskStatusDone:
		icon = "✅"
	case task.PenaltyApplied:
		icon = "⚠️"
	case task.IsMandatory:
		icon = "❗️"
	}
	sb.WriteString(fmt.Sprintf("%s #%d %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))

	if task.Category != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(task.Category)))
	}
	if task.StartTime != "" {
		window := task.StartTime
		if task.EndTime != "" {
			window += "–" + task.EndTime
		}
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", window))
	}
	if task.Calories != nil {
		sb.WriteString(fmt.Sprintf("\n   🍽 %d ккал", *task.Calories))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}
	sb.WriteByte('\n')
	return sb.String()
}
