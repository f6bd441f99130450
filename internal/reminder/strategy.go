// Package reminder evaluates time-based campaign triggers and delivers
// reminder batches through the conversation window rules.
package reminder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
)

// Strategy answers, for one event type: which menus is a recipient owed a
// reminder about right now, and how is that reminder worded.
type Strategy interface {
	EventType() model.EventType
	EligibleEntities(ctx context.Context, trigger *model.Trigger, scope model.AudienceScope, now time.Time) ([]model.Menu, error)
	// RenderContent expands the campaign content's placeholders over the full
	// merged menu set: one message per recipient, never one per menu.
	RenderContent(campaign *model.Campaign, menus []model.Menu) string
	// Template is the approved message used when the window is closed.
	Template(menus []model.Menu) whatsapp.TemplateMessage
}

// RecipientFilter is implemented by strategies that suppress a reminder based
// on the recipient's existing business state. Evaluated per recipient.
type RecipientFilter interface {
	ShouldNotify(ctx context.Context, recipient model.Recipient, menus []model.Menu) (bool, error)
}

// StrategyDeps carries the read-only collaborators strategies draw from.
type StrategyDeps struct {
	Menus  repository.MenusRepository
	Orders repository.OrdersRepository
	Cfg    config.RemindersConfig
}

// NewStrategy selects the concrete strategy for an event type.
func NewStrategy(eventType model.EventType, deps StrategyDeps) (Strategy, error) {
	switch eventType {
	case model.EventMenuCreated:
		return &menuCreatedStrategy{deps: deps}, nil
	case model.EventMenuClosing:
		return &menuClosingStrategy{deps: deps}, nil
	case model.EventInitialContact:
		return &initialContactStrategy{deps: deps}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}

func renderContent(content, shopURL string, menus []model.Menu) string {
	titles := make([]string, 0, len(menus))
	for _, m := range menus {
		titles = append(titles, m.Title)
	}
	r := strings.NewReplacer(
		"{{menu_count}}", strconv.Itoa(len(menus)),
		"{{menus}}", strings.Join(titles, ", "),
		"{{shop_url}}", shopURL,
	)
	return r.Replace(content)
}

var spanishWeekdays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// formatMenuDate renders a date the way the templates expect, e.g.
// "lunes 2 de marzo".
func formatMenuDate(t time.Time) string {
	return fmt.Sprintf("%s %d de %s",
		spanishWeekdays[int(t.Weekday())], t.Day(), spanishMonths[int(t.Month())-1])
}

func minPublicationDate(menus []model.Menu) time.Time {
	var min time.Time
	for _, m := range menus {
		if min.IsZero() || m.PublicationDate.Before(min) {
			min = m.PublicationDate
		}
	}
	return min
}
