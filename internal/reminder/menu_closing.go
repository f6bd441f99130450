package reminder

import (
	"context"
	"strconv"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
)

const defaultClosingHorizonHours = 24

// menuClosingStrategy reminds recipients about menus whose order cutoff is
// coming up, skipping recipients that already ordered for every affected date.
type menuClosingStrategy struct {
	deps StrategyDeps
}

var (
	_ Strategy        = (*menuClosingStrategy)(nil)
	_ RecipientFilter = (*menuClosingStrategy)(nil)
)

func (s *menuClosingStrategy) EventType() model.EventType { return model.EventMenuClosing }

func (s *menuClosingStrategy) EligibleEntities(ctx context.Context, trigger *model.Trigger, scope model.AudienceScope, now time.Time) ([]model.Menu, error) {
	horizon := defaultClosingHorizonHours
	if trigger.HoursBefore != nil && *trigger.HoursBefore > 0 {
		horizon = *trigger.HoursBefore
	}
	until := now.Add(time.Duration(horizon) * time.Hour)
	return s.deps.Menus.ClosingBefore(ctx, until, scope)
}

// ShouldNotify suppresses the reminder when the recipient already has an
// order covering every delivery date of the closing menus.
func (s *menuClosingStrategy) ShouldNotify(ctx context.Context, recipient model.Recipient, menus []model.Menu) (bool, error) {
	dates := deliveryDates(menus)
	if len(dates) == 0 {
		return false, nil
	}

	var covered bool
	var err error
	if recipient.BranchID != nil {
		covered, err = s.deps.Orders.BranchHasOrdersForDates(ctx, *recipient.BranchID, dates)
	} else {
		covered, err = s.deps.Orders.CompanyHasOrdersForDates(ctx, recipient.CompanyID, dates)
	}
	if err != nil {
		return false, err
	}
	return !covered, nil
}

func (s *menuClosingStrategy) RenderContent(campaign *model.Campaign, menus []model.Menu) string {
	return renderContent(campaign.Content, s.deps.Cfg.ShopURL, menus)
}

func (s *menuClosingStrategy) Template(menus []model.Menu) whatsapp.TemplateMessage {
	tpl := s.deps.Cfg.Templates.MenuClosing
	return whatsapp.TemplateMessage{
		Name:     tpl.Name,
		Language: tpl.Language,
		Params: []whatsapp.TemplateParam{
			{Name: "menu_count", Text: strconv.Itoa(len(menus))},
			{Name: "cutoff_date", Text: formatMenuDate(earliestCutoff(menus))},
		},
	}
}

func deliveryDates(menus []model.Menu) []string {
	seen := make(map[string]struct{}, len(menus))
	dates := make([]string, 0, len(menus))
	for _, m := range menus {
		d := m.PublicationDate.Format("2006-01-02")
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	return dates
}

func earliestCutoff(menus []model.Menu) time.Time {
	var min time.Time
	for _, m := range menus {
		if min.IsZero() || m.MaxOrderDate.Before(min) {
			min = m.MaxOrderDate
		}
	}
	return min
}
