package reminder

import (
	"context"
	"strconv"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
)

const defaultCreatedLookbackHours = 24

// menuCreatedStrategy reminds recipients about menus published within the
// trigger's lookback window.
type menuCreatedStrategy struct {
	deps StrategyDeps
}

var _ Strategy = (*menuCreatedStrategy)(nil)

func (s *menuCreatedStrategy) EventType() model.EventType { return model.EventMenuCreated }

func (s *menuCreatedStrategy) EligibleEntities(ctx context.Context, trigger *model.Trigger, scope model.AudienceScope, now time.Time) ([]model.Menu, error) {
	// hours_after=0 narrows the lookback to one scheduler tick so each run
	// only picks up menus published since the previous one
	lookback := s.deps.Cfg.Tick
	if trigger.HoursAfter != nil && *trigger.HoursAfter > 0 {
		lookback = time.Duration(*trigger.HoursAfter) * time.Hour
	}
	if lookback <= 0 {
		lookback = defaultCreatedLookbackHours * time.Hour
	}
	return s.deps.Menus.CreatedSince(ctx, now.Add(-lookback), scope)
}

func (s *menuCreatedStrategy) RenderContent(campaign *model.Campaign, menus []model.Menu) string {
	return renderContent(campaign.Content, s.deps.Cfg.ShopURL, menus)
}

func (s *menuCreatedStrategy) Template(menus []model.Menu) whatsapp.TemplateMessage {
	tpl := s.deps.Cfg.Templates.MenuCreated
	return whatsapp.TemplateMessage{
		Name:     tpl.Name,
		Language: tpl.Language,
		Params: []whatsapp.TemplateParam{
			{Name: "menu_count", Text: strconv.Itoa(len(menus))},
			{Name: "menu_date", Text: formatMenuDate(minPublicationDate(menus))},
		},
	}
}
