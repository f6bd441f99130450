package reminder

import (
	"context"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
)

// initialContactStrategy opens conversations with recipients that have never
// replied. It carries no menus; the executor still walks the audience and
// delivers the campaign content or the parameterless opener template.
type initialContactStrategy struct {
	deps StrategyDeps
}

var _ Strategy = (*initialContactStrategy)(nil)

func (s *initialContactStrategy) EventType() model.EventType { return model.EventInitialContact }

func (s *initialContactStrategy) EligibleEntities(ctx context.Context, trigger *model.Trigger, scope model.AudienceScope, now time.Time) ([]model.Menu, error) {
	return nil, nil
}

func (s *initialContactStrategy) RenderContent(campaign *model.Campaign, menus []model.Menu) string {
	return renderContent(campaign.Content, s.deps.Cfg.ShopURL, menus)
}

func (s *initialContactStrategy) Template(menus []model.Menu) whatsapp.TemplateMessage {
	tpl := s.deps.Cfg.Templates.Initial
	return whatsapp.TemplateMessage{Name: tpl.Name, Language: tpl.Language}
}
