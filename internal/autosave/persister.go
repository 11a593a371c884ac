package autosave

import (
	"context"
	"fmt"

	"github.com/yanizio/sitebuilder/internal/apperr"
)

// Updater is the partial-update method shared by the site, page, and
// section stores.
type Updater interface {
	Update(ctx context.Context, id string, fields map[string]any) error
}

// StorePersister routes each kind to its store.
type StorePersister struct {
	Sections Updater
	Pages    Updater
	Sites    Updater
}

func (s StorePersister) Persist(ctx context.Context, kind Kind, id string, fields map[string]any) error {
	var u Updater
	switch kind {
	case KindSections:
		u = s.Sections
	case KindPages:
		u = s.Pages
	case KindSites:
		u = s.Sites
	}
	if u == nil {
		return apperr.New(apperr.KindValidation, "autosave.Persist", fmt.Sprintf("No store for %q.", kind))
	}
	return u.Update(ctx, id, fields)
}
