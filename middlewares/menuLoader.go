package middlewares

import (
	"context"
	"strings"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

type menuReader struct {
	menus MenuReader
}

// unknown ids resolve to a nil menu, not an error
func (r *menuReader) getMenus(ctx context.Context, ids []string) []*dataloader.Result[*models.Menu] {
	results, err := r.menus.GetByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Menu](len(ids), err)
	}

	resultMap := make(map[string]*models.Menu, len(results))
	for _, result := range results {
		resultMap[result.ID] = result
	}
	loaderResults := make([]*dataloader.Result[*models.Menu], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Menu]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetMenus(ctx context.Context, ids []string) ([]*models.Menu, []error) {
	loaders := For(ctx)
	return loaders.menuLoader.LoadMany(ctx, ids)()
}

// FillMenuNames copies catalog names onto items whose menu_name is blank.
// Without loaders in ctx the items are left as they are.
func FillMenuNames(ctx context.Context, items []models.NewClosingMenuItem) error {
	if For(ctx) == nil {
		return nil
	}
	ids := make([]string, 0)
	for _, item := range items {
		if strings.TrimSpace(item.MenuName) == "" {
			ids = append(ids, item.MenuId)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	ids = utils.UniqueSlice(ids)

	menus, errs := GetMenus(ctx, ids)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	names := make(map[string]string, len(menus))
	for i, menu := range menus {
		if menu != nil {
			names[ids[i]] = menu.Name
		}
	}
	for i := range items {
		if strings.TrimSpace(items[i].MenuName) == "" {
			items[i].MenuName = names[items[i].MenuId]
		}
	}
	return nil
}
