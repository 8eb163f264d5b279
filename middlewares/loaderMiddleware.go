package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/closing_backend/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// MenuReader is the catalog lookup behind the menu loader.
type MenuReader interface {
	GetByIds(ctx context.Context, ids []string) ([]*models.Menu, error)
}

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	menuLoader *dataloader.Loader[string, *models.Menu]
}

func NewLoaders(menus MenuReader) *Loaders {
	menuReader := &menuReader{menus: menus}
	return &Loaders{
		menuLoader: dataloader.NewBatchedLoader(menuReader.getMenus, dataloader.WithWait[string, *models.Menu](time.Millisecond)),
	}
}

// LoaderMiddleware gives each request its own loaders so cached lookups never outlive it.
func LoaderMiddleware(menus MenuReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(menus)
		ctx := WithLoaders(c.Request.Context(), loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// For returns the request's loaders, or nil outside LoaderMiddleware.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
