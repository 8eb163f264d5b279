package handlers

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/middlewares"
	"github.com/mmdatafocus/closing_backend/models"
)

type ClosingReportService interface {
	Register(ctx context.Context, input *models.NewClosingReport) (*models.ClosingReport, error)
	GetByDate(ctx context.Context, tenantCode string, closeDate models.Date) (*models.ClosingReport, error)
	Update(ctx context.Context, tenantCode string, closeDate models.Date, input *models.NewClosingReport) (*models.ClosingReport, error)
	SetClosed(ctx context.Context, tenantCode string, closeDate models.Date, isClosed bool) (*models.ClosingReport, error)
	ListByDateRange(ctx context.Context, tenantCode string, start models.Date, end models.Date) ([]*models.ClosingReport, error)
	TopMenus(ctx context.Context, q models.StatsQuery) ([]models.MenuQuantity, error)
	BottomMenus(ctx context.Context, q models.StatsQuery) ([]models.MenuQuantity, error)
	NotesByDateRange(ctx context.Context, q models.StatsQuery) ([]models.ReportNote, error)
	SalesSummary(ctx context.Context, q models.StatsQuery) (*models.SalesSummary, error)
}

type MenuService interface {
	middlewares.MenuReader
	Create(ctx context.Context, input *models.NewMenu) (*models.Menu, error)
	List(ctx context.Context) ([]*models.Menu, error)
	Get(ctx context.Context, id string) (*models.Menu, error)
	Delete(ctx context.Context, id string) (*models.Menu, error)
	ImportMenusFromXlsx(ctx context.Context, r io.Reader, redis *config.Redis) ([]*models.Menu, error)
}

type UserService interface {
	Login(ctx context.Context, username string, password string) (*models.LoginInfo, error)
	Logout(ctx context.Context) error
	Create(ctx context.Context, input *models.NewUser) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Get(ctx context.Context, id int) (*models.User, error)
	Update(ctx context.Context, id int, input *models.UpdateUser) (*models.User, error)
	Delete(ctx context.Context, id int) (*models.User, error)
}

type Deps struct {
	Reports ClosingReportService
	Menus   MenuService
	Users   UserService
	Redis   *config.Redis
}

// RegisterRoutes mounts the API under /api/v1 on r.
func RegisterRoutes(r gin.IRouter, deps Deps) {
	reports := &closingReportHandler{svc: deps.Reports}
	menus := &menuHandler{svc: deps.Menus, redis: deps.Redis}
	users := &userHandler{svc: deps.Users}

	api := r.Group("/api/v1")
	api.Use(middlewares.AuthMiddleware(deps.Redis))
	api.POST("/auth/login", users.login)

	protected := api.Group("")
	protected.Use(middlewares.RequireSession(), middlewares.LoaderMiddleware(deps.Menus))
	protected.POST("/auth/logout", users.logout)

	cr := protected.Group("/closing-reports")
	cr.POST("/", reports.register)
	cr.GET("/", reports.listByDateRange)
	cr.GET("/export", reports.export)
	cr.GET("/stats/top-menus", reports.topMenus)
	cr.GET("/stats/bottom-menus", reports.bottomMenus)
	cr.GET("/stats/notes", reports.notes)
	cr.GET("/stats/summary", reports.summary)
	cr.GET("/:date", reports.getByDate)
	cr.PUT("/:date", reports.update)
	cr.PATCH("/:date/close", reports.setClosed)

	m := protected.Group("/menus")
	m.POST("/", menus.create)
	m.GET("/", menus.list)
	m.POST("/import", menus.importXlsx)
	m.GET("/:id", menus.get)
	m.DELETE("/:id", menus.delete)

	u := protected.Group("/users", middlewares.RequireAdmin())
	u.POST("", users.create)
	u.GET("", users.list)
	u.GET("/:id", users.get)
	u.PATCH("/:id", users.update)
	u.DELETE("/:id", users.delete)
}
