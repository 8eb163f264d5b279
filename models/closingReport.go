package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("closing-backend/models")

func reportSpan(tenantCode string, closeDate Date) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("comp_cd", tenantCode),
		attribute.String("close_date", closeDate.String()),
	)
}

const (
	ReportActionClosed   = "closing_report.closed"
	ReportActionReopened = "closing_report.reopened"
)

// ClosingReport is the end-of-day reconciliation of one tenant on one date.
type ClosingReport struct {
	TenantCode    string            `gorm:"column:comp_cd;primaryKey;size:20" json:"comp_cd"`
	CloseDate     Date              `gorm:"primaryKey;type:date" json:"close_date"`
	TodaySales    int64             `gorm:"not null" json:"today_sales"`
	LastWeekSales int64             `gorm:"not null" json:"last_week_sales"`
	EmployeeCount int               `gorm:"column:emp_cnt;not null" json:"emp_cnt"`
	TableCount    int               `gorm:"column:tb_cnt;not null" json:"tb_cnt"`
	TableDetail   string            `gorm:"column:tb_detail;type:text" json:"tb_detail"`
	Remark        string            `gorm:"column:rmrk;type:text" json:"rmrk"`
	WaitNote      string            `gorm:"type:text" json:"wait_note"`
	PrepaidAmount string            `gorm:"column:pd_amt;size:100" json:"pd_amt"`
	IsClosed      bool              `gorm:"not null" json:"is_closed"`
	CreatedAt     time.Time         `gorm:"column:crdt;autoCreateTime" json:"crdt"`
	Items         []ClosingMenuItem `gorm:"foreignKey:TenantCode,CloseDate;references:TenantCode,CloseDate;constraint:OnDelete:CASCADE" json:"items"`
}

// ClosingMenuItem is one menu's sold quantity on a report. MenuName is a copy taken
// when the item is written; it does not follow later catalog changes.
type ClosingMenuItem struct {
	TenantCode string    `gorm:"column:comp_cd;primaryKey;size:20" json:"-"`
	CloseDate  Date      `gorm:"primaryKey;type:date" json:"-"`
	MenuId     string    `gorm:"primaryKey;size:64" json:"menu_id"`
	MenuName   string    `gorm:"size:255" json:"menu_name"`
	Quantity   int       `gorm:"column:qty;not null" json:"qty"`
	CreatedAt  time.Time `gorm:"column:crdt;autoCreateTime" json:"crdt"`
}

type NewClosingMenuItem struct {
	MenuId   string `json:"menu_id" binding:"required"`
	MenuName string `json:"menu_name"`
	Quantity int    `json:"qty" binding:"gte=0"`
}

type NewClosingReport struct {
	TenantCode    string               `json:"comp_cd"`
	CloseDate     Date                 `json:"close_date"`
	TodaySales    *int64               `json:"today_sales" binding:"required"`
	LastWeekSales int64                `json:"last_week_sales"`
	EmployeeCount int                  `json:"emp_cnt" binding:"gte=0"`
	TableCount    int                  `json:"tb_cnt" binding:"gte=0"`
	TableDetail   string               `json:"tb_detail"`
	Remark        string               `json:"rmrk"`
	WaitNote      string               `json:"wait_note"`
	PrepaidAmount string               `json:"pd_amt"`
	Items         []NewClosingMenuItem `json:"items" binding:"required,dive"`
}

type ClosePatch struct {
	IsClosed *bool `json:"is_closed" binding:"required"`
}

// ReportEventPublisher receives close/reopen notifications after commit.
type ReportEventPublisher interface {
	Publish(ctx context.Context, msg config.PubSubMessage) error
}

type ClosingReportService struct {
	db        *gorm.DB
	cache     *ReportCache
	publisher ReportEventPublisher
	logger    *logrus.Logger
}

type ClosingReportOption func(*ClosingReportService)

func WithReportCache(cache *ReportCache) ClosingReportOption {
	return func(s *ClosingReportService) { s.cache = cache }
}

func WithEventPublisher(publisher ReportEventPublisher) ClosingReportOption {
	return func(s *ClosingReportService) { s.publisher = publisher }
}

func WithLogger(logger *logrus.Logger) ClosingReportOption {
	return func(s *ClosingReportService) { s.logger = logger }
}

func NewClosingReportService(db *gorm.DB, opts ...ClosingReportOption) *ClosingReportService {
	s := &ClosingReportService{db: db, logger: config.GetLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validate the shape shared by register and update
func (input *NewClosingReport) validate() error {
	if input.TodaySales == nil {
		return utils.NewValidationError("today_sales", "required")
	}
	if input.Items == nil {
		return utils.NewValidationError("items", "required")
	}
	seen := make(map[string]struct{}, len(input.Items))
	for _, item := range input.Items {
		if strings.TrimSpace(item.MenuId) == "" {
			return utils.NewValidationError("menu_id", "required")
		}
		if item.Quantity < 0 {
			return utils.NewValidationError("qty", "gte")
		}
		if _, ok := seen[item.MenuId]; ok {
			return utils.NewValidationError("items", "unique")
		}
		seen[item.MenuId] = struct{}{}
	}
	return nil
}

func (input *NewClosingReport) headerColumns() map[string]interface{} {
	return map[string]interface{}{
		"today_sales":     *input.TodaySales,
		"last_week_sales": input.LastWeekSales,
		"emp_cnt":         input.EmployeeCount,
		"tb_cnt":          input.TableCount,
		"tb_detail":       input.TableDetail,
		"rmrk":            input.Remark,
		"wait_note":       input.WaitNote,
		"pd_amt":          input.PrepaidAmount,
	}
}

func (input *NewClosingReport) applyHeader(report *ClosingReport) {
	report.TodaySales = *input.TodaySales
	report.LastWeekSales = input.LastWeekSales
	report.EmployeeCount = input.EmployeeCount
	report.TableCount = input.TableCount
	report.TableDetail = input.TableDetail
	report.Remark = input.Remark
	report.WaitNote = input.WaitNote
	report.PrepaidAmount = input.PrepaidAmount
}

func (input *NewClosingReport) buildItems(tenantCode string, closeDate Date, now time.Time) []ClosingMenuItem {
	items := make([]ClosingMenuItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, ClosingMenuItem{
			TenantCode: tenantCode,
			CloseDate:  closeDate,
			MenuId:     item.MenuId,
			MenuName:   item.MenuName,
			Quantity:   item.Quantity,
			CreatedAt:  now,
		})
	}
	return items
}

// Register inserts a new open report with its items. An existing (comp_cd, close_date)
// fails with utils.ErrorDuplicateKey.
func (s *ClosingReportService) Register(ctx context.Context, input *NewClosingReport) (*ClosingReport, error) {
	ctx, span := tracer.Start(ctx, "ClosingReportService.Register", reportSpan(input.TenantCode, input.CloseDate))
	defer span.End()

	if strings.TrimSpace(input.TenantCode) == "" {
		return nil, utils.NewValidationError("comp_cd", "required")
	}
	if input.CloseDate.IsZero() {
		return nil, utils.NewValidationError("close_date", "required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := ClosingReport{
		TenantCode: input.TenantCode,
		CloseDate:  NewDate(input.CloseDate.Time()),
		IsClosed:   false,
		CreatedAt:  now,
	}
	input.applyHeader(&report)
	report.Items = input.buildItems(report.TenantCode, report.CloseDate, now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&report).Error; err != nil {
			return err
		}
		return insertItems(tx, report.Items)
	})
	if err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: closing report %s %s already exists", utils.ErrorDuplicateKey, report.TenantCode, report.CloseDate)
		}
		span.RecordError(err)
		config.LogError(s.logger, "closingReport.go", "Register", "create closing report", report.TenantCode, err)
		return nil, err
	}

	s.cache.Invalidate(ctx)
	return &report, nil
}

// GetByDate returns the report with its items, or nil when there is none.
// An empty tenantCode picks the first report of that date.
func (s *ClosingReportService) GetByDate(ctx context.Context, tenantCode string, closeDate Date) (*ClosingReport, error) {
	ctx, span := tracer.Start(ctx, "ClosingReportService.GetByDate", reportSpan(tenantCode, closeDate))
	defer span.End()

	var result *ClosingReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := findReport(tx, tenantCode, closeDate, false)
		if err != nil || report == nil {
			return err
		}
		if err := attachItems(tx, report.TenantCode, report.CloseDate, report.CloseDate, []*ClosingReport{report}); err != nil {
			return err
		}
		result = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update overwrites the header and replaces the whole item set of an open report.
// A missing or closed report fails with utils.ErrorRecordNotFound.
func (s *ClosingReportService) Update(ctx context.Context, tenantCode string, closeDate Date, input *NewClosingReport) (*ClosingReport, error) {
	ctx, span := tracer.Start(ctx, "ClosingReportService.Update", reportSpan(tenantCode, closeDate))
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}

	var result *ClosingReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := findReport(tx, tenantCode, closeDate, true)
		if err != nil {
			return err
		}
		if report == nil || report.IsClosed {
			return fmt.Errorf("%w: no open closing report on %s", utils.ErrorRecordNotFound, closeDate)
		}

		if err := tx.Model(&ClosingReport{}).
			Where("comp_cd = ? AND close_date = ?", report.TenantCode, report.CloseDate).
			Updates(input.headerColumns()).Error; err != nil {
			return err
		}
		if err := tx.Where("comp_cd = ? AND close_date = ?", report.TenantCode, report.CloseDate).
			Delete(&ClosingMenuItem{}).Error; err != nil {
			return err
		}
		items := input.buildItems(report.TenantCode, report.CloseDate, time.Now().UTC())
		if err := insertItems(tx, items); err != nil {
			return err
		}

		input.applyHeader(report)
		report.Items = items
		result = report
		return nil
	})
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			span.RecordError(err)
			config.LogError(s.logger, "closingReport.go", "Update", "update closing report", closeDate.String(), err)
		}
		return nil, err
	}

	s.cache.Invalidate(ctx)
	return result, nil
}

// SetClosed persists the closed flag without checking the current state.
func (s *ClosingReportService) SetClosed(ctx context.Context, tenantCode string, closeDate Date, isClosed bool) (*ClosingReport, error) {
	ctx, span := tracer.Start(ctx, "ClosingReportService.SetClosed", reportSpan(tenantCode, closeDate))
	defer span.End()

	var result *ClosingReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report, err := findReport(tx, tenantCode, closeDate, true)
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("%w: no closing report on %s", utils.ErrorRecordNotFound, closeDate)
		}
		if err := tx.Model(&ClosingReport{}).
			Where("comp_cd = ? AND close_date = ?", report.TenantCode, report.CloseDate).
			Update("is_closed", isClosed).Error; err != nil {
			return err
		}
		if err := attachItems(tx, report.TenantCode, report.CloseDate, report.CloseDate, []*ClosingReport{report}); err != nil {
			return err
		}
		report.IsClosed = isClosed
		result = report
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStateChange(ctx, result)
	return result, nil
}

// ListByDateRange returns reports in [start, end] with items, oldest first.
func (s *ClosingReportService) ListByDateRange(ctx context.Context, tenantCode string, start Date, end Date) ([]*ClosingReport, error) {
	ctx, span := tracer.Start(ctx, "ClosingReportService.ListByDateRange", trace.WithAttributes(
		attribute.String("comp_cd", tenantCode),
		attribute.String("range", start.String()+".."+end.String()),
	))
	defer span.End()

	reports := make([]*ClosingReport, 0)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := scopeRange(tx, tenantCode, start, end).
			Order("close_date ASC").Order("comp_cd ASC").
			Find(&reports).Error; err != nil {
			return err
		}
		if len(reports) == 0 {
			return nil
		}
		return attachItems(tx, tenantCode, start, end, reports)
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *ClosingReportService) publishStateChange(ctx context.Context, report *ClosingReport) {
	if s.publisher == nil || report == nil {
		return
	}
	action := ReportActionReopened
	if report.IsClosed {
		action = ReportActionClosed
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.PubSubMessage{
		TenantCode:    report.TenantCode,
		CloseDate:     report.CloseDate.String(),
		Action:        action,
		OccurredAt:    time.Now().UTC(),
		CorrelationId: correlationId,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		config.LogError(s.logger, "closingReport.go", "publishStateChange", "publish report event", msg, err)
	}
}

func findReport(tx *gorm.DB, tenantCode string, closeDate Date, forUpdate bool) (*ClosingReport, error) {
	q := tx.Where("close_date = ?", closeDate)
	if tenantCode != "" {
		q = q.Where("comp_cd = ?", tenantCode)
	}
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var report ClosingReport
	if err := q.Order("comp_cd ASC").Take(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

func scopeRange(tx *gorm.DB, tenantCode string, start Date, end Date) *gorm.DB {
	q := tx.Where("close_date BETWEEN ? AND ?", start, end)
	if tenantCode != "" {
		q = q.Where("comp_cd = ?", tenantCode)
	}
	return q
}

// attachItems loads the items of every report in one query and sets report.Items.
func attachItems(tx *gorm.DB, tenantCode string, start Date, end Date, reports []*ClosingReport) error {
	var items []ClosingMenuItem
	if err := scopeRange(tx, tenantCode, start, end).
		Order("close_date ASC").Order("comp_cd ASC").Order("menu_id ASC").
		Find(&items).Error; err != nil {
		return err
	}

	byReport := make(map[string][]ClosingMenuItem, len(reports))
	for _, item := range items {
		key := reportKey(item.TenantCode, item.CloseDate)
		byReport[key] = append(byReport[key], item)
	}
	for _, report := range reports {
		report.Items = byReport[reportKey(report.TenantCode, report.CloseDate)]
		if report.Items == nil {
			report.Items = []ClosingMenuItem{}
		}
	}
	return nil
}

func insertItems(tx *gorm.DB, items []ClosingMenuItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(&items).Error
}

func reportKey(tenantCode string, closeDate Date) string {
	return tenantCode + "|" + closeDate.String()
}
