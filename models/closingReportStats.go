package models

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultStatsLimit = 5

type MenuQuantity struct {
	MenuName string `json:"menu_name"`
	TotalQty int64  `json:"total_qty"`
}

type ReportNote struct {
	CloseDate  Date   `json:"close_date"`
	TenantCode string `json:"comp_cd"`
	Note       string `json:"note"`
}

// StatsQuery is an inclusive date range. An empty TenantCode covers every tenant the caller can see.
type StatsQuery struct {
	TenantCode string
	Start      Date
	End        Date
	Limit      int
}

func (q StatsQuery) limit() int {
	if q.Limit <= 0 {
		return DefaultStatsLimit
	}
	return q.Limit
}

type SalesSummary struct {
	Start              Date             `json:"start_date"`
	End                Date             `json:"end_date"`
	ReportCount        int64            `json:"report_count"`
	TodaySalesTotal    int64            `json:"today_sales_total"`
	LastWeekSalesTotal int64            `json:"last_week_sales_total"`
	AverageDailySales  decimal.Decimal  `json:"average_daily_sales"`
	GrowthRate         *decimal.Decimal `json:"growth_rate"`
}

type salesTotals struct {
	ReportCount        int64
	TodaySalesTotal    int64
	LastWeekSalesTotal int64
}

func (s *ClosingReportService) TopMenus(ctx context.Context, q StatsQuery) ([]MenuQuantity, error) {
	return cachedReport(ctx, s.cache, "top_menus", q, func() ([]MenuQuantity, error) {
		return s.menuQuantities(ctx, "ClosingReportService.TopMenus", q, "DESC")
	})
}

func (s *ClosingReportService) BottomMenus(ctx context.Context, q StatsQuery) ([]MenuQuantity, error) {
	return cachedReport(ctx, s.cache, "bottom_menus", q, func() ([]MenuQuantity, error) {
		return s.menuQuantities(ctx, "ClosingReportService.BottomMenus", q, "ASC")
	})
}

func (s *ClosingReportService) menuQuantities(ctx context.Context, spanName string, q StatsQuery, direction string) ([]MenuQuantity, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	rows := make([]MenuQuantity, 0)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return scopeRange(tx.Model(&ClosingMenuItem{}), q.TenantCode, q.Start, q.End).
			Select("menu_name, SUM(qty) AS total_qty").
			Group("menu_name").
			Order("total_qty " + direction).
			Order("menu_name ASC").
			Limit(q.limit()).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// NotesByDateRange lists the non-empty remarks and wait notes, newest report first.
func (s *ClosingReportService) NotesByDateRange(ctx context.Context, q StatsQuery) ([]ReportNote, error) {
	return cachedReport(ctx, s.cache, "notes", q, func() ([]ReportNote, error) {
		ctx, span := tracer.Start(ctx, "ClosingReportService.NotesByDateRange")
		defer span.End()

		var reports []ClosingReport
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return scopeRange(tx, q.TenantCode, q.Start, q.End).
				Where("(rmrk <> '' OR wait_note <> '')").
				Select("comp_cd", "close_date", "rmrk", "wait_note").
				Order("close_date DESC").Order("comp_cd ASC").
				Find(&reports).Error
		})
		if err != nil {
			return nil, err
		}
		return flattenNotes(reports), nil
	})
}

func flattenNotes(reports []ClosingReport) []ReportNote {
	notes := make([]ReportNote, 0, len(reports))
	for _, r := range reports {
		if r.Remark != "" {
			notes = append(notes, ReportNote{CloseDate: r.CloseDate, TenantCode: r.TenantCode, Note: r.Remark})
		}
		if r.WaitNote != "" {
			notes = append(notes, ReportNote{CloseDate: r.CloseDate, TenantCode: r.TenantCode, Note: r.WaitNote})
		}
	}
	return notes
}

func (s *ClosingReportService) SalesSummary(ctx context.Context, q StatsQuery) (*SalesSummary, error) {
	return cachedReport(ctx, s.cache, "sales_summary", q, func() (*SalesSummary, error) {
		ctx, span := tracer.Start(ctx, "ClosingReportService.SalesSummary")
		defer span.End()

		var totals salesTotals
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return scopeRange(tx.Model(&ClosingReport{}), q.TenantCode, q.Start, q.End).
				Select("COUNT(*) AS report_count, " +
					"COALESCE(SUM(today_sales), 0) AS today_sales_total, " +
					"COALESCE(SUM(last_week_sales), 0) AS last_week_sales_total").
				Scan(&totals).Error
		})
		if err != nil {
			return nil, err
		}
		return summarize(q, totals), nil
	})
}

func summarize(q StatsQuery, totals salesTotals) *SalesSummary {
	summary := &SalesSummary{
		Start:              q.Start,
		End:                q.End,
		ReportCount:        totals.ReportCount,
		TodaySalesTotal:    totals.TodaySalesTotal,
		LastWeekSalesTotal: totals.LastWeekSalesTotal,
		AverageDailySales:  decimal.Zero,
	}
	today := decimal.NewFromInt(totals.TodaySalesTotal)
	if totals.ReportCount > 0 {
		summary.AverageDailySales = today.Div(decimal.NewFromInt(totals.ReportCount)).Round(2)
	}
	if totals.LastWeekSalesTotal != 0 {
		lastWeek := decimal.NewFromInt(totals.LastWeekSalesTotal)
		growth := today.Sub(lastWeek).Div(lastWeek).Mul(decimal.NewFromInt(100)).Round(2)
		summary.GrowthRate = &growth
	}
	return summary
}
