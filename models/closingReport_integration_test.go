package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func int64Ptr(v int64) *int64 { return &v }

func TestClosingReportLifecycle(t *testing.T) {
	requireIntegration(t)

	ctx := context.Background()
	db := openIntegrationDB(t)
	svc := models.NewClosingReportService(db)
	day := mustDate(t, "20240105")

	created, err := svc.Register(ctx, &models.NewClosingReport{
		TenantCode: "C001",
		CloseDate:  day,
		TodaySales: int64Ptr(150000),
		Remark:     "busy lunch",
		Items: []models.NewClosingMenuItem{
			{MenuId: "M1", MenuName: "Kimchi Stew", Quantity: 12},
			{MenuId: "M2", MenuName: "Bibimbap", Quantity: 7},
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.IsClosed {
		t.Fatalf("new report must be open")
	}

	_, err = svc.Register(ctx, &models.NewClosingReport{
		TenantCode: "C001",
		CloseDate:  day,
		TodaySales: int64Ptr(1),
		Items:      []models.NewClosingMenuItem{},
	})
	if !errors.Is(err, utils.ErrorDuplicateKey) {
		t.Fatalf("second Register: want ErrorDuplicateKey, got %v", err)
	}

	got, err := svc.GetByDate(ctx, "C001", mustDate(t, "2024-01-05"))
	if err != nil || got == nil {
		t.Fatalf("GetByDate: %v %v", got, err)
	}
	if len(got.Items) != 2 || got.TodaySales != 150000 {
		t.Fatalf("unexpected report: %+v", got)
	}

	updated, err := svc.Update(ctx, "C001", day, &models.NewClosingReport{
		TodaySales:    int64Ptr(160000),
		LastWeekSales: 120000,
		WaitNote:      "3 groups waited",
		Items:         []models.NewClosingMenuItem{{MenuId: "M3", MenuName: "Japchae", Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.TodaySales != 160000 || len(updated.Items) != 1 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	got, _ = svc.GetByDate(ctx, "C001", day)
	if len(got.Items) != 1 || got.Items[0].MenuId != "M3" {
		t.Fatalf("items were not replaced: %+v", got.Items)
	}
	if d := got.CreatedAt.Sub(created.CreatedAt); d > time.Second || d < -time.Second {
		t.Fatalf("crdt changed on update: %v -> %v", created.CreatedAt, got.CreatedAt)
	}

	for i := 0; i < 2; i++ {
		closed, err := svc.SetClosed(ctx, "C001", day, true)
		if err != nil || !closed.IsClosed {
			t.Fatalf("SetClosed #%d: %v %v", i, closed, err)
		}
	}
	_, err = svc.Update(ctx, "C001", day, &models.NewClosingReport{TodaySales: int64Ptr(1), Items: []models.NewClosingMenuItem{}})
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("Update of closed report: want ErrorRecordNotFound, got %v", err)
	}

	if _, err := svc.SetClosed(ctx, "C001", day, false); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := svc.Update(ctx, "C001", day, &models.NewClosingReport{TodaySales: int64Ptr(2), Items: []models.NewClosingMenuItem{}}); err != nil {
		t.Fatalf("Update after reopen: %v", err)
	}
	got, _ = svc.GetByDate(ctx, "C001", day)
	if len(got.Items) != 0 {
		t.Fatalf("empty item list must leave zero items, got %d", len(got.Items))
	}

	missing, err := svc.GetByDate(ctx, "C001", mustDate(t, "20240106"))
	if err != nil || missing != nil {
		t.Fatalf("absent GetByDate: want nil,nil got %v,%v", missing, err)
	}
	if _, err := svc.SetClosed(ctx, "C001", mustDate(t, "20240106"), true); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("SetClosed absent: want ErrorRecordNotFound, got %v", err)
	}
}

func TestClosingReportStats(t *testing.T) {
	requireIntegration(t)

	ctx := context.Background()
	db := openIntegrationDB(t)
	svc := models.NewClosingReportService(db)

	seed := []*models.NewClosingReport{
		{TenantCode: "C001", CloseDate: mustDate(t, "20240101"), TodaySales: int64Ptr(100), LastWeekSales: 80, Remark: "r1",
			Items: []models.NewClosingMenuItem{{MenuId: "A", MenuName: "A", Quantity: 5}, {MenuId: "B", MenuName: "B", Quantity: 1}}},
		{TenantCode: "C001", CloseDate: mustDate(t, "20240102"), TodaySales: int64Ptr(200), LastWeekSales: 120, Remark: "r2", WaitNote: "w2",
			Items: []models.NewClosingMenuItem{{MenuId: "A", MenuName: "A", Quantity: 3}, {MenuId: "C", MenuName: "C", Quantity: 2}}},
		{TenantCode: "C001", CloseDate: mustDate(t, "20240110"), TodaySales: int64Ptr(999),
			Items: []models.NewClosingMenuItem{{MenuId: "B", MenuName: "B", Quantity: 50}}},
	}
	for _, r := range seed {
		if _, err := svc.Register(ctx, r); err != nil {
			t.Fatalf("seed %s: %v", r.CloseDate, err)
		}
	}

	q := models.StatsQuery{Start: mustDate(t, "20240101"), End: mustDate(t, "20240102")}

	list, err := svc.ListByDateRange(ctx, "", q.Start, q.End)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByDateRange: %d %v", len(list), err)
	}
	if list[0].CloseDate.String() != "2024-01-01" || len(list[1].Items) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	top, err := svc.TopMenus(ctx, q)
	if err != nil {
		t.Fatalf("TopMenus: %v", err)
	}
	if len(top) != 3 || top[0].MenuName != "A" || top[0].TotalQty != 8 {
		t.Fatalf("unexpected top menus: %+v", top)
	}
	bottom, err := svc.BottomMenus(ctx, models.StatsQuery{Start: q.Start, End: q.End, Limit: 1})
	if err != nil {
		t.Fatalf("BottomMenus: %v", err)
	}
	if len(bottom) != 1 || bottom[0].MenuName != "B" || bottom[0].TotalQty != 1 {
		t.Fatalf("unexpected bottom menus: %+v", bottom)
	}

	notes, err := svc.NotesByDateRange(ctx, q)
	if err != nil {
		t.Fatalf("NotesByDateRange: %v", err)
	}
	want := []string{"r2", "w2", "r1"}
	if len(notes) != len(want) {
		t.Fatalf("notes: want %v got %+v", want, notes)
	}
	for i, n := range notes {
		if n.Note != want[i] {
			t.Fatalf("notes[%d]: want %q got %q", i, want[i], n.Note)
		}
	}

	summary, err := svc.SalesSummary(ctx, q)
	if err != nil {
		t.Fatalf("SalesSummary: %v", err)
	}
	if summary.ReportCount != 2 || summary.TodaySalesTotal != 300 || summary.GrowthRate == nil || summary.GrowthRate.String() != "50" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
