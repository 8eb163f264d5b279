package models

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var reportColumns = []string{
	"comp_cd", "close_date", "today_sales", "last_week_sales", "emp_cnt", "tb_cnt",
	"tb_detail", "rmrk", "wait_note", "pd_amt", "is_closed", "crdt",
}

var itemColumns = []string{"comp_cd", "close_date", "menu_id", "menu_name", "qty", "crdt"}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := config.OpenDatabase(gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}))
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return db, mock
}

func sqlText(s string) string { return regexp.QuoteMeta(s) }

func testDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func sales(v int64) *int64 { return &v }

func reportRow(tenant string, day Date, closed bool) *sqlmock.Rows {
	return sqlmock.NewRows(reportColumns).
		AddRow(tenant, day.Time(), 1000, 900, 3, 10, "", "note", "", "", closed, time.Now())
}

type recordingPublisher struct {
	messages []config.PubSubMessage
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, msg config.PubSubMessage) error {
	p.messages = append(p.messages, msg)
	return p.err
}

func TestRegisterInsertsHeaderThenItems(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText("INSERT INTO `closing_reports`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText("INSERT INTO `closing_menu_items`")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	report, err := svc.Register(context.Background(), &NewClosingReport{
		TenantCode: "C001",
		CloseDate:  testDate(t, "20240105"),
		TodaySales: sales(5000),
		Items: []NewClosingMenuItem{
			{MenuId: "M1", MenuName: "Soup", Quantity: 2},
			{MenuId: "M2", MenuName: "Rice", Quantity: 0},
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if report.IsClosed || len(report.Items) != 2 || report.CreatedAt.IsZero() {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Items[0].TenantCode != "C001" || report.Items[0].CloseDate != report.CloseDate {
		t.Fatalf("items must carry the report key: %+v", report.Items[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterDuplicateKey(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText("INSERT INTO `closing_reports`")).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), &NewClosingReport{
		TenantCode: "C001",
		CloseDate:  testDate(t, "2024-01-05"),
		TodaySales: sales(1),
		Items:      []NewClosingMenuItem{},
	})
	if !errors.Is(err, utils.ErrorDuplicateKey) {
		t.Fatalf("want ErrorDuplicateKey, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterItemFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)

	mock.ExpectBegin()
	mock.ExpectExec(sqlText("INSERT INTO `closing_reports`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText("INSERT INTO `closing_menu_items`")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), &NewClosingReport{
		TenantCode: "C001",
		CloseDate:  testDate(t, "20240105"),
		TodaySales: sales(1),
		Items:      []NewClosingMenuItem{{MenuId: "M1", Quantity: 1}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewClosingReportService(db)
	day := testDate(t, "20240105")

	cases := map[string]*NewClosingReport{
		"missing tenant":   {CloseDate: day, TodaySales: sales(1), Items: []NewClosingMenuItem{}},
		"missing date":     {TenantCode: "C001", TodaySales: sales(1), Items: []NewClosingMenuItem{}},
		"missing sales":    {TenantCode: "C001", CloseDate: day, Items: []NewClosingMenuItem{}},
		"missing items":    {TenantCode: "C001", CloseDate: day, TodaySales: sales(1)},
		"negative qty":     {TenantCode: "C001", CloseDate: day, TodaySales: sales(1), Items: []NewClosingMenuItem{{MenuId: "M1", Quantity: -1}}},
		"duplicate menu":   {TenantCode: "C001", CloseDate: day, TodaySales: sales(1), Items: []NewClosingMenuItem{{MenuId: "M1"}, {MenuId: "M1"}}},
		"blank menu id":    {TenantCode: "C001", CloseDate: day, TodaySales: sales(1), Items: []NewClosingMenuItem{{MenuId: " "}}},
	}
	for name, input := range cases {
		if _, err := svc.Register(context.Background(), input); !errors.Is(err, utils.ErrorValidation) {
			t.Fatalf("%s: want ErrorValidation, got %v", name, err)
		}
	}
}

func TestGetByDateAttachesItems(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)
	day := testDate(t, "20240105")

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_reports`")).WillReturnRows(reportRow("C001", day, false))
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_menu_items`")).WillReturnRows(
		sqlmock.NewRows(itemColumns).
			AddRow("C001", day.Time(), "M1", "Soup", 2, time.Now()).
			AddRow("C001", day.Time(), "M2", "Rice", 5, time.Now()),
	)
	mock.ExpectCommit()

	report, err := svc.GetByDate(context.Background(), "C001", day)
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if report == nil || len(report.Items) != 2 || report.Items[1].MenuName != "Rice" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.CloseDate.String() != "2024-01-05" {
		t.Fatalf("close_date: %s", report.CloseDate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByDateAbsentReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_reports`")).WillReturnRows(sqlmock.NewRows(reportColumns))
	mock.ExpectCommit()

	report, err := svc.GetByDate(context.Background(), "", testDate(t, "20240105"))
	if err != nil || report != nil {
		t.Fatalf("want nil,nil got %v,%v", report, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateReplacesItems(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)
	day := testDate(t, "20240105")

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("FOR UPDATE")).WillReturnRows(reportRow("C001", day, false))
	mock.ExpectExec(sqlText("UPDATE `closing_reports` SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText("DELETE FROM `closing_menu_items`")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(sqlText("INSERT INTO `closing_menu_items`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := svc.Update(context.Background(), "", day, &NewClosingReport{
		TodaySales: sales(7000),
		Remark:     "rain",
		Items:      []NewClosingMenuItem{{MenuId: "M9", MenuName: "Tea", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if report.TenantCode != "C001" || report.TodaySales != 7000 || report.Remark != "rain" || len(report.Items) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateEmptyItemsSkipsInsert(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)
	day := testDate(t, "20240105")

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("FOR UPDATE")).WillReturnRows(reportRow("C001", day, false))
	mock.ExpectExec(sqlText("UPDATE `closing_reports` SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText("DELETE FROM `closing_menu_items`")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	report, err := svc.Update(context.Background(), "C001", day, &NewClosingReport{TodaySales: sales(1), Items: []NewClosingMenuItem{}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(report.Items) != 0 {
		t.Fatalf("want zero items, got %d", len(report.Items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateClosedOrMissingIsNotFound(t *testing.T) {
	day := testDate(t, "20240105")
	for name, rows := range map[string]*sqlmock.Rows{
		"closed":  reportRow("C001", day, true),
		"missing": sqlmock.NewRows(reportColumns),
	} {
		db, mock := newMockDB(t)
		svc := NewClosingReportService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(sqlText("FOR UPDATE")).WillReturnRows(rows)
		mock.ExpectRollback()

		_, err := svc.Update(context.Background(), "C001", day, &NewClosingReport{TodaySales: sales(1), Items: []NewClosingMenuItem{}})
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			t.Fatalf("%s: want ErrorRecordNotFound, got %v", name, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("%s: expectations: %v", name, err)
		}
	}
}

func TestSetClosedPublishesAfterCommit(t *testing.T) {
	db, mock := newMockDB(t)
	publisher := &recordingPublisher{}
	svc := NewClosingReportService(db, WithEventPublisher(publisher))
	day := testDate(t, "20240105")

	// closing an already closed report is still persisted
	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("FOR UPDATE")).WillReturnRows(reportRow("C001", day, true))
	mock.ExpectExec(sqlText("UPDATE `closing_reports` SET `is_closed`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_menu_items`")).WillReturnRows(sqlmock.NewRows(itemColumns))
	mock.ExpectCommit()

	report, err := svc.SetClosed(context.Background(), "C001", day, true)
	if err != nil {
		t.Fatalf("SetClosed: %v", err)
	}
	if !report.IsClosed || report.Items == nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(publisher.messages) != 1 || publisher.messages[0].Action != ReportActionClosed || publisher.messages[0].CloseDate != "2024-01-05" {
		t.Fatalf("unexpected events: %+v", publisher.messages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetClosedPublisherFailureIsIgnored(t *testing.T) {
	db, mock := newMockDB(t)
	publisher := &recordingPublisher{err: errors.New("pubsub down")}
	svc := NewClosingReportService(db, WithEventPublisher(publisher))
	day := testDate(t, "20240105")

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("FOR UPDATE")).WillReturnRows(reportRow("C001", day, true))
	mock.ExpectExec(sqlText("UPDATE `closing_reports` SET `is_closed`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_menu_items`")).WillReturnRows(sqlmock.NewRows(itemColumns))
	mock.ExpectCommit()

	report, err := svc.SetClosed(context.Background(), "C001", day, false)
	if err != nil || report.IsClosed {
		t.Fatalf("reopen: %v %+v", err, report)
	}
	if publisher.messages[0].Action != ReportActionReopened {
		t.Fatalf("action: %s", publisher.messages[0].Action)
	}
}

func TestSetClosedMissing(t *testing.T) {
	db, mock := newMockDB(t)
	publisher := &recordingPublisher{}
	svc := NewClosingReportService(db, WithEventPublisher(publisher))

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("FOR UPDATE")).WillReturnRows(sqlmock.NewRows(reportColumns))
	mock.ExpectRollback()

	if _, err := svc.SetClosed(context.Background(), "", testDate(t, "20240105"), true); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("want ErrorRecordNotFound, got %v", err)
	}
	if len(publisher.messages) != 0 {
		t.Fatalf("no event expected on failure")
	}
}

func TestListByDateRangeGroupsItems(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)
	d1 := testDate(t, "20240101")
	d2 := testDate(t, "20240102")

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_reports`")).WillReturnRows(
		sqlmock.NewRows(reportColumns).
			AddRow("C001", d1.Time(), 1, 0, 0, 0, "", "", "", "", false, time.Now()).
			AddRow("C001", d2.Time(), 2, 0, 0, 0, "", "", "", "", true, time.Now()),
	)
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_menu_items`")).WillReturnRows(
		sqlmock.NewRows(itemColumns).AddRow("C001", d2.Time(), "M1", "Soup", 3, time.Now()),
	)
	mock.ExpectCommit()

	reports, err := svc.ListByDateRange(context.Background(), "C001", d1, d2)
	if err != nil {
		t.Fatalf("ListByDateRange: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("want 2 reports, got %d", len(reports))
	}
	if reports[0].Items == nil || len(reports[0].Items) != 0 || len(reports[1].Items) != 1 {
		t.Fatalf("items not grouped: %+v / %+v", reports[0].Items, reports[1].Items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByDateRangeEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewClosingReportService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText("SELECT * FROM `closing_reports`")).WillReturnRows(sqlmock.NewRows(reportColumns))
	mock.ExpectCommit()

	reports, err := svc.ListByDateRange(context.Background(), "", testDate(t, "20240101"), testDate(t, "20240131"))
	if err != nil || reports == nil || len(reports) != 0 {
		t.Fatalf("want empty slice, got %v %v", reports, err)
	}
}
