package models

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	exportReportSheet = "Reports"
	exportItemSheet   = "Items"
)

var (
	exportReportHeadings = []interface{}{
		"comp_cd", "close_date", "today_sales", "last_week_sales", "emp_cnt", "tb_cnt",
		"tb_detail", "rmrk", "wait_note", "pd_amt", "is_closed", "crdt",
	}
	exportItemHeadings = []interface{}{"comp_cd", "close_date", "menu_id", "menu_name", "qty"}
)

// BuildClosingReportsWorkbook lays out reports on one sheet and their items on another.
func BuildClosingReportsWorkbook(reports []*ClosingReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportReportSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(exportItemSheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(exportReportSheet, "A1", &exportReportHeadings); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportItemSheet, "A1", &exportItemHeadings); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, r := range reports {
		values := []interface{}{
			r.TenantCode, r.CloseDate.String(), r.TodaySales, r.LastWeekSales, r.EmployeeCount, r.TableCount,
			r.TableDetail, r.Remark, r.WaitNote, r.PrepaidAmount, r.IsClosed, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(exportReportSheet, "A"+fmt.Sprint(i+2), &values); err != nil {
			return nil, err
		}
		for _, item := range r.Items {
			itemValues := []interface{}{r.TenantCode, r.CloseDate.String(), item.MenuId, item.MenuName, item.Quantity}
			if err := f.SetSheetRow(exportItemSheet, "A"+fmt.Sprint(itemRow), &itemValues); err != nil {
				return nil, err
			}
			itemRow++
		}
	}
	return f, nil
}

func WriteClosingReportsXlsx(reports []*ClosingReport, w io.Writer) error {
	f, err := BuildClosingReportsWorkbook(reports)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
