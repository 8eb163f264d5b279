package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	menuImportLockKey = "lock:menu-import"
	menuImportLockTTL = 2 * time.Minute
)

var ErrorImportInProgress = errors.New("another menu import is in progress")

// spreadsheet header -> menu field
var menuHeaderAliases = map[string]string{
	"카테고리":     "category",
	"category": "category",
	"메뉴명":      "name",
	"name":     "name",
	"판매단위":     "unit",
	"unit":     "unit",
	"판매금액":     "price",
	"price":    "price",
	"비고":       "note",
	"note":     "note",
}

// ParseMenuSheet reads the first sheet of f. Row 1 is the header; unknown columns are ignored.
func ParseMenuSheet(f *excelize.File) ([]*NewMenu, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}
	if len(rows) == 0 {
		return []*NewMenu{}, nil
	}

	columns := make(map[string]int)
	for idx, header := range rows[0] {
		if field, ok := menuHeaderAliases[strings.ToLower(strings.TrimSpace(header))]; ok {
			columns[field] = idx
		}
	}
	for _, required := range []string{"category", "name"} {
		if _, ok := columns[required]; !ok {
			return nil, utils.NewValidationError(required, "required column")
		}
	}

	cell := func(row []string, field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	menus := make([]*NewMenu, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		menu := &NewMenu{
			Category: cell(row, "category"),
			Name:     cell(row, "name"),
			Unit:     utils.NilIfEmpty(cell(row, "unit")),
			Price:    utils.SafeInt(cell(row, "price")),
			Note:     utils.NilIfEmpty(cell(row, "note")),
		}
		if menu.Category == "" || menu.Name == "" {
			return nil, fmt.Errorf("row %d: %w", i+2, utils.NewValidationError("category,name", "required"))
		}
		menus = append(menus, menu)
	}
	return menus, nil
}

func ReadMenusFromXlsx(r io.Reader) ([]*NewMenu, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return ParseMenuSheet(f)
}

// ImportMenusFromXlsx parses r and inserts every row in one transaction while holding
// the import lock. Without redis the import runs unlocked.
func (s *MenuService) ImportMenusFromXlsx(ctx context.Context, r io.Reader, redis *config.Redis) ([]*Menu, error) {
	inputs, err := ReadMenusFromXlsx(r)
	if err != nil {
		return nil, err
	}

	if redis == nil {
		config.GetLogger().Warn("menu import running without redis lock")
		return s.Import(ctx, inputs)
	}
	lock, err := redis.Obtain(ctx, menuImportLockKey, menuImportLockTTL)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrorImportInProgress
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(config.GetLogger(), "menuImport.go", "ImportMenusFromXlsx", "release import lock", menuImportLockKey, err)
		}
	}()
	return s.Import(ctx, inputs)
}
