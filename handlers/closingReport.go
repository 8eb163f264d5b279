package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/middlewares"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

const registeredMessage = "마감 등록 완료"

// writeReportsXlsx renders the export; tests swap it to exercise failures.
var writeReportsXlsx = models.WriteClosingReportsXlsx

type closingReportHandler struct {
	svc ClosingReportService
}

// resolveTenant applies the principal's tenant. A tenant-bound principal may only name its own tenant.
func resolveTenant(ctx context.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	principal, _ := utils.GetTenantCodeFromContext(ctx)
	if principal == "" {
		return requested, nil
	}
	if requested == "" || requested == principal {
		return principal, nil
	}
	return "", fmt.Errorf("%w: %s", utils.ErrorTenantMismatch, requested)
}

func pathDate(c *gin.Context) (models.Date, error) {
	return models.ParseDate(c.Param("date"))
}

func statsQuery(c *gin.Context) (models.StatsQuery, error) {
	start, end, err := utils.ParseDateRange(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return models.StatsQuery{}, err
	}
	tenant, err := resolveTenant(c.Request.Context(), c.Query("comp_cd"))
	if err != nil {
		return models.StatsQuery{}, err
	}
	q := models.StatsQuery{TenantCode: tenant, Start: models.NewDate(start), End: models.NewDate(end)}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return models.StatsQuery{}, utils.NewValidationError("limit", "numeric")
		}
		q.Limit = n
	}
	return q, nil
}

func (h *closingReportHandler) register(c *gin.Context) {
	ctx := c.Request.Context()
	var input models.NewClosingReport
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, "register", bindError(err))
		return
	}
	tenant, err := resolveTenant(ctx, input.TenantCode)
	if err != nil {
		respondError(c, "register", err)
		return
	}
	input.TenantCode = tenant
	if err := middlewares.FillMenuNames(ctx, input.Items); err != nil {
		respondError(c, "register", err)
		return
	}

	report, err := h.svc.Register(ctx, &input)
	if err != nil {
		respondError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    registeredMessage,
		"comp_cd":    report.TenantCode,
		"close_date": report.CloseDate.String(),
	})
}

func (h *closingReportHandler) getByDate(c *gin.Context) {
	ctx := c.Request.Context()
	day, err := pathDate(c)
	if err != nil {
		respondError(c, "getByDate", err)
		return
	}
	tenant, err := resolveTenant(ctx, c.Query("comp_cd"))
	if err != nil {
		respondError(c, "getByDate", err)
		return
	}
	report, err := h.svc.GetByDate(ctx, tenant, day)
	if err != nil {
		respondError(c, "getByDate", err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "closing report not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *closingReportHandler) update(c *gin.Context) {
	ctx := c.Request.Context()
	day, err := pathDate(c)
	if err != nil {
		respondError(c, "update", err)
		return
	}
	var input models.NewClosingReport
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, "update", bindError(err))
		return
	}
	requested := input.TenantCode
	if requested == "" {
		requested = c.Query("comp_cd")
	}
	tenant, err := resolveTenant(ctx, requested)
	if err != nil {
		respondError(c, "update", err)
		return
	}
	if err := middlewares.FillMenuNames(ctx, input.Items); err != nil {
		respondError(c, "update", err)
		return
	}

	report, err := h.svc.Update(ctx, tenant, day, &input)
	if err != nil {
		respondError(c, "update", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *closingReportHandler) setClosed(c *gin.Context) {
	ctx := c.Request.Context()
	day, err := pathDate(c)
	if err != nil {
		respondError(c, "setClosed", err)
		return
	}
	var input models.ClosePatch
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, "setClosed", bindError(err))
		return
	}
	tenant, err := resolveTenant(ctx, c.Query("comp_cd"))
	if err != nil {
		respondError(c, "setClosed", err)
		return
	}
	report, err := h.svc.SetClosed(ctx, tenant, day, *input.IsClosed)
	if err != nil {
		respondError(c, "setClosed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *closingReportHandler) listByDateRange(c *gin.Context) {
	q, err := statsQuery(c)
	if err != nil {
		respondError(c, "listByDateRange", err)
		return
	}
	reports, err := h.svc.ListByDateRange(c.Request.Context(), q.TenantCode, q.Start, q.End)
	if err != nil {
		respondError(c, "listByDateRange", err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *closingReportHandler) topMenus(c *gin.Context) {
	q, err := statsQuery(c)
	if err != nil {
		respondError(c, "topMenus", err)
		return
	}
	rows, err := h.svc.TopMenus(c.Request.Context(), q)
	if err != nil {
		respondError(c, "topMenus", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *closingReportHandler) bottomMenus(c *gin.Context) {
	q, err := statsQuery(c)
	if err != nil {
		respondError(c, "bottomMenus", err)
		return
	}
	rows, err := h.svc.BottomMenus(c.Request.Context(), q)
	if err != nil {
		respondError(c, "bottomMenus", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *closingReportHandler) notes(c *gin.Context) {
	q, err := statsQuery(c)
	if err != nil {
		respondError(c, "notes", err)
		return
	}
	notes, err := h.svc.NotesByDateRange(c.Request.Context(), q)
	if err != nil {
		respondError(c, "notes", err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (h *closingReportHandler) summary(c *gin.Context) {
	q, err := statsQuery(c)
	if err != nil {
		respondError(c, "summary", err)
		return
	}
	summary, err := h.svc.SalesSummary(c.Request.Context(), q)
	if err != nil {
		respondError(c, "summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *closingReportHandler) export(c *gin.Context) {
	q, err := statsQuery(c)
	if err != nil {
		respondError(c, "export", err)
		return
	}
	reports, err := h.svc.ListByDateRange(c.Request.Context(), q.TenantCode, q.Start, q.End)
	if err != nil {
		respondError(c, "export", err)
		return
	}
	filename := fmt.Sprintf("closing_reports_%s_%s.xlsx", q.Start.Compact(), q.End.Compact())
	var buf bytes.Buffer
	if err := writeReportsXlsx(reports, &buf); err != nil {
		respondError(c, "export", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, utils.XlsxContentType, buf.Bytes())
}
