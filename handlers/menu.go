package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

type menuHandler struct {
	svc   MenuService
	redis *config.Redis
}

func (h *menuHandler) create(c *gin.Context) {
	var input models.NewMenu
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, "menu.create", bindError(err))
		return
	}
	menu, err := h.svc.Create(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "menu.create", err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (h *menuHandler) list(c *gin.Context) {
	menus, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, "menu.list", err)
		return
	}
	c.JSON(http.StatusOK, menus)
}

func (h *menuHandler) get(c *gin.Context) {
	menu, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
			return
		}
		respondError(c, "menu.get", err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (h *menuHandler) delete(c *gin.Context) {
	if _, err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
			return
		}
		respondError(c, "menu.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
}

// importXlsx takes a multipart "file" field holding a .xlsx workbook.
func (h *menuHandler) importXlsx(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, "menu.import", utils.NewValidationError("file", "required"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
		respondError(c, "menu.import", utils.NewValidationError("file", "xlsx"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, "menu.import", err)
		return
	}
	defer file.Close()

	menus, err := h.svc.ImportMenusFromXlsx(c.Request.Context(), file, h.redis)
	if err != nil {
		respondError(c, "menu.import", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(menus)})
}
