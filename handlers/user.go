package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
)

type userHandler struct {
	svc UserService
}

type loginInput struct {
	Name     string `json:"name" form:"username" binding:"required"`
	Password string `json:"pwd" form:"password" binding:"required"`
}

// login accepts JSON {name, pwd} or an OAuth2 password form (username, password).
func (h *userHandler) login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBind(&input); err != nil {
		respondError(c, "login", bindError(err))
		return
	}
	info, err := h.svc.Login(c.Request.Context(), input.Name, input.Password)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *userHandler) logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		respondError(c, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func userId(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("id", "numeric")
	}
	return id, nil
}

func (h *userHandler) create(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, "user.create", bindError(err))
		return
	}
	user, err := h.svc.Create(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "user.create", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *userHandler) list(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, "user.list", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *userHandler) get(c *gin.Context) {
	id, err := userId(c)
	if err != nil {
		respondError(c, "user.get", err)
		return
	}
	user, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "user.get", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *userHandler) update(c *gin.Context) {
	id, err := userId(c)
	if err != nil {
		respondError(c, "user.update", err)
		return
	}
	var input models.UpdateUser
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, "user.update", bindError(err))
		return
	}
	user, err := h.svc.Update(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "user.update", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *userHandler) delete(c *gin.Context) {
	id, err := userId(c)
	if err != nil {
		respondError(c, "user.delete", err)
		return
	}
	user, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, "user.delete", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
