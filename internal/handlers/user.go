package handlers

import (
	"errors"
	"strconv"

	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	email := c.Query("email")
	role := c.Query("role")
	authType := c.Query("auth_type")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	users := []models.User{}
	var total int64

	query := h.db.Model(&models.User{})

	if email != "" {
		query = query.Where("email LIKE ?", "%"+email+"%")
	}
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if authType != "" {
		query = query.Where("auth_type = ?", authType)
	}

	if err := query.Count(&total).Error; err != nil {
		response.Error(c, err)
		return
	}
	if err := query.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"items":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type UpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Name     *string `json:"name"`
}

func (h *UserHandler) loadOther(c *gin.Context, verb string) (*models.User, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return nil, false
	}

	if uint(id) == middleware.GetUserID(c) {
		response.BadRequest(c, "cannot "+verb+" your own account")
		return nil, false
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "user not found")
		} else {
			response.Error(c, err)
		}
		return nil, false
	}
	return &user, true
}

func (h *UserHandler) Update(c *gin.Context) {
	user, ok := h.loadOther(c, "modify")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.Role != nil {
		if *req.Role != models.RoleAdmin && *req.Role != models.RoleUser {
			response.BadRequest(c, "invalid role, must be 'admin' or 'user'")
			return
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Name != nil {
		updates["name"] = *req.Name
	}

	if len(updates) == 0 {
		response.BadRequest(c, "no fields to update")
		return
	}

	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		response.Error(c, err)
		return
	}

	h.db.First(user, user.ID)
	response.OK(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	user, ok := h.loadOther(c, "delete")
	if !ok {
		return
	}

	if err := h.db.Delete(user).Error; err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "user deleted"})
}
