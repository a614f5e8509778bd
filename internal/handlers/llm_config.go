package handlers

import (
	"strconv"

	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

type LLMConfigHandler struct {
	llmConfigService *services.LLMConfigService
}

func NewLLMConfigHandler(llmConfigService *services.LLMConfigService) *LLMConfigHandler {
	return &LLMConfigHandler{llmConfigService: llmConfigService}
}

func parseConfigID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid config id")
		return 0, false
	}
	return uint(id), true
}

func (h *LLMConfigHandler) List(c *gin.Context) {
	var req services.LLMConfigListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.llmConfigService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, resp)
}

func (h *LLMConfigHandler) GetByID(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	cfg, err := h.llmConfigService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cfg)
}

func (h *LLMConfigHandler) Create(c *gin.Context) {
	var req services.CreateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.llmConfigService.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, cfg)
}

func (h *LLMConfigHandler) Update(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	var req services.UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.llmConfigService.Update(id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, cfg)
}

func (h *LLMConfigHandler) Delete(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}

	if err := h.llmConfigService.Delete(id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "config deleted successfully"})
}

func (h *LLMConfigHandler) GetActive(c *gin.Context) {
	configs, err := h.llmConfigService.GetActive()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"items": configs})
}
