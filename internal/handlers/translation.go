package handlers

import (
	"unicode/utf8"

	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

// MyMemory rejects longer queries.
const maxTranslateRunes = 500

type TranslationHandler struct {
	translator *services.Translator
}

func NewTranslationHandler(translator *services.Translator) *TranslationHandler {
	return &TranslationHandler{translator: translator}
}

type translateRequest struct {
	Text string `form:"text" json:"text"`
	Lang string `form:"lang" json:"lang"`
}

// Translate returns text in the requested language, or the input unchanged
// when translation is unavailable
// GET /api/translate?text=&lang=, POST /api/translate
func (h *TranslationHandler) Translate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Lang == "" {
		req.Lang = "en"
	}
	if !services.IsSupportedLanguage(req.Lang) {
		response.BadRequest(c, "unsupported language: "+req.Lang)
		return
	}
	if utf8.RuneCountInString(req.Text) > maxTranslateRunes {
		response.BadRequest(c, "text is too long to translate")
		return
	}

	response.OK(c, h.translator.Translate(c.Request.Context(), req.Text, req.Lang))
}

// Languages lists the supported target languages
// GET /api/translate/languages
func (h *TranslationHandler) Languages(c *gin.Context) {
	response.OK(c, gin.H{"languages": services.SupportedLanguages})
}
