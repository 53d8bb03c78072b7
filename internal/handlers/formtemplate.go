package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emineral/emineral-backend/internal/services"
)

type FormTemplateHandler struct {
	templateService services.FormTemplateService
}

func NewFormTemplateHandler(templateService services.FormTemplateService) *FormTemplateHandler {
	return &FormTemplateHandler{templateService: templateService}
}

func (h *FormTemplateHandler) Get(c *gin.Context) {
	RespondData(c, http.StatusOK, gin.H{
		"name":    h.templateService.Name(),
		"version": h.templateService.Version(),
		"fields":  h.templateService.Fields(),
	})
}
