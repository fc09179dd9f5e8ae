package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kasirkuy/internal/receipt"
	"kasirkuy/internal/uploads"
)

type receiptRequest struct {
	Items []receipt.Item `json:"items"`
	Total float64        `json:"total"`
}

// GenerateReceipt handles POST /api/generate-receipt. The PDF lands in the
// uploads directory and is reaped by the sweep after the retention window.
func (s *Server) GenerateReceipt(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	filename, err := s.receipts.Render(req.Items, req.Total)
	if err != nil {
		if errors.Is(err, receipt.ErrNoItems) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No items provided"})
			return
		}
		s.internalError(c, "render receipt", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Receipt generated successfully",
		"pdf_url": uploads.URLPrefix + filename,
	})
}
