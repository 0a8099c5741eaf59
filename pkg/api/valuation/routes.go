package valuation

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the worksheet endpoints:
//
//	POST   /worksheets              create from {method, dataset}
//	GET    /worksheets/:id          result, checks and every cell
//	PUT    /worksheets/:id/cells    user edit {path, value}
//	PUT    /worksheets/:id/surveys  replace the comparison columns
//	PUT    /worksheets/:id/rows     replace the qualitative rows
//	GET    /worksheets/:id/report   Markdown, or HTML with ?format=html
//	DELETE /worksheets/:id          close
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	ws := rg.Group("/worksheets")
	ws.POST("", h.HandleCreate)
	ws.GET("/:id", h.HandleGet)
	ws.PUT("/:id/cells", h.HandleSetCell)
	ws.PUT("/:id/surveys", h.HandleSetSurveys)
	ws.PUT("/:id/rows", h.HandleSetRows)
	ws.GET("/:id/report", h.HandleReport)
	ws.DELETE("/:id", h.HandleDelete)
}
