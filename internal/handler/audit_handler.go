package handler

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/internal/service"
	"strconv"
)

// AuditHandler 处理查询审计检索请求。
type AuditHandler struct {
	auditService service.AuditService
}

// NewAuditHandler 创建一个新的 AuditHandler。
func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// SearchQueries 处理 GET /api/v1/audit/queries?q=&sessionId=&success=&size=
func (h *AuditHandler) SearchQueries(c *gin.Context) {
	q := model.AuditQuery{
		Text:      c.Query("q"),
		SessionID: c.Query("sessionId"),
	}
	if s := c.Query("success"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "success 参数无效", "data": nil})
			return
		}
		q.Success = &b
	}
	if s := c.Query("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "size 参数无效", "data": nil})
			return
		}
		q.Size = n
	}

	res, err := h.auditService.Search(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}
