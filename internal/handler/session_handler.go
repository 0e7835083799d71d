// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"github.com/gin-gonic/gin"
	"net/http"
	"shop-assistant-go/internal/repository"
	"shop-assistant-go/internal/service"
	"shop-assistant-go/pkg/log"
)

// SessionHandler 处理会话列表、消息、删除、导出与停止请求。
type SessionHandler struct {
	chatService   service.ChatService
	exportService service.ExportService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(chatService service.ChatService, exportService service.ExportService) *SessionHandler {
	return &SessionHandler{chatService: chatService, exportService: exportService}
}

// respondError 将业务错误映射为统一的 JSON 响应。
func respondError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在", "data": nil})
		return
	}
	log.Errorf("请求处理失败 %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": err.Error(), "data": nil})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// ListSessions 按创建时间倒序返回全部会话。
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chatService.ListSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sessions)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.chatService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, session)
}

// GetMessages 按时间顺序返回会话消息。
func (h *SessionHandler) GetMessages(c *gin.Context) {
	messages, err := h.chatService.GetMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, messages)
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.chatService.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// ExportSession 处理 POST /sessions/:id/export?format=json|yaml
func (h *SessionHandler) ExportSession(c *gin.Context) {
	format := c.DefaultQuery("format", service.ExportFormatJSON)
	if format != service.ExportFormatJSON && format != service.ExportFormatYAML {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "format 仅支持 json 或 yaml", "data": nil})
		return
	}
	res, err := h.exportService.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, res)
}

// StopSession 向所有实例广播停止信号。
func (h *SessionHandler) StopSession(c *gin.Context) {
	n, err := h.chatService.StopSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"receivers": n})
}
