// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"shop-assistant-go/internal/assistant"
	"shop-assistant-go/internal/repository"
	"shop-assistant-go/internal/service"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/token"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// 引擎在流开始后失败时发给客户端的兜底错误。
const streamFailedExplanation = "Üzgünüm, isteğiniz işlenirken beklenmeyen bir hata oluştu."

// ChatHandler 负责处理 SSE 与 WebSocket 两种对话流。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

// sseWriter 在第一个事件到来时才写响应头，因此会话不存在等前置错误仍可返回普通 JSON。
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) emit(ev assistant.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !w.started {
		h := w.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.c.Status(http.StatusOK)
		w.started = true
	}
	if _, err := fmt.Fprintf(w.c.Writer, "data: %s\n\n", b); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// Stream 处理 GET /api/v1/chat/stream?prompt=...&sessionId=...
func (h *ChatHandler) Stream(c *gin.Context) {
	prompt := strings.TrimSpace(c.Query("prompt"))
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "prompt 不能为空", "data": nil})
		return
	}
	sessionID := strings.TrimSpace(c.Query("sessionId"))

	ctx := c.Request.Context()
	w := &sseWriter{c: c}
	err := h.chatService.StreamChat(ctx, prompt, sessionID, w.emit)
	if err == nil {
		return
	}

	if !w.started {
		respondError(c, err)
		return
	}
	if isCancellation(ctx, err) {
		log.Infof("SSE 流已中断: %v", err)
		return
	}
	log.Errorf("处理流式响应失败: %v", err)
	_ = w.emit(assistant.ErrorResult(streamFailedExplanation, err.Error()))
}

// wsCommand 是 WebSocket 上客户端发来的指令。
type wsCommand struct {
	Type      string `json:"type"`
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId"`
}

// wsConn 串行化对同一连接的写操作。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// Handle 处理 GET /chat/:token 的 WebSocket 连接。
// 每条文本消息是 {"prompt","sessionId"} 或 {"type":"stop"}；同一连接同时只处理一轮对话。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	ws := &wsConn{conn: conn}
	connCtx, cancelConn := context.WithCancel(c.Request.Context())
	defer cancelConn()

	var (
		mu         sync.Mutex
		cancelTurn context.CancelFunc
		turns      sync.WaitGroup
	)
	defer turns.Wait()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Infof("WebSocket 连接关闭: %v", err)
			cancelConn()
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			_ = ws.writeJSON(assistant.ErrorResult("Geçersiz mesaj biçimi.", err.Error()))
			continue
		}

		if cmd.Type == "stop" {
			mu.Lock()
			if cancelTurn != nil {
				cancelTurn()
			}
			mu.Unlock()
			continue
		}

		prompt := strings.TrimSpace(cmd.Prompt)
		if prompt == "" {
			_ = ws.writeJSON(assistant.ErrorResult("Lütfen bir soru yazın.", "empty prompt"))
			continue
		}

		mu.Lock()
		busy := cancelTurn != nil
		var turnCtx context.Context
		if !busy {
			turnCtx, cancelTurn = context.WithCancel(connCtx)
		}
		mu.Unlock()
		if busy {
			_ = ws.writeJSON(assistant.ErrorResult("Önceki isteğiniz hâlâ işleniyor.", "turn in progress"))
			continue
		}

		turns.Add(1)
		go func(ctx context.Context, prompt, sessionID string) {
			defer turns.Done()
			defer func() {
				mu.Lock()
				if cancelTurn != nil {
					cancelTurn()
				}
				cancelTurn = nil
				mu.Unlock()
			}()

			started := false
			err := h.chatService.StreamChat(ctx, prompt, sessionID, func(ev assistant.Event) error {
				started = true
				return ws.writeJSON(ev)
			})
			if err == nil || isCancellation(ctx, err) {
				return
			}
			log.Errorf("处理 WebSocket 流式响应失败: %v", err)
			explanation := streamFailedExplanation
			if !started && errors.Is(err, repository.ErrSessionNotFound) {
				explanation = "Oturum bulunamadı."
			}
			_ = ws.writeJSON(assistant.ErrorResult(explanation, err.Error()))
		}(turnCtx, prompt, strings.TrimSpace(cmd.SessionID))
	}
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
