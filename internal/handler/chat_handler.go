package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rag-chatbot-go/internal/middleware"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责问答接口与 WebSocket 流式连接。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{chatService: chatService, jwtManager: jwtManager}
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chat 处理 POST /chat，返回完整回答。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, "message 不能为空")
		return
	}
	org, exists := organizationOf(c)
	if !exists {
		return
	}
	answer := h.chatService.Answer(c.Request.Context(), req.Message, &org)
	ok(c, "success", answer)
}

// chunkWriter 把每个流式分块包装为 {"chunk": "..."} 的 JSON 帧。
type chunkWriter struct {
	conn *websocket.Conn
}

func (w chunkWriter) WriteMessage(messageType int, data []byte) error {
	b, err := json.Marshal(map[string]string{"chunk": string(data)})
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, b)
}

// Stream 处理 GET /chat/ws/:token。每条文本消息是一次提问，回答以分块帧推送，最后发送 completion 帧。
func (h *ChatHandler) Stream(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		fail(c, http.StatusUnauthorized, "无效的 token")
		return
	}
	middleware.SetClaims(c, claims)
	org, _ := middleware.OrganizationID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，用户: %s, 组织: %d", claims.Username, org)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			return
		}
		query := strings.TrimSpace(string(message))
		if query == "" {
			continue
		}

		answer := h.chatService.StreamAnswer(c.Request.Context(), query, &org, chunkWriter{conn: conn})
		if err := sendCompletion(conn, answer); err != nil {
			log.Warnf("发送 completion 通知失败: %v", err)
			return
		}
	}
}

func sendCompletion(conn *websocket.Conn, answer *model.ChatAnswer) error {
	b, err := json.Marshal(map[string]interface{}{
		"type":         "completion",
		"status":       "finished",
		"sources":      answer.Sources,
		"confidence":   answer.Confidence,
		"chunks_found": answer.ChunksFound,
		"timestamp":    time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
