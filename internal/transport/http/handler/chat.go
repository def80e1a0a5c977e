package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/app"
	"zeus-insurance/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	ImageBase64 string `json:"image_base64"`
	LLMModel    string `json:"llm_model"`
}

func (r ChatRequest) input() app.ChatInput {
	return app.ChatInput{
		SessionID:   r.SessionID,
		Message:     r.Message,
		ImageBase64: r.ImageBase64,
		Model:       r.LLMModel,
	}
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), req.input())
	if err != nil {
		if isChatInputError(err) {
			response.Detail(c, http.StatusBadRequest, err.Error())
			return
		}
		slog.ErrorContext(c.Request.Context(), "chat failed", "session_id", req.SessionID, "err", err)
		response.Detail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stream answers with server-sent events, one JSON object per event, ending
// with either {done} or {error}.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.ImageBase64) == "" {
		response.Detail(c, http.StatusBadRequest, app.ErrMessageEmpty.Error())
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Detail(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	write := func(payload gin.H) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := c.Writer.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.chatService.StreamChat(c.Request.Context(), req.input(), func(ev agent.Event) error {
		return write(gin.H{string(ev.Kind): ev.Data})
	})
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "chat stream failed", "session_id", req.SessionID, "err", err)
		_ = write(gin.H{"error": err.Error()})
		return
	}
	_ = write(gin.H{"done": true, "session_id": result.SessionID, "model_used": result.ModelUsed})
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), c.Param("session_id"), limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	response.OK(c, history)
}

func isChatInputError(err error) bool {
	return errors.Is(err, app.ErrMessageEmpty) ||
		errors.Is(err, app.ErrInvalidImage) ||
		errors.Is(err, ai.ErrUnknownModel) ||
		errors.Is(err, app.ErrInvalidInput)
}
