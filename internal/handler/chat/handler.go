package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/boundary-tools/backend/internal/model/turn"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/governor"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/usage"
	"github.com/zhouzirui/boundary-tools/backend/pkg/utils"
)

// maxBodyBytes 限制单轮请求体大小。
const maxBodyBytes = 64 << 10

// Handler 对话轮次的HTTP处理器
type Handler struct {
	governor   *governor.Governor
	cookieName string
	now        func() time.Time
}

// New 创建对话处理器
func New(gov *governor.Governor, cookieName string) *Handler {
	return &Handler{
		governor:   gov,
		cookieName: cookieName,
		now:        time.Now,
	}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleTurn)
}

// handleTurn 处理一轮对话
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := DecodeRequest(w, r)
	if !ok {
		return
	}

	res, err := h.governor.Govern(r.Context(), req, utils.ReadCookie(r, h.cookieName))
	if err != nil {
		RespondGovernError(w, err)
		return
	}

	if res.Token != "" {
		utils.SetHTTPOnlyCookie(w, r, h.cookieName, res.Token, usage.NextDay(h.now()))
	}
	utils.RespondJSON(w, http.StatusOK, res.Reply)
}

// DecodeRequest 解析请求体，失败时直接写出 400 响应。
func DecodeRequest(w http.ResponseWriter, r *http.Request) (turn.Request, bool) {
	var req turn.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return turn.Request{}, false
	}
	return req, true
}

// ErrorStatus 将治理错误映射为 HTTP 状态码与对外提示。
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, governor.ErrEmptyMessage):
		return http.StatusBadRequest, "Empty message"
	case errors.Is(err, governor.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid invite code"
	case errors.Is(err, governor.ErrUnknownTool):
		return http.StatusNotFound, "Unknown tool"
	case errors.Is(err, governor.ErrMissingGeneratorCredential):
		return http.StatusServiceUnavailable, "AI service unavailable"
	case errors.Is(err, governor.ErrEmptyGeneratorOutput):
		return http.StatusBadGateway, "Empty response from model"
	case errors.Is(err, governor.ErrGeneratorFailure):
		return http.StatusBadGateway, "Model request failed"
	default:
		return http.StatusInternalServerError, "Server error"
	}
}

// RespondGovernError 写出治理错误。
func RespondGovernError(w http.ResponseWriter, err error) {
	status, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[chat] turn failed: %v", err)
	}
	utils.RespondError(w, status, message)
}
