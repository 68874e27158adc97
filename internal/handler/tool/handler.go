package tool

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/boundary-tools/backend/internal/model/tool"
	"github.com/zhouzirui/boundary-tools/backend/pkg/utils"
)

// Handler tool目录的HTTP处理器
type Handler struct {
	tools           tool.Store
	sessionDuration time.Duration
}

// New 创建tool处理器
func New(tools tool.Store, sessionDuration time.Duration) *Handler {
	return &Handler{
		tools:           tools,
		sessionDuration: sessionDuration,
	}
}

// Summary is the public view of a tool. Prompts never leave the server.
type Summary struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Aliases           []string `json:"aliases,omitempty"`
	MaxUserMessages   int      `json:"maxUserMessages"`
	MaxSessionsPerDay int      `json:"maxSessionsPerDay"`
	SessionMinutes    int      `json:"sessionMinutes"`
}

// RegisterRoutes 注册tool相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tools", h.handleListTools)
}

// handleListTools 列出所有tool
func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	items := h.tools.List()
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		out = append(out, Summary{
			ID:                item.ID,
			Name:              item.Name,
			Aliases:           item.Aliases,
			MaxUserMessages:   item.MaxUserMessages,
			MaxSessionsPerDay: item.MaxSessionsPerDay,
			SessionMinutes:    int(h.sessionDuration / time.Minute),
		})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}
