package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/boundary-tools/backend/internal/handler/chat"
	"github.com/zhouzirui/boundary-tools/backend/internal/model/turn"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/governor"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/usage"
	"github.com/zhouzirui/boundary-tools/backend/pkg/utils"
)

// Streamer produces the generator reply chunk by chunk.
type Streamer interface {
	StreamingEnabled() bool
	Stream(ctx context.Context, systemPrompt, userText string) (*schema.StreamReader[*schema.Message], error)
}

// Handler manages streamed turns via Server-Sent Events
type Handler struct {
	governor   *governor.Governor
	streamer   Streamer
	cookieName string
	now        func() time.Time
}

// New creates a new stream handler. A nil streamer falls back to a single
// non-streamed generator call.
func New(gov *governor.Governor, streamer Streamer, cookieName string) *Handler {
	return &Handler{
		governor:   gov,
		streamer:   streamer,
		cookieName: cookieName,
		now:        time.Now,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event    string      `json:"event"`
	TurnID   string      `json:"turnId,omitempty"`
	Content  string      `json:"content,omitempty"`
	Reply    *turn.Reply `json:"reply,omitempty"`
	Finished bool        `json:"finished,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// RegisterRoutes registers the SSE turn endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	req, ok := chatHandler.DecodeRequest(w, r)
	if !ok {
		return
	}

	plan, err := h.governor.Prepare(req, utils.ReadCookie(r, h.cookieName))
	if err != nil {
		chatHandler.RespondGovernError(w, err)
		return
	}

	if plan.Outcome == governor.OutcomeClosed {
		res, err := h.governor.Complete(plan, plan.Output)
		if err != nil {
			chatHandler.RespondGovernError(w, err)
			return
		}
		h.commitToken(w, r, res.Token)
		h.openStream(w, flusher, plan)
		h.finishStream(w, flusher, res)
		return
	}

	if h.streamer == nil || !h.streamer.StreamingEnabled() {
		h.handleBuffered(w, r, flusher, plan)
		return
	}

	ctx, cancel := h.governor.GeneratorContext(r.Context())
	defer cancel()

	reader, err := h.streamer.Stream(ctx, plan.SystemPrompt, plan.UserText)
	if err != nil {
		chatHandler.RespondGovernError(w, fmt.Errorf("%w: %w", governor.ErrGeneratorFailure, err))
		return
	}
	defer reader.Close()

	// Nothing is written until the model produced its first chunk, so an upstream
	// failure still surfaces as a plain error status and leaves the cookie alone.
	first, firstErr := reader.Recv()
	if firstErr != nil && !errors.Is(firstErr, io.EOF) {
		chatHandler.RespondGovernError(w, fmt.Errorf("%w: %w", governor.ErrGeneratorFailure, firstErr))
		return
	}

	token, err := h.governor.Token(plan)
	if err != nil {
		chatHandler.RespondGovernError(w, err)
		return
	}
	h.commitToken(w, r, token)
	h.openStream(w, flusher, plan)

	chunks := make([]*schema.Message, 0, 8)
	for chunk, recvErr := first, firstErr; ; chunk, recvErr = reader.Recv() {
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			h.sendError(w, flusher, plan.TurnID, fmt.Errorf("%w: %w", governor.ErrGeneratorFailure, recvErr))
			return
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			utils.SendSSEChunk(w, flusher, StreamResponse{
				Event:   "delta",
				TurnID:  plan.TurnID,
				Content: chunk.Content,
			})
		}
	}

	var full *schema.Message
	if len(chunks) > 0 {
		full, err = schema.ConcatMessages(chunks)
		if err != nil {
			h.sendError(w, flusher, plan.TurnID, fmt.Errorf("%w: %w", governor.ErrGeneratorFailure, err))
			return
		}
	}

	output, err := h.governor.Finish(plan, full)
	if err != nil {
		h.sendError(w, flusher, plan.TurnID, err)
		return
	}

	res, err := h.governor.Complete(plan, output)
	if err != nil {
		h.sendError(w, flusher, plan.TurnID, err)
		return
	}
	h.finishStream(w, flusher, res)
}

// handleBuffered serves an admitted turn with one blocking generator call.
func (h *Handler) handleBuffered(w http.ResponseWriter, r *http.Request, flusher http.Flusher, plan *governor.Plan) {
	msg, err := h.governor.Generate(r.Context(), plan)
	if err != nil {
		chatHandler.RespondGovernError(w, err)
		return
	}

	output, err := h.governor.Finish(plan, msg)
	if err != nil {
		chatHandler.RespondGovernError(w, err)
		return
	}

	res, err := h.governor.Complete(plan, output)
	if err != nil {
		chatHandler.RespondGovernError(w, err)
		return
	}

	h.commitToken(w, r, res.Token)
	h.openStream(w, flusher, plan)
	h.finishStream(w, flusher, res)
}

func (h *Handler) commitToken(w http.ResponseWriter, r *http.Request, token string) {
	if token == "" {
		return
	}
	utils.SetHTTPOnlyCookie(w, r, h.cookieName, token, usage.NextDay(h.now()))
}

func (h *Handler) openStream(w http.ResponseWriter, flusher http.Flusher, plan *governor.Plan) {
	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:  "start",
		TurnID: plan.TurnID,
	})
}

func (h *Handler) finishStream(w http.ResponseWriter, flusher http.Flusher, res *governor.Result) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:   "message",
		TurnID:  res.Plan.TurnID,
		Content: res.Reply.Output,
		Reply:   &res.Reply,
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:    "end",
		TurnID:   res.Plan.TurnID,
		Finished: true,
	})

	log.Printf("[stream] completed turn=%s tool=%s locked=%t", res.Plan.TurnID, res.Plan.Tool.ID, res.Reply.Locked)
}

// sendError sends an error via Server-Sent Events once the stream is open.
func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, turnID string, err error) {
	_, message := chatHandler.ErrorStatus(err)
	log.Printf("[stream] turn=%s failed: %v", turnID, err)
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:  "error",
		TurnID: turnID,
		Error:  message,
	})
}
