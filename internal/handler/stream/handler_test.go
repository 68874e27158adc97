package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/boundary-tools/backend/internal/model/tool"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/governor"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/reply"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/usage"
)

const cookieName = "bt_usage"

type stubGenerator struct{ text string }

func (s stubGenerator) Generate(_ context.Context, _, _ string) (*schema.Message, error) {
	return schema.AssistantMessage(s.text, nil), nil
}

type stubStreamer struct {
	chunks []string
	err    error
}

func (s stubStreamer) StreamingEnabled() bool { return true }

func (s stubStreamer) Stream(_ context.Context, _, _ string) (*schema.StreamReader[*schema.Message], error) {
	if s.err != nil {
		return nil, s.err
	}
	msgs := make([]*schema.Message, 0, len(s.chunks))
	for _, c := range s.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func newGovernor(t *testing.T) *governor.Governor {
	t.Helper()
	codec, err := usage.NewCodec("stream-secret")
	if err != nil {
		t.Fatalf("NewCodec err: %v", err)
	}
	return governor.New(governor.Config{}, tool.NewMemoryStore(tool.Seed()), codec, stubGenerator{text: "Buffered reply."})
}

func serveStream(t *testing.T, streamer Streamer, count int) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	New(newGovernor(t), streamer, cookieName).RegisterRoutes(r)

	payload, _ := json.Marshal(map[string]any{
		"tool":             "expression",
		"userText":         "It keeps coming back.",
		"userMessageCount": count,
		"sessionStartMs":   time.Now().Add(-time.Minute).UnixMilli(),
	})
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", bytes.NewReader(payload))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func parseEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("invalid event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func eventNames(events []StreamResponse) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	return names
}

func hasCookie(resp *httptest.ResponseRecorder) bool {
	for _, c := range resp.Result().Cookies() {
		if c.Name == cookieName {
			return true
		}
	}
	return false
}

func TestStreamDeltasThenMessage(t *testing.T) {
	resp := serveStream(t, stubStreamer{chunks: []string{"It keeps ", "returning."}}, 0)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !hasCookie(resp) {
		t.Fatal("expected usage cookie on a streamed first turn")
	}

	events := parseEvents(t, resp.Body.String())
	got := strings.Join(eventNames(events), ",")
	if got != "start,delta,delta,message,end" {
		t.Fatalf("unexpected events %s", got)
	}
	message := events[3]
	if message.Content != "It keeps returning." || message.Reply == nil || message.Reply.Locked {
		t.Fatalf("unexpected message event %+v", message)
	}
}

func TestStreamFinalTurnAppendsClosing(t *testing.T) {
	resp := serveStream(t, stubStreamer{chunks: []string{"Noted."}}, 7)

	events := parseEvents(t, resp.Body.String())
	var message *StreamResponse
	for i := range events {
		if events[i].Event == "message" {
			message = &events[i]
		}
	}
	if message == nil {
		t.Fatal("missing message event")
	}
	if message.Content != "Noted.\n\n"+reply.ClosingText || !message.Reply.Locked {
		t.Fatalf("unexpected final message %+v", message)
	}
}

func TestStreamClosedTurnSkipsGenerator(t *testing.T) {
	resp := serveStream(t, stubStreamer{err: errors.New("must not be called")}, 8)

	events := parseEvents(t, resp.Body.String())
	if got := strings.Join(eventNames(events), ","); got != "start,message,end" {
		t.Fatalf("unexpected events %s", got)
	}
	if events[1].Content != reply.ClosingText {
		t.Fatalf("unexpected closing content %q", events[1].Content)
	}
}

func TestStreamUpstreamFailureBeforeFirstChunk(t *testing.T) {
	resp := serveStream(t, stubStreamer{err: errors.New("upstream down")}, 0)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	if hasCookie(resp) {
		t.Fatal("failed turn must not consume the daily session")
	}
}

func TestStreamEmptyOutput(t *testing.T) {
	resp := serveStream(t, stubStreamer{}, 1)

	events := parseEvents(t, resp.Body.String())
	last := events[len(events)-1]
	if last.Event != "error" {
		t.Fatalf("expected error event, got %s", last.Event)
	}
}

func TestStreamFallsBackToBufferedGenerator(t *testing.T) {
	resp := serveStream(t, nil, 1)

	events := parseEvents(t, resp.Body.String())
	if got := strings.Join(eventNames(events), ","); got != "start,message,end" {
		t.Fatalf("unexpected events %s", got)
	}
	if events[1].Content != "Buffered reply." {
		t.Fatalf("unexpected content %q", events[1].Content)
	}
}
