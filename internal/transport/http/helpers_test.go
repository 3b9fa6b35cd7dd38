package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"culture-quiz-service/internal/app"
	"culture-quiz-service/internal/domain"
	"culture-quiz-service/internal/infra/memory"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var epoch = time.Unix(1_700_000_000, 0)

type harness struct {
	t       *testing.T
	clk     clockwork.FakeClock
	service *app.QuizService
	server  *httptest.Server
}

func newHarness(t *testing.T, redact bool) *harness {
	t.Helper()
	clk := clockwork.NewFakeClockAt(epoch)
	bank := memory.NewQuestionBank(memory.NewStaticSource(map[string][]domain.Question{
		"flags": flagQuestions(),
	}), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), bank, app.DefaultSettings(), app.WithClock(clk))
	server := httptest.NewServer(NewRouter(service, RouterConfig{RedactAnswers: redact}))
	t.Cleanup(func() {
		server.Close()
		service.Close()
	})
	return &harness{t: t, clk: clk, service: service, server: server}
}

func (h *harness) createQuiz(cats []string, n int) string {
	h.t.Helper()
	rec := h.post("/quiz", map[string]any{"cats": cats, "n": n})
	require.Equal(h.t, http.StatusCreated, rec.StatusCode)
	var body createQuizResponse
	require.NoError(h.t, json.NewDecoder(rec.Body).Decode(&body))
	rec.Body.Close()
	require.NotEmpty(h.t, body.SessionID)
	return body.SessionID
}

func (h *harness) post(path string, body any) *http.Response {
	h.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(h.t, err)
	resp, err := http.Post(h.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(h.t, err)
	return resp
}

func (h *harness) dial() *websocket.Conn {
	h.t.Helper()
	u := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { conn.Close() })
	return conn
}

// join attaches conn and returns the snapshot it receives.
func (h *harness) join(conn *websocket.Conn, sessionID string, role domain.Role, team string) stateFrame {
	h.t.Helper()
	send(h.t, conn, EventJoinSession, map[string]any{"sessionId": sessionID, "role": role, "teamName": team})
	return readState(h.t, conn, func(stateFrame) bool { return true })
}

type stateFrame struct {
	Status    domain.Status  `json:"status"`
	Teams     map[string]int `json:"teams"`
	Questions []struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Answer   *int     `json:"answer"`
	} `json:"questions"`
	Idx      int      `json:"idx"`
	Deadline *float64 `json:"deadline"`
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": event, "payload": payload}))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil skips frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	for {
		f := readFrame(t, conn)
		if f.Type == event {
			return f.Payload
		}
	}
}

// readState skips frames until a snapshot satisfying match arrives.
func readState(t *testing.T, conn *websocket.Conn, match func(stateFrame) bool) stateFrame {
	t.Helper()
	for {
		raw := readUntil(t, conn, EventSessionState)
		var st stateFrame
		require.NoError(t, json.Unmarshal(raw, &st))
		if match(st) {
			return st
		}
	}
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var p errorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventError), &p))
	return p.Msg
}

func readAnswer(t *testing.T, conn *websocket.Conn) domain.AnswerResult {
	t.Helper()
	var r domain.AnswerResult
	require.NoError(t, json.Unmarshal(readUntil(t, conn, EventAnswerResult), &r))
	return r
}

func flagQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "Which flag has a red maple leaf?", Options: []string{"Canada", "Japan", "Peru"}, CorrectIndex: 0},
		{Prompt: "Which flag has a cedar tree?", Options: []string{"Cyprus", "Lebanon"}, CorrectIndex: 1},
		{Prompt: "Which flag shows a red dragon?", Options: []string{"Malta", "Japan", "Wales"}, CorrectIndex: 2},
	}
}
