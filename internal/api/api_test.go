package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
	"github.com/xaenox/astro-bot/internal/models"
	"github.com/xaenox/astro-bot/internal/resolver"
	"github.com/xaenox/astro-bot/internal/storage"
)

type downStore struct {
	*storage.MemoryStorage
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, store storage.Storage) *httptest.Server {
	t.Helper()

	canned := resolver.NewCannedResolver()
	svc := consultation.NewService(store, canned, canned, consultation.Options{
		Welcome:        "Welcome, seeker",
		MaxMessageSize: 50,
		Advancer:       consultation.Advancer{Threshold: 5, Target: models.StageAnalysis},
	}, zap.NewNop())

	srv := httptest.NewServer(NewRouter(svc, []string{"http://allowed.example"}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createSession(t *testing.T, srv *httptest.Server) *models.Session {
	t.Helper()

	var out createSessionResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "", &out)
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, out.Session)
	return out.Session
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	var out struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", "", &out))
	assert.Equal(t, "healthy", out.Status)

	down := newTestServer(t, downStore{storage.NewMemoryStorage()})
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, http.MethodGet, down.URL+"/health", "", &out))
	assert.Equal(t, "unreachable", out.Checks["database"])

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	session := createSession(t, srv)
	assert.Equal(t, models.StageInitial, session.Stage)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "Welcome, seeker", session.Messages[0].Text)
}

func TestCreateSessionWithSeed(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	var out createSessionResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/sessions?message=I%27m+having+trouble+at+my+job", "", &out)
	require.Equal(t, http.StatusCreated, status)
	require.NotNil(t, out.Exchange)
	assert.Equal(t, "career", out.Exchange.Rule)
	assert.Equal(t, models.StageGathering, out.Session.Stage)
	assert.Len(t, out.Session.Messages, 3)

	status = doJSON(t, http.MethodPost, srv.URL+"/api/sessions", `{"message":"Will I find love?"}`, &out)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "relationship", out.Exchange.Rule)
}

func TestSubmitMessage(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())
	session := createSession(t, srv)
	url := srv.URL + "/api/sessions/" + session.ID + "/messages"

	var out struct {
		Exchange consultation.Exchange `json:"exchange"`
	}
	status := doJSON(t, http.MethodPost, url, `{"text":"My money is gone"}`, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "finance", out.Exchange.Rule)
	assert.Equal(t, 1, out.Exchange.QuestionCount)
	assert.Equal(t, models.SenderAssistant, out.Exchange.Reply.Sender)
	assert.NotEmpty(t, out.Exchange.Reply.Text)

	var got struct {
		Session models.Session `json:"session"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+session.ID, "", &got))
	assert.Len(t, got.Session.Messages, 3)
	assert.Equal(t, "finance", got.Session.Profile.LifeArea)
}

func TestSubmitMessageErrors(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())
	session := createSession(t, srv)
	url := srv.URL + "/api/sessions/" + session.ID + "/messages"

	tests := []struct {
		name   string
		url    string
		body   string
		status int
	}{
		{name: "empty text", url: url, body: `{"text":"   "}`, status: http.StatusBadRequest},
		{name: "malformed body", url: url, body: `{"text":`, status: http.StatusBadRequest},
		{name: "missing body", url: url, body: "", status: http.StatusBadRequest},
		{name: "too long", url: url, body: `{"text":"` + strings.Repeat("a", 51) + `"}`, status: http.StatusRequestEntityTooLarge},
		{name: "unknown session", url: srv.URL + "/api/sessions/nope/messages", body: `{"text":"hi"}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]string
			assert.Equal(t, tt.status, doJSON(t, http.MethodPost, tt.url, tt.body, &out))
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestListMessagesFormats(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	var created createSessionResponse
	require.Equal(t, http.StatusCreated,
		doJSON(t, http.MethodPost, srv.URL+"/api/sessions", `{"message":"<b>my job</b> *now*"}`, &created))
	base := srv.URL + "/api/sessions/" + created.Session.ID + "/messages"

	var out struct {
		Format   string            `json:"format"`
		Messages []renderedMessage `json:"messages"`
	}

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base, "", &out))
	assert.Equal(t, "raw", out.Format)
	require.Len(t, out.Messages, 3)
	assert.Empty(t, out.Messages[2].HTML)
	assert.Empty(t, out.Messages[2].Blocks)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"?format=html", "", &out))
	require.Len(t, out.Messages, 3)
	assert.Equal(t, "<p>&lt;b&gt;my job&lt;/b&gt; *now*</p>\n", out.Messages[1].HTML)
	assert.Contains(t, out.Messages[2].HTML, "<ol start=\"1\">")

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"?format=fragments", "", &out))
	assert.NotEmpty(t, out.Messages[2].Blocks)

	var errOut map[string]string
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, base+"?format=pdf", "", &errOut))
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())
	session := createSession(t, srv)
	url := srv.URL + "/api/sessions/" + session.ID

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, url, "", nil))

	var out map[string]string
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, url, "", &out))
	assert.Equal(t, "session not found", out["error"])
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodDelete, url, "", &out))
}

func TestCreateReport(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	var out reportResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/reports",
		`{"name":"Meera","birth_date":"1992-08-15","birth_place":"Pune","problem":"Trouble at work"}`, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, resolver.SourceFallback, out.Source)
	assert.Contains(t, out.Report, "Dear Meera")
	assert.Contains(t, out.HTML, "<h2>")

	var errOut map[string]string
	status = doJSON(t, http.MethodPost, srv.URL+"/api/reports", `{"name":"Meera"}`, &errOut)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errOut["error"], "invalid intake form")
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://allowed.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://allowed.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocketChat(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())
	session := createSession(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + session.ID
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() wsResponse {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var frame wsResponse
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	}

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"text":"My health worries me"}`)))
	frame := read()
	require.NotNil(t, frame.Exchange)
	assert.Equal(t, "health", frame.Exchange.Rule)
	assert.Equal(t, 1, frame.Exchange.QuestionCount)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"text":""}`)))
	frame = read()
	assert.Nil(t, frame.Exchange)
	assert.Equal(t, consultation.ErrEmptyMessage.Error(), frame.Error)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))
	assert.Equal(t, "invalid message", read().Error)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryStorage())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/missing"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"*", "app.example:3000", "plain.example"},
		originPatterns([]string{"*", "http://app.example:3000", "plain.example"}))
}
