package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ent0n29/speakwell/internal/asr"
	"github.com/ent0n29/speakwell/internal/auth"
	"github.com/ent0n29/speakwell/internal/companion"
	"github.com/ent0n29/speakwell/internal/config"
	"github.com/ent0n29/speakwell/internal/content"
	"github.com/ent0n29/speakwell/internal/dialogue"
	"github.com/ent0n29/speakwell/internal/observability"
	"github.com/ent0n29/speakwell/internal/practice"
	"github.com/ent0n29/speakwell/internal/session"
	"github.com/ent0n29/speakwell/internal/store"
	"github.com/ent0n29/speakwell/internal/tts"
)

const (
	adminEmail    = "coach@example.com"
	adminPassword = "practice123"
)

// echoTranscriber "hears" whatever bytes were uploaded.
type echoTranscriber struct{}

func (echoTranscriber) Transcribe(_ context.Context, src io.Reader, _ string) (asr.Transcript, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return asr.Transcript{}, err
	}
	return asr.Transcript{Text: strings.TrimSpace(string(b)), AudioSeconds: 1}, nil
}

type testEnv struct {
	ts       *httptest.Server
	client   *http.Client
	audioDir string
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	staticDir := t.TempDir()
	audioDir := filepath.Join(staticDir, "audio")
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		SecretKey:                "test-secret",
		StaticDir:                staticDir,
		AudioDir:                 audioDir,
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	st := store.NewInMemoryStore()
	authSvc := auth.NewService(st, log)
	if err := authSvc.Bootstrap(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	catalog, err := content.Default()
	if err != nil {
		t.Fatalf("content.Default() error = %v", err)
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	practiceSvc := practice.NewService(catalog, echoTranscriber{}, st, metrics, log)
	companionSvc := companion.NewService(companion.Config{AudioDir: audioDir}, echoTranscriber{}, sessions, dialogue.NewMock(), tts.NewMock(), metrics, log)

	srv := New(cfg, Deps{
		Sessions:  sessions,
		Auth:      authSvc,
		Practice:  practiceSvc,
		Companion: companionSvc,
		Metrics:   metrics,
		Log:       log,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{ts: ts, client: &http.Client{Jar: jar}, audioDir: audioDir, sessions: sessions}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	res, err := e.client.Post(e.ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return res
}

func (e *testEnv) postMultipart(t *testing.T, path string, fields map[string]string, fileField, filename, data string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = io.WriteString(fw, data)
	}
	_ = mw.Close()
	res, err := e.client.Post(e.ts.URL+path, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return res
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	res := e.postJSON(t, "/auth/login", map[string]string{"email": adminEmail, "password": adminPassword})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	res, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("healthz = %d %+v", res.StatusCode, payload)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	res := env.postJSON(t, "/auth/login", map[string]string{"email": adminEmail, "password": "nope"})
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
	if payload["error"] != "Invalid email or password." {
		t.Fatalf("error = %v", payload["error"])
	}
}

func TestRegisterStartsSession(t *testing.T) {
	env := newTestEnv(t)
	res := env.postJSON(t, "/auth/register", map[string]string{
		"email":            "Learner@Example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%+v)", res.StatusCode, http.StatusCreated, payload)
	}

	me, err := env.client.Get(env.ts.URL + "/me")
	if err != nil {
		t.Fatalf("GET /me error = %v", err)
	}
	mePayload := decodeBody(t, me)
	if me.StatusCode != http.StatusOK || mePayload["email"] != "learner@example.com" || mePayload["role"] != "user" {
		t.Fatalf("/me = %d %+v", me.StatusCode, mePayload)
	}
}

func TestRegisterReportsProblems(t *testing.T) {
	env := newTestEnv(t)
	res := env.postJSON(t, "/auth/register", map[string]string{
		"email":            adminEmail,
		"password":         "short",
		"confirm_password": "other",
	})
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	problems, _ := payload["problems"].([]any)
	if len(problems) < 3 {
		t.Fatalf("problems = %v, want duplicate + password + confirm", problems)
	}
	if problems[0] != "An account with this email already exists." {
		t.Fatalf("problems[0] = %v", problems[0])
	}
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/me", "/dashboard"} {
		res, err := http.Get(env.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestTamperedCookieRejected(t *testing.T) {
	env := newTestEnv(t)
	sess := env.sessions.Create(adminEmail, "admin")
	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sess.ID + ".forged"})
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /me error = %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestContentListsCatalog(t *testing.T) {
	env := newTestEnv(t)
	res, err := http.Get(env.ts.URL + "/content")
	if err != nil {
		t.Fatalf("GET /content error = %v", err)
	}
	payload := decodeBody(t, res)
	sentences, _ := payload["sentences"].([]any)
	paragraphs, _ := payload["paragraphs"].([]any)
	if len(sentences) == 0 || len(paragraphs) == 0 {
		t.Fatalf("catalog = %+v", payload)
	}
}

func TestTranscribeScoresAndRecordsProgress(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	res := env.postMultipart(t, "/transcribe", map[string]string{"contentType": "sentence", "sentenceId": "1"},
		"audio", "clip.webm", "she sells seashells by the seashore")
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%+v)", res.StatusCode, payload)
	}
	if payload["score"] != 100.0 {
		t.Fatalf("score = %v, want 100", payload["score"])
	}
	if payload["target"] != "She sells seashells by the seashore." || payload["contentType"] != "sentence" {
		t.Fatalf("payload = %+v", payload)
	}

	dash, err := env.client.Get(env.ts.URL + "/dashboard")
	if err != nil {
		t.Fatalf("GET /dashboard error = %v", err)
	}
	dashPayload := decodeBody(t, dash)
	progress, _ := dashPayload["progress"].(map[string]any)
	if progress["total_sessions"] != 1.0 || progress["best_score"] != 100.0 {
		t.Fatalf("progress = %+v", progress)
	}
}

func TestTranscribeValidation(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	cases := []struct {
		name     string
		fields   map[string]string
		file     string
		data     string
		status   int
		errorMsg string
	}{
		{"no file", map[string]string{"contentId": "1"}, "", "", http.StatusBadRequest, "No audio file provided."},
		{"bad type", map[string]string{"contentType": "poem", "contentId": "1"}, "a.webm", "x", http.StatusBadRequest, "Invalid content type."},
		{"missing id", map[string]string{"contentType": "sentence"}, "a.webm", "x", http.StatusBadRequest, "Content identifier missing."},
		{"bad id", map[string]string{"contentId": "one"}, "a.webm", "x", http.StatusBadRequest, "Content identifier must be an integer."},
		{"unknown sentence", map[string]string{"contentId": "999"}, "a.webm", "x", http.StatusNotFound, "Sentence not found."},
		{"unknown paragraph", map[string]string{"contentType": "Paragraph", "contentId": "1"}, "a.webm", "x", http.StatusNotFound, "Paragraph not found."},
		{"empty file", map[string]string{"contentId": "1"}, "a.webm", "", http.StatusBadRequest, "Empty audio file."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			field := ""
			if tc.file != "" {
				field = "audio"
			}
			res := env.postMultipart(t, "/transcribe", tc.fields, field, tc.file, tc.data)
			payload := decodeBody(t, res)
			if res.StatusCode != tc.status || payload["error"] != tc.errorMsg {
				t.Fatalf("got %d %v, want %d %q", res.StatusCode, payload["error"], tc.status, tc.errorMsg)
			}
		})
	}
}

func TestProcessAudioAndCleanup(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	res := env.postMultipart(t, "/aicompanion/process_audio", nil, "audio_data", "utterance.webm", "good morning")
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%+v)", res.StatusCode, payload)
	}
	if payload["transcript"] != "good morning" || payload["response_text"] != "I heard you say: good morning" {
		t.Fatalf("payload = %+v", payload)
	}
	name, _ := payload["audio_filename"].(string)
	if payload["audio_url"] != "/static/audio/"+name || payload["loop_video_url"] != "/static/video/demo.mp4" {
		t.Fatalf("urls = %+v", payload)
	}

	audio, err := env.client.Get(env.ts.URL + "/static/audio/" + name)
	if err != nil {
		t.Fatalf("GET reply audio error = %v", err)
	}
	audio.Body.Close()
	if audio.StatusCode != http.StatusOK {
		t.Fatalf("reply audio status = %d", audio.StatusCode)
	}

	bad := env.postJSON(t, "/aicompanion/cleanup_audio", map[string]string{"filename": "../../etc/passwd.mp3"})
	badPayload := decodeBody(t, bad)
	if bad.StatusCode != http.StatusBadRequest || badPayload["error"] != "Invalid filename" {
		t.Fatalf("traversal cleanup = %d %+v", bad.StatusCode, badPayload)
	}
	missing := env.postJSON(t, "/aicompanion/cleanup_audio", map[string]string{})
	missingPayload := decodeBody(t, missing)
	if missing.StatusCode != http.StatusBadRequest || missingPayload["error"] != "Filename required" {
		t.Fatalf("empty cleanup = %d %+v", missing.StatusCode, missingPayload)
	}

	ok := env.postJSON(t, "/aicompanion/cleanup_audio", map[string]string{"filename": name})
	okPayload := decodeBody(t, ok)
	if ok.StatusCode != http.StatusOK || okPayload["status"] != "ok" {
		t.Fatalf("cleanup = %d %+v", ok.StatusCode, okPayload)
	}
	if _, err := os.Stat(filepath.Join(env.audioDir, name)); !os.IsNotExist(err) {
		t.Fatalf("reply audio still on disk: %v", err)
	}
}

func TestProcessAudioRequiresUpload(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	res := env.postMultipart(t, "/aicompanion/process_audio", map[string]string{"note": "x"}, "", "", "")
	payload := decodeBody(t, res)
	if res.StatusCode != http.StatusBadRequest || payload["error"] != "No audio_data provided" {
		t.Fatalf("got %d %+v", res.StatusCode, payload)
	}
}

func TestCompanionWebsocketTurn(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	base, err := url.Parse(env.ts.URL)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	header := http.Header{}
	for _, c := range env.client.Jar.Cookies(base) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/aicompanion/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	var ready map[string]any
	if err := conn.ReadJSON(&ready); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	if ready["type"] != "system_event" || ready["code"] != "ready" {
		t.Fatalf("first frame = %+v", ready)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("how are you")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var reply map[string]any
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply["type"] != "companion_reply" || reply["transcript"] != "how are you" {
		t.Fatalf("reply = %+v", reply)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"client_control","action":"reset"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var reset map[string]any
	if err := conn.ReadJSON(&reset); err != nil {
		t.Fatalf("read reset: %v", err)
	}
	if reset["code"] != "history_reset" {
		t.Fatalf("reset = %+v", reset)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var bad map[string]any
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if bad["type"] != "error_event" {
		t.Fatalf("error frame = %+v", bad)
	}
}

func TestPerfLatencyReportsStages(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	res := env.postMultipart(t, "/aicompanion/process_audio", nil, "audio_data", "u.webm", "hello")
	res.Body.Close()

	perf, err := http.Get(env.ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("GET /v1/perf/latency error = %v", err)
	}
	payload := decodeBody(t, perf)
	stages, _ := payload["stages"].([]any)
	if len(stages) == 0 {
		t.Fatalf("stages = %+v, want observations", payload)
	}
}

func TestCookieCodecRoundTrip(t *testing.T) {
	c := newCookieCodec("k")
	id, err := c.decode(c.encode("abc"))
	if err != nil || id != "abc" {
		t.Fatalf("decode(encode) = %q, %v", id, err)
	}
	if _, err := newCookieCodec("other").decode(c.encode("abc")); err == nil {
		t.Fatalf("decode with another key should fail")
	}
}
