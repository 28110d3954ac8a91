package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/discover-Austin/DorkNexus/internal/observe"
	"github.com/discover-Austin/DorkNexus/pkg/audio"
	"github.com/discover-Austin/DorkNexus/pkg/provider/live"
	"github.com/discover-Austin/DorkNexus/pkg/provider/live/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// dialGateway serves g over httptest and returns a connected client.
func dialGateway(t *testing.T, ctx context.Context, p live.Provider) *websocket.Conn {
	t.Helper()
	g := New(Config{
		Provider:     p,
		ProviderName: "mock",
		Instructions: "You are a test assistant.",
		Voice:        "Kore",
		Metrics:      testMetrics(t),
	})
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendControl(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal control: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write control: %v", err)
	}
}

// waitEvent reads events until one with the wanted type arrives,
// skipping unrelated ones such as volume updates.
func waitEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q event: %v", typ, err)
		}
		var ev map[string]any
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event %q: %v", data, err)
		}
		if ev["type"] == typ {
			return ev
		}
	}
}

// waitState reads state events until the wanted state is reported.
func waitState(t *testing.T, ctx context.Context, conn *websocket.Conn, want string) {
	t.Helper()
	for {
		ev := waitEvent(t, ctx, conn, "state")
		if ev["state"] == want {
			return
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStart_EmitsConnectingThenListening(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	p := &mock.Provider{Session: sess}
	conn := dialGateway(t, ctx, p)

	sendControl(t, ctx, conn, controlMessage{Type: "start"})

	ev := waitEvent(t, ctx, conn, "state")
	if ev["state"] != "connecting" {
		t.Fatalf("first state = %v, want connecting", ev["state"])
	}
	waitState(t, ctx, conn, "listening")

	waitFor(t, func() bool { return len(p.ConnectCalls) == 1 })
	cfg := p.ConnectCalls[0].Cfg
	if cfg.Voice != "Kore" {
		t.Errorf("voice = %q, want Kore", cfg.Voice)
	}
	if len(cfg.Tools) != 2 {
		t.Errorf("tools = %d, want 2", len(cfg.Tools))
	}
}

func TestStart_WhileActiveSendsError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	ev := waitEvent(t, ctx, conn, "error")
	if msg, _ := ev["error"].(string); !strings.Contains(msg, "active") {
		t.Fatalf("error = %q, want mention of active session", msg)
	}
}

func TestBinaryAudio_ForwardedToProvider(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")

	frame := make([]byte, audio.CaptureWindow*2)
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	waitFor(t, func() bool { return len(sess.SendAudioCalls) >= 1 })
	if got := len(sess.SendAudioCalls[0].Chunk); got != audio.CaptureWindow*2 {
		t.Fatalf("chunk size = %d, want %d", got, audio.CaptureWindow*2)
	}
}

func TestBinaryAudio_BeforeStartIgnored(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	if err := conn.Write(ctx, websocket.MessageBinary, make([]byte, 64)); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	// The connection must survive the stray frame.
	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")
	if len(sess.SendAudioCalls) != 0 {
		t.Fatalf("SendAudio calls = %d, want 0", len(sess.SendAudioCalls))
	}
}

func TestModelAudio_EmittedAsEvent(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")

	// 500 ms of silence at the playback rate.
	samples := make([]float32, audio.PlaybackRate/2)
	sess.AudioCh <- audio.EncodePCM16(samples)

	ev := waitEvent(t, ctx, conn, "audio")
	if rate, _ := ev["sample_rate"].(float64); int(rate) != audio.PlaybackRate {
		t.Errorf("sample_rate = %v, want %d", ev["sample_rate"], audio.PlaybackRate)
	}
	if dur, _ := ev["duration_ms"].(float64); int(dur) != 500 {
		t.Errorf("duration_ms = %v, want 500", ev["duration_ms"])
	}
	raw, err := base64.StdEncoding.DecodeString(ev["data"].(string))
	if err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(raw) != len(samples)*2 {
		t.Errorf("payload = %d bytes, want %d", len(raw), len(samples)*2)
	}
}

func TestToolCalls_RelayedAsEvents(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")

	handler := sess.Handler()
	if handler == nil {
		t.Fatal("no tool call handler registered")
	}

	result := handler(live.ToolCall{
		ID:   "call-1",
		Name: "update_dork",
		Args: json.RawMessage(`{"dork":"intitle:\"index of\" site:example.com"}`),
	})
	if result != `Dork updated to: intitle:"index of" site:example.com` {
		t.Errorf("update_dork result = %q", result)
	}
	ev := waitEvent(t, ctx, conn, "dork_update")
	if ev["dork"] != `intitle:"index of" site:example.com` {
		t.Errorf("dork = %v", ev["dork"])
	}

	result = handler(live.ToolCall{
		ID:   "call-2",
		Name: "change_tab",
		Args: json.RawMessage(`{"tab":"pivot"}`),
	})
	if result != "Navigated to pivot" {
		t.Errorf("change_tab result = %q", result)
	}
	ev = waitEvent(t, ctx, conn, "tab_change")
	if ev["tab"] != "pivot" {
		t.Errorf("tab = %v", ev["tab"])
	}
}

func TestInterrupt_WithoutSessionSendsError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialGateway(t, ctx, &mock.Provider{})

	sendControl(t, ctx, conn, controlMessage{Type: "interrupt"})
	if _, ok := waitEvent(t, ctx, conn, "error")["error"].(string); !ok {
		t.Fatal("expected error message")
	}
}

func TestStop_AllowsRestart(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Session left nil so every Connect yields a fresh mock session.
	p := &mock.Provider{}
	conn := dialGateway(t, ctx, p)

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")

	sendControl(t, ctx, conn, controlMessage{Type: "stop"})
	waitState(t, ctx, conn, "disconnected")

	sendControl(t, ctx, conn, controlMessage{Type: "start", SampleRate: 48000})
	waitState(t, ctx, conn, "listening")

	waitFor(t, func() bool { return len(p.ConnectCalls) == 2 })
}

func TestMalformedControl_Ignored(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"dance"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")
}

func TestDisconnect_StopsSession(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &mock.Session{AudioCh: make(chan []byte, 8)}
	conn := dialGateway(t, ctx, &mock.Provider{Session: sess})

	sendControl(t, ctx, conn, controlMessage{Type: "start"})
	waitState(t, ctx, conn, "listening")

	conn.Close(websocket.StatusNormalClosure, "")

	waitFor(t, func() bool { return sess.CloseCallCount >= 1 })
}

var _ http.Handler = (*Gateway)(nil)
