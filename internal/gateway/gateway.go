// Package gateway exposes the voice control loop to the browser over a
// WebSocket.
//
// Each connection owns a complete voice stack: a push source fed by the
// client's binary microphone frames, a session manager bound to the
// configured provider, and a tool dispatcher whose UI actions are
// relayed back to the client as JSON events. Binary frames carry raw
// PCM16 audio upstream; text frames carry JSON control messages
// (start, stop, interrupt) in and JSON events out.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/discover-Austin/DorkNexus/internal/dispatch"
	"github.com/discover-Austin/DorkNexus/internal/observe"
	"github.com/discover-Austin/DorkNexus/internal/playback"
	"github.com/discover-Austin/DorkNexus/internal/session"
	"github.com/discover-Austin/DorkNexus/pkg/audio"
	"github.com/discover-Austin/DorkNexus/pkg/audio/capture"
	"github.com/discover-Austin/DorkNexus/pkg/provider/live"
)

const (
	// writeTimeout bounds a single outbound WebSocket write.
	writeTimeout = 5 * time.Second

	// sourceBuffer is the push source frame channel depth. Roughly two
	// seconds of browser frames at typical frame sizes.
	sourceBuffer = 32
)

// ── Wire messages ─────────────────────────────────────────────────────────────

// controlMessage is a client-to-server JSON command.
type controlMessage struct {
	Type string `json:"type"` // "start", "stop", "interrupt"

	// SampleRate announces the client's microphone rate on "start".
	// Zero means the native capture rate.
	SampleRate int `json:"sample_rate,omitempty"`
}

type stateEvent struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type volumeEvent struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

type audioEvent struct {
	Type       string `json:"type"`
	Data       string `json:"data"` // base64-encoded PCM16
	SampleRate int    `json:"sample_rate"`
	StartMS    int64  `json:"start_ms"`
	DurationMS int64  `json:"duration_ms"`
}

type dorkEvent struct {
	Type string `json:"type"`
	Dork string `json:"dork"`
}

type tabEvent struct {
	Type string `json:"type"`
	Tab  string `json:"tab"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ── Gateway ───────────────────────────────────────────────────────────────────

// Config holds the dependencies shared by all gateway connections.
type Config struct {
	// Provider is the live backend every session connects through.
	Provider live.Provider

	// ProviderName labels metrics and logs.
	ProviderName string

	// Instructions is the assistant system prompt.
	Instructions string

	// Voice is the assistant voice identifier.
	Voice string

	// Metrics overrides the default metrics instance. Optional.
	Metrics *observe.Metrics
}

// Gateway is the WebSocket handler for voice clients. Register it at
// the /ws route. Safe for concurrent use; every accepted connection
// gets an isolated session stack.
type Gateway struct {
	cfg Config
}

// New creates a Gateway.
func New(cfg Config) *Gateway {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Gateway{cfg: cfg}
}

// ServeHTTP upgrades the request and runs the connection loop until the
// client disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The browser UI is served from arbitrary dev origins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("gateway: accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	slog.Info("gateway: client connected", "remote", r.RemoteAddr)
	g.handle(r.Context(), conn)
	slog.Info("gateway: client disconnected", "remote", r.RemoteAddr)
}

// handle runs one connection: it builds the per-connection session
// stack and processes frames until the socket closes.
func (g *Gateway) handle(ctx context.Context, conn *websocket.Conn) {
	sock := &socket{conn: conn}

	dispatcher := dispatch.New(
		func(dork string) { sock.send(dorkEvent{Type: "dork_update", Dork: dork}) },
		func(tab dispatch.Tab) { sock.send(tabEvent{Type: "tab_change", Tab: string(tab)}) },
		dispatch.WithMetrics(g.cfg.Metrics),
	)

	mgr := session.NewManager(session.ManagerConfig{
		Provider:     g.cfg.Provider,
		ProviderName: g.cfg.ProviderName,
		Dispatcher:   dispatcher,
		Instructions: g.cfg.Instructions,
		Voice:        g.cfg.Voice,
		Metrics:      g.cfg.Metrics,
	})
	mgr.OnState(func(s session.State) {
		sock.send(stateEvent{Type: "state", State: string(s)})
	})
	mgr.OnLevel(func(level float64) {
		sock.send(volumeEvent{Type: "volume", Level: level})
	})
	mgr.OnAudio(func(it playback.Item) {
		sock.send(audioEvent{
			Type:       "audio",
			Data:       base64.StdEncoding.EncodeToString(audio.EncodePCM16(it.Buffer.Samples)),
			SampleRate: it.Buffer.SampleRate,
			StartMS:    it.Start.Milliseconds(),
			DurationMS: it.Buffer.Duration().Milliseconds(),
		})
	})

	var src *capture.PushSource
	defer func() {
		mgr.Stop()
		if src != nil {
			_ = src.Close()
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if src != nil {
				src.Push(data)
			}

		case websocket.MessageText:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Warn("gateway: malformed control message", "err", err)
				continue
			}

			switch msg.Type {
			case "start":
				rate := msg.SampleRate
				if rate == 0 {
					rate = audio.CaptureRate
				}
				next := capture.NewPushSource(rate, sourceBuffer)
				if err := mgr.Start(ctx, next); err != nil {
					_ = next.Close()
					sock.send(errorEvent{Type: "error", Error: err.Error()})
					continue
				}
				src = next

			case "stop":
				mgr.Stop()

			case "interrupt":
				if err := mgr.Interrupt(); err != nil {
					sock.send(errorEvent{Type: "error", Error: err.Error()})
				}

			default:
				slog.Warn("gateway: unknown control message", "type", msg.Type)
			}
		}
	}
}

// socket serialises concurrent JSON writes to one WebSocket connection.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// send marshals v and writes it as a text frame. Write failures are
// logged and dropped; the read loop notices the dead connection.
func (s *socket) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("gateway: marshal event", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("gateway: event dropped", "err", err)
	}
}
