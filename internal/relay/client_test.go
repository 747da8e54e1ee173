package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"broker-bridge/internal/config"
	"broker-bridge/internal/ritual"
)

var upgrader = websocket.Upgrader{}

func testCloudConfig(url string) config.CloudConfig {
	return config.CloudConfig{
		Enabled:           true,
		URL:               url,
		Source:            "local_trading_agent",
		HeartbeatInterval: time.Hour,
		ReconnectDelay:    20 * time.Millisecond,
		ReconnectMaxDelay: 100 * time.Millisecond,
		MaxReconnects:     5,
	}
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func TestClient_RegistersFirst(t *testing.T) {
	api, _ := newTestAPI(t)

	registered := make(chan RegisterPayload, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		env := readEnvelope(t, conn)
		if env.Type != TypeRegister {
			t.Errorf("first frame must be register, got %s", env.Type)
		}
		var payload RegisterPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Errorf("unmarshal register payload: %v", err)
		}
		registered <- payload
	}))
	defer ts.Close()

	cfg := testCloudConfig(wsURL(ts))
	client := NewClient(cfg, NewDispatcher(api, cfg.Source, nil), api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	select {
	case payload := <-registered:
		if payload.ServiceType != "trading_agent" {
			t.Errorf("unexpected service type: %q", payload.ServiceType)
		}
		if payload.Version == "" || len(payload.Capabilities) == 0 {
			t.Errorf("register payload incomplete: %+v", payload)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("client never registered")
	}
}

func TestClient_DispatchesCommandsAndResponds(t *testing.T) {
	api, _ := newTestAPI(t)

	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		defer close(done)

		if env := readEnvelope(t, conn); env.Type != TypeRegister {
			t.Errorf("expected register, got %s", env.Type)
			return
		}

		cmd, err := NewEnvelope(TypeTrade, "cloud", "local_trading_agent", TradeCommand{
			Action: "buy", StockCode: "600519", Quantity: 100,
		})
		if err != nil {
			t.Errorf("build command: %v", err)
			return
		}
		data, _ := json.Marshal(cmd)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Errorf("send command: %v", err)
			return
		}

		resp := readEnvelope(t, conn)
		if resp.Type != TypeResponse {
			t.Errorf("expected response, got %s", resp.Type)
		}
		if resp.ID != cmd.ID {
			t.Errorf("response id mismatch: %q vs %q", resp.ID, cmd.ID)
		}
		var outcome ritual.OrderOutcome
		if err := json.Unmarshal(resp.Data, &outcome); err != nil {
			t.Errorf("unmarshal outcome: %v", err)
		} else if !outcome.Success {
			t.Errorf("expected ritual success, message=%q", outcome.Message)
		}

		if ev := readEnvelope(t, conn); ev.Type != TypeEvent {
			t.Errorf("expected trade_complete event, got %s", ev.Type)
		}
	}))
	defer ts.Close()

	cfg := testCloudConfig(wsURL(ts))
	client := NewClient(cfg, NewDispatcher(api, cfg.Source, nil), api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("session never completed")
	}

	if len(api.History(0)) != 1 {
		t.Errorf("dispatched trade missing from history")
	}
}

func TestClient_ReconnectsAndReregisters(t *testing.T) {
	api, _ := newTestAPI(t)

	registers := make(chan string, 4)
	session := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		session++
		env := readEnvelope(t, conn)
		if env.Type == TypeRegister {
			registers <- env.Source
		}
		// 第一个会话立即由服务端掐断，迫使客户端重连。
		conn.Close()
	}))
	defer ts.Close()

	cfg := testCloudConfig(wsURL(ts))
	client := NewClient(cfg, NewDispatcher(api, cfg.Source, nil), api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case source := <-registers:
			if source != cfg.Source {
				t.Errorf("register %d: unexpected source %q", i, source)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("expected register on session %d", i+1)
		}
	}
}

func TestClient_GivesUpAfterMaxReconnects(t *testing.T) {
	api, _ := newTestAPI(t)

	// 无人监听的地址，连接必然失败。
	cfg := testCloudConfig("ws://127.0.0.1:1/ws")
	cfg.MaxReconnects = 2
	client := NewClient(cfg, NewDispatcher(api, cfg.Source, nil), api, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected terminal error after exhausting reconnects")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("client never gave up")
	}
}
