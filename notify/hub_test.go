package notify

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGauge struct {
	n int64
}

func (g *countingGauge) Inc() { atomic.AddInt64(&g.n, 1) }
func (g *countingGauge) Dec() { atomic.AddInt64(&g.n, -1) }
func (g *countingGauge) value() int64 {
	return atomic.LoadInt64(&g.n)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubBroadcast(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(gauge)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), gauge.value())

	hub.Broadcast(EventCaseHidden, HiddenCase{CaseNumber: "MA-20250715-001"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, EventCaseHidden, got.Event)
	assert.Contains(t, string(got.Data), `"caseNumber":"MA-20250715-001"`)
}

func TestHubClientDisconnect(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(gauge)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), gauge.value())
}

func TestHubCloseRefusesNewClients(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(gauge)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, int64(0), gauge.value())

	late := dial(t, srv)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Len())
}
