package host

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadaw/novahost/internal/config"
	"github.com/novadaw/novahost/internal/plugin"
	"github.com/novadaw/novahost/internal/render"
	"github.com/novadaw/novahost/internal/ws"
)

// testStack is a full server on an ephemeral port.
type testStack struct {
	host   *Host
	server *ws.Server
	bundle string
	url    string
}

func startStack(t *testing.T) testStack {
	t.Helper()

	dir := t.TempDir()
	bundle := writeGainBundle(t, dir)

	catalog := plugin.NewCatalog(config.CatalogConfig{PluginDirs: []string{dir}})
	t.Cleanup(catalog.Close)
	require.NoError(t, catalog.Scan())

	h := New(catalog, 44100)
	server := ws.NewServer(ws.Options{Port: 0, MaxConnections: 8}, h)
	h.SetSender(server)
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)

	port := server.Addr().(*net.TCPAddr).Port
	return testStack{
		host:   h,
		server: server,
		bundle: bundle,
		url:    fmt.Sprintf("ws://127.0.0.1:%d/", port),
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readAction reads messages until one carries the wanted action, skipping
// unsolicited pushes that may interleave.
func readAction(t *testing.T, conn *websocket.Conn, action string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", action)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["action"] == action {
			return msg
		}
	}
}

func sendAction(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestEndToEndConnectReceivesCatalog(t *testing.T) {
	stack := startStack(t)
	conn := dial(t, stack.url)

	// the catalog arrives without asking
	msg := readAction(t, conn, "GET_PLUGIN_LIST")
	plugins := msg["plugins"].([]any)
	require.Len(t, plugins, 1)
	assert.Equal(t, "Test Gain", plugins[0].(map[string]any)["name"])
}

func TestEndToEndLoadUnloadProcess(t *testing.T) {
	stack := startStack(t)
	conn := dial(t, stack.url)
	readAction(t, conn, "GET_PLUGIN_LIST")

	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"A","sample_rate":48000}`)
	loaded := readAction(t, conn, "LOAD_PLUGIN")
	assert.Equal(t, true, loaded["success"])
	assert.Equal(t, "A", loaded["slot_id"])
	assert.Equal(t, "Test Gain", loaded["name"])
	assert.NotEmpty(t, loaded["parameters"])

	sendAction(t, conn, `{"action":"UNLOAD_PLUGIN","slot_id":"A"}`)
	unloaded := readAction(t, conn, "UNLOAD_PLUGIN")
	assert.Equal(t, true, unloaded["success"])
	assert.Equal(t, "A", unloaded["slot_id"])

	// the slot is gone, so the block comes back unchanged
	sendAction(t, conn, `{"action":"PROCESS_AUDIO","slot_id":"A","channels":[[0.25,-0.75]],"sampleRate":48000}`)
	processed := readAction(t, conn, "AUDIO_PROCESSED")
	samples := processed["channels"].([]any)[0].([]any)
	assert.Equal(t, 0.25, samples[0])
	assert.Equal(t, -0.75, samples[1])
}

func TestEndToEndPingAndSetParam(t *testing.T) {
	stack := startStack(t)
	conn := dial(t, stack.url)
	readAction(t, conn, "GET_PLUGIN_LIST")

	sendAction(t, conn, `{"action":"PING"}`)
	pong := readAction(t, conn, "PONG")
	assert.Greater(t, pong["timestamp"].(float64), 0.0)

	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"A"}`)
	readAction(t, conn, "LOAD_PLUGIN")

	sendAction(t, conn, `{"action":"SET_PARAM","slot_id":"A","name":"Gain","value":0.8}`)
	changed := readAction(t, conn, "PARAM_CHANGED")
	assert.Equal(t, "Gain", changed["name"])
	assert.Equal(t, 0.8, changed["value"])
}

func TestEndToEndUIFramePush(t *testing.T) {
	stack := startStack(t)

	scheduler := NewPushScheduler(stack.host.Registry(), stack.server, render.New(75), stack.host.Stats(), 30)
	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	conn := dial(t, stack.url)
	readAction(t, conn, "GET_PLUGIN_LIST")

	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"A"}`)
	readAction(t, conn, "LOAD_PLUGIN")

	frame := readAction(t, conn, "UI_FRAME")
	assert.Equal(t, "A", frame["slot_id"])
	assert.NotEmpty(t, frame["image"])
}

func TestEndToEndDisconnectPurgesSessions(t *testing.T) {
	stack := startStack(t)
	conn := dial(t, stack.url)
	readAction(t, conn, "GET_PLUGIN_LIST")

	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"A"}`)
	readAction(t, conn, "LOAD_PLUGIN")
	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"B"}`)
	readAction(t, conn, "LOAD_PLUGIN")
	require.Equal(t, 2, stack.host.Registry().Count())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return stack.host.Registry().Count() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEndToEndNoFramesAfterDisconnect(t *testing.T) {
	stack := startStack(t)

	scheduler := NewPushScheduler(stack.host.Registry(), stack.server, render.New(75), stack.host.Stats(), 30)
	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	conn := dial(t, stack.url)
	readAction(t, conn, "GET_PLUGIN_LIST")

	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"A"}`)
	readAction(t, conn, "LOAD_PLUGIN")
	sendAction(t, conn, `{"action":"LOAD_PLUGIN","path":`+mustJSON(stack.bundle)+`,"slot_id":"B"}`)
	readAction(t, conn, "LOAD_PLUGIN")

	// the client is streaming before it drops
	readAction(t, conn, "UI_FRAME")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return stack.host.Registry().Count() == 0
	}, 5*time.Second, 10*time.Millisecond)

	// let any tick that snapshotted before the purge drain, then the frame
	// counter must hold still
	time.Sleep(100 * time.Millisecond)
	sent := stack.host.Stats().FramesSent.Load()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, sent, stack.host.Stats().FramesSent.Load())
}
