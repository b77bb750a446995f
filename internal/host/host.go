package host

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/novadaw/novahost/internal/logger"
	"github.com/novadaw/novahost/internal/plugin"
)

// Sender delivers encoded outbound messages. The WebSocket server satisfies
// it; tests substitute a recorder.
type Sender interface {
	Send(clientID string, payload []byte)
	Broadcast(payload []byte)
}

// Stats counts routed traffic for the status endpoint.
type Stats struct {
	MessagesHandled atomic.Uint64
	FramesSent      atomic.Uint64
}

// Host implements the transport's event interface. Every inbound message is
// decoded, dispatched by action tag and answered on the same client. The
// transport invokes all methods from its dispatch goroutine.
type Host struct {
	catalog  *plugin.Catalog
	registry *Registry
	sender   Sender
	log      *logger.Logger
	stats    *Stats

	defaultSampleRate float64

	// loadInstance is swappable in tests
	loadInstance func(path string, sampleRate float64) (plugin.Instance, error)

	handlers map[string]func(clientID string, payload []byte)
}

func New(catalog *plugin.Catalog, defaultSampleRate float64) *Host {
	if defaultSampleRate <= 0 {
		defaultSampleRate = 44100
	}
	h := &Host{
		catalog:           catalog,
		registry:          NewRegistry(),
		log:               logger.Global().WithPrefix("host"),
		stats:             &Stats{},
		defaultSampleRate: defaultSampleRate,
		loadInstance:      plugin.LoadInstance,
	}
	h.handlers = map[string]func(string, []byte){
		ActionPing:          h.handlePing,
		ActionGetPluginList: h.handleGetPluginList,
		ActionLoadPlugin:    h.handleLoadPlugin,
		ActionUnloadPlugin:  h.handleUnloadPlugin,
		ActionProcessAudio:  h.handleProcessAudio,
		ActionSetParam:      h.handleSetParam,
		ActionGetParams:     h.handleGetParams,
		ActionClick:         h.handleClick,
		ActionDrag:          h.handleDrag,
		ActionScroll:        h.handleScroll,
		ActionKey:           h.handleKey,
		ActionSetWindowRect: h.handleSetWindowRect,
	}
	return h
}

// SetSender wires the outbound transport. Must be called before the
// transport starts delivering events.
func (h *Host) SetSender(s Sender) {
	h.sender = s
}

// Registry exposes the session registry for the push scheduler and status
// reporting.
func (h *Host) Registry() *Registry {
	return h.registry
}

// Stats exposes the traffic counters.
func (h *Host) Stats() *Stats {
	return h.stats
}

// ClientConnected pushes the plugin catalog to the new client so it has the
// list without asking.
func (h *Host) ClientConnected(clientID string) {
	h.sendPluginList(clientID)
}

// ClientDisconnected tears down every session the client held. This runs
// before any further message from that client could be observed, so no
// handler ever sees a half-purged client.
func (h *Host) ClientDisconnected(clientID string) {
	h.registry.DestroyAllForClient(clientID)
}

// MessageReceived decodes the action tag and dispatches. Unknown actions and
// undecodable payloads are logged and dropped; they never tear down the
// connection.
func (h *Host) MessageReceived(clientID string, payload []byte) {
	h.stats.MessagesHandled.Add(1)

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.log.Warn("undecodable message from %s: %v", clientID, err)
		return
	}

	handler, ok := h.handlers[env.Action]
	if !ok {
		h.log.Warn("unknown action %q from %s", env.Action, clientID)
		return
	}
	handler(clientID, payload)
}

func (h *Host) send(clientID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode outbound message: %v", err)
		return
	}
	h.sender.Send(clientID, data)
}

func (h *Host) sendPluginList(clientID string) {
	plugins := h.catalog.Plugins()
	if plugins == nil {
		plugins = []plugin.Descriptor{}
	}
	h.send(clientID, pluginListMessage{Action: ActionGetPluginList, Plugins: plugins})
}

func (h *Host) handlePing(clientID string, _ []byte) {
	h.send(clientID, pongMessage{Action: ActionPong, Timestamp: time.Now().UnixMilli()})
}

func (h *Host) handleGetPluginList(clientID string, _ []byte) {
	h.sendPluginList(clientID)
}

func (h *Host) handleLoadPlugin(clientID string, payload []byte) {
	var req loadPluginRequest
	_ = json.Unmarshal(payload, &req)

	if req.SampleRate <= 0 {
		req.SampleRate = h.defaultSampleRate
	}

	inst, err := h.registry.Create(clientID, req.SlotID, func() (plugin.Instance, error) {
		return h.loadInstance(req.Path, req.SampleRate)
	})
	if err != nil {
		h.log.Warn("load failed for %s slot %s: %v", clientID, req.SlotID, err)
		h.send(clientID, loadPluginResult{
			Action: ActionLoadPlugin,
			SlotID: req.SlotID,
			Error:  "Failed to load plugin",
		})
		return
	}

	h.log.Info("loaded %s into %s/%s at %.0f Hz", inst.Name(), clientID, req.SlotID, req.SampleRate)
	h.send(clientID, loadPluginResult{
		Action:     ActionLoadPlugin,
		SlotID:     req.SlotID,
		Success:    true,
		Name:       inst.Name(),
		Parameters: inst.Parameters(),
	})
}

// handleUnloadPlugin always reports success, whether or not the slot was
// occupied.
func (h *Host) handleUnloadPlugin(clientID string, payload []byte) {
	var req unloadPluginRequest
	_ = json.Unmarshal(payload, &req)

	h.registry.DestroyOne(clientID, req.SlotID)
	h.send(clientID, unloadPluginResult{Action: ActionUnloadPlugin, SlotID: req.SlotID, Success: true})
}

// handleProcessAudio runs the block through the slot's instance. With no
// instance, or channels that do not decode, the input is echoed back
// unchanged rather than failing.
func (h *Host) handleProcessAudio(clientID string, payload []byte) {
	var req processAudioRequest
	_ = json.Unmarshal(payload, &req)

	echo := func() {
		channels := req.Channels
		if channels == nil {
			channels = json.RawMessage("[]")
		}
		h.send(clientID, audioProcessedMessage{Action: ActionAudioProcessed, SlotID: req.SlotID, Channels: channels})
	}

	inst, ok := h.registry.Get(clientID, req.SlotID)
	if !ok {
		echo()
		return
	}

	var channels [][]float64
	if err := json.Unmarshal(req.Channels, &channels); err != nil {
		echo()
		return
	}

	processed, err := json.Marshal(inst.Process(channels))
	if err != nil {
		echo()
		return
	}
	h.send(clientID, audioProcessedMessage{Action: ActionAudioProcessed, SlotID: req.SlotID, Channels: processed})
}

// handleSetParam applies the change when the slot exists and always replies
// PARAM_CHANGED echoing the requested name and value.
func (h *Host) handleSetParam(clientID string, payload []byte) {
	var req setParamRequest
	_ = json.Unmarshal(payload, &req)

	if inst, ok := h.registry.Get(clientID, req.SlotID); ok {
		inst.SetParameter(req.Name, req.Value)
	}
	h.send(clientID, paramChangedMessage{
		Action: ActionParamChanged,
		SlotID: req.SlotID,
		Name:   req.Name,
		Value:  req.Value,
	})
}

// handleGetParams replies with the slot's current parameters; a missing slot
// gets no reply.
func (h *Host) handleGetParams(clientID string, payload []byte) {
	var req getParamsRequest
	_ = json.Unmarshal(payload, &req)

	inst, ok := h.registry.Get(clientID, req.SlotID)
	if !ok {
		return
	}
	h.send(clientID, paramsMessage{Action: ActionParams, SlotID: req.SlotID, Parameters: inst.Parameters()})
}

// editorFor resolves the slot's editor surface; nil when the slot or its
// surface is absent, which makes every interaction below a silent no-op.
func (h *Host) editorFor(clientID, slotID string) *plugin.EditorSurface {
	inst, ok := h.registry.Get(clientID, slotID)
	if !ok {
		return nil
	}
	return inst.Editor()
}

func (h *Host) handleClick(clientID string, payload []byte) {
	var req clickRequest
	_ = json.Unmarshal(payload, &req)

	if ed := h.editorFor(clientID, req.SlotID); ed != nil {
		ed.Click(req.X, req.Y)
	}
}

func (h *Host) handleDrag(clientID string, payload []byte) {
	var req dragRequest
	_ = json.Unmarshal(payload, &req)

	if ed := h.editorFor(clientID, req.SlotID); ed != nil {
		ed.Drag(req.X1, req.Y1, req.X2, req.Y2)
	}
}

func (h *Host) handleScroll(clientID string, payload []byte) {
	var req scrollRequest
	_ = json.Unmarshal(payload, &req)

	if ed := h.editorFor(clientID, req.SlotID); ed != nil {
		ed.Scroll(req.X, req.Y, req.Delta)
	}
}

func (h *Host) handleKey(clientID string, payload []byte) {
	var req keyRequest
	_ = json.Unmarshal(payload, &req)

	if ed := h.editorFor(clientID, req.SlotID); ed != nil {
		ed.Key(req.Key, req.Modifiers)
	}
}

func (h *Host) handleSetWindowRect(clientID string, payload []byte) {
	var req setWindowRectRequest
	_ = json.Unmarshal(payload, &req)

	if ed := h.editorFor(clientID, req.SlotID); ed != nil {
		ed.SetBounds(req.X, req.Y, req.Width, req.Height)
	}
}
