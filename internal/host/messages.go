package host

import (
	"encoding/json"

	"github.com/novadaw/novahost/internal/plugin"
)

// Client to server actions.
const (
	ActionPing          = "PING"
	ActionGetPluginList = "GET_PLUGIN_LIST"
	ActionLoadPlugin    = "LOAD_PLUGIN"
	ActionUnloadPlugin  = "UNLOAD_PLUGIN"
	ActionProcessAudio  = "PROCESS_AUDIO"
	ActionSetParam      = "SET_PARAM"
	ActionGetParams     = "GET_PARAMS"
	ActionClick         = "CLICK"
	ActionDrag          = "DRAG"
	ActionScroll        = "SCROLL"
	ActionKey           = "KEY"
	ActionSetWindowRect = "SET_WINDOW_RECT"
)

// Server to client actions. LOAD_PLUGIN, UNLOAD_PLUGIN and GET_PLUGIN_LIST
// replies reuse the request action name.
const (
	ActionPong           = "PONG"
	ActionAudioProcessed = "AUDIO_PROCESSED"
	ActionParamChanged   = "PARAM_CHANGED"
	ActionParams         = "PARAMS"
	ActionUIFrame        = "UI_FRAME"
)

// envelope carries only the action, to pick a handler before decoding the
// action-specific body.
type envelope struct {
	Action string `json:"action"`
}

type loadPluginRequest struct {
	SlotID     string  `json:"slot_id"`
	Path       string  `json:"path"`
	SampleRate float64 `json:"sample_rate"`
}

type unloadPluginRequest struct {
	SlotID string `json:"slot_id"`
}

// processAudioRequest keeps channels raw so a malformed payload can still be
// echoed back verbatim.
type processAudioRequest struct {
	SlotID     string          `json:"slot_id"`
	Channels   json.RawMessage `json:"channels"`
	SampleRate float64         `json:"sampleRate"`
}

type setParamRequest struct {
	SlotID string  `json:"slot_id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
}

type getParamsRequest struct {
	SlotID string `json:"slot_id"`
}

type clickRequest struct {
	SlotID string `json:"slot_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type dragRequest struct {
	SlotID string `json:"slot_id"`
	X1     int    `json:"x1"`
	Y1     int    `json:"y1"`
	X2     int    `json:"x2"`
	Y2     int    `json:"y2"`
}

type scrollRequest struct {
	SlotID string `json:"slot_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Delta  int    `json:"delta"`
}

type keyRequest struct {
	SlotID    string   `json:"slot_id"`
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"`
}

type setWindowRectRequest struct {
	SlotID string `json:"slot_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pongMessage struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

type pluginListMessage struct {
	Action  string              `json:"action"`
	Plugins []plugin.Descriptor `json:"plugins"`
}

type loadPluginResult struct {
	Action     string             `json:"action"`
	SlotID     string             `json:"slot_id"`
	Success    bool               `json:"success"`
	Name       string             `json:"name,omitempty"`
	Parameters []plugin.Parameter `json:"parameters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type unloadPluginResult struct {
	Action  string `json:"action"`
	SlotID  string `json:"slot_id"`
	Success bool   `json:"success"`
}

type audioProcessedMessage struct {
	Action   string          `json:"action"`
	SlotID   string          `json:"slot_id"`
	Channels json.RawMessage `json:"channels"`
}

type paramChangedMessage struct {
	Action string  `json:"action"`
	SlotID string  `json:"slot_id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
}

type paramsMessage struct {
	Action     string             `json:"action"`
	SlotID     string             `json:"slot_id"`
	Parameters []plugin.Parameter `json:"parameters"`
}

type uiFrameMessage struct {
	Action string `json:"action"`
	SlotID string `json:"slot_id"`
	Image  string `json:"image"`
}
