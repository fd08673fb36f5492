// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// OUTBOUND ENCODING
// =============================================================================

// TurnMessage is one message entry in an outbound chat request.
type TurnMessage struct {
	Role    string             `json:"role"`
	Content string             `json:"content"`
	Image   string             `json:"image,omitempty"`
	Document *model.DocumentRef `json:"document,omitempty"`
}

// TurnRequest is the frame that starts a turn on the streaming channel.
type TurnRequest struct {
	Type      string        `json:"type"`
	Messages  []TurnMessage `json:"messages"`
	Model     string        `json:"model"`
	WebSearch bool          `json:"web_search"`
}

// EncodeTurn serializes a user message into the outbound turn-start frame.
// Inline images are sent as bare base64: any data-URI prefix is stripped.
func EncodeTurn(msg *model.Message, modelID string, webSearch bool) ([]byte, error) {
	req := TurnRequest{
		Type:  "chat",
		Model: modelID,
		Messages: []TurnMessage{{
			Role:     msg.Role.String(),
			Content:  msg.Content,
			Image:    StripDataURI(msg.Image),
			Document: msg.Document,
		}},
		WebSearch: webSearch,
	}
	return json.Marshal(req)
}

// StripDataURI removes a "data:<mime>;base64," prefix from an inline image,
// leaving the raw base64 payload. Input without a prefix passes through.
func StripDataURI(image string) string {
	if image == "" {
		return ""
	}
	if !strings.HasPrefix(image, "data:") {
		return image
	}
	if idx := strings.IndexByte(image, ','); idx >= 0 {
		return image[idx+1:]
	}
	return image
}

// =============================================================================
// INBOUND FRAME VARIANTS
// =============================================================================

// FrameKind tags the decoded variant of an inbound frame.
type FrameKind int

const (
	KindDelta FrameKind = iota
	KindModelLoading
	KindToolEvent
	KindDone
	KindError
)

// String returns the frame kind name for diagnostics.
func (k FrameKind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindModelLoading:
		return "model_loading"
	case KindToolEvent:
		return "tool_event"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadStatus is the model-loading status carried by a ModelLoading frame.
type LoadStatus string

const (
	LoadStatusLoading LoadStatus = "loading"
	LoadStatusReady   LoadStatus = "ready"
	LoadStatusError   LoadStatus = "error"
)

// ModelLoading reports backend model load progress for the active turn.
type ModelLoading struct {
	Status   LoadStatus
	Progress int // 0-100
	Message  string
}

// ToolPhase distinguishes a tool invocation from its result.
type ToolPhase int

const (
	ToolPhaseCall ToolPhase = iota
	ToolPhaseResult
)

// ToolKind classifies the tool involved in a ToolEvent.
type ToolKind int

const (
	ToolKindOther ToolKind = iota
	ToolKindWebSearch
	ToolKindMCP
)

// ToolEvent reports tool activity interleaved with content deltas.
type ToolEvent struct {
	Phase ToolPhase
	Kind  ToolKind
	Name  string
}

// Frame is the tagged decoding of one inbound frame. Exactly the fields for
// its Kind are populated.
type Frame struct {
	Kind FrameKind

	// KindDelta
	Content string

	// KindModelLoading
	Loading ModelLoading

	// KindToolEvent
	Tool ToolEvent

	// KindError
	ErrorDetail string
}

// =============================================================================
// INBOUND DECODING
// =============================================================================

// inboundProbe captures every field any known inbound frame can carry.
// Message is raw because the chat frame uses it as an object while the
// model_loading frame uses it as a string.
type inboundProbe struct {
	Type     string          `json:"type"`
	Status   string          `json:"status"`
	Progress float64         `json:"progress"`
	Message  json.RawMessage `json:"message"`
	Done     bool            `json:"done"`
	Error    string          `json:"error"`
}

// chatPayload is the message object of a chat frame.
type chatPayload struct {
	Content    string          `json:"content"`
	ToolCall   json.RawMessage `json:"tool_call"`
	ToolResult json.RawMessage `json:"tool_result"`
}

// toolRef extracts the tool name from a tool_call / tool_result payload.
type toolRef struct {
	Name     string `json:"name"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// Decode parses one raw inbound frame into its tagged variant. It is total:
// malformed or unrecognized input decodes to an Error frame, never panics
// and never returns an error.
func Decode(data []byte) Frame {
	var probe inboundProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return errorFrame("malformed frame: " + err.Error())
	}

	if probe.Error != "" {
		return Frame{Kind: KindError, ErrorDetail: probe.Error}
	}

	if probe.Type == "model_loading" {
		return decodeModelLoading(probe)
	}

	if probe.Done {
		return Frame{Kind: KindDone}
	}

	if len(probe.Message) > 0 {
		return decodeChatMessage(probe.Message)
	}

	return errorFrame("unrecognized frame")
}

// decodeModelLoading maps a model_loading frame, rejecting unknown statuses.
func decodeModelLoading(probe inboundProbe) Frame {
	status := LoadStatus(probe.Status)
	switch status {
	case LoadStatusLoading, LoadStatusReady, LoadStatusError:
	default:
		return errorFrame("unknown model_loading status: " + probe.Status)
	}

	progress := int(probe.Progress)
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	var message string
	if len(probe.Message) > 0 {
		// Best effort: the field is a plain string in this frame shape.
		json.Unmarshal(probe.Message, &message)
	}

	return Frame{
		Kind: KindModelLoading,
		Loading: ModelLoading{
			Status:   status,
			Progress: progress,
			Message:  message,
		},
	}
}

// decodeChatMessage maps the message object of a chat frame. Tool events
// take precedence over content: the backend never mixes the two in one
// frame, but a defined order keeps decoding deterministic.
func decodeChatMessage(raw json.RawMessage) Frame {
	var payload chatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorFrame("malformed message payload: " + err.Error())
	}

	if len(payload.ToolCall) > 0 {
		return toolEventFrame(ToolPhaseCall, payload.ToolCall)
	}
	if len(payload.ToolResult) > 0 {
		return toolEventFrame(ToolPhaseResult, payload.ToolResult)
	}

	return Frame{Kind: KindDelta, Content: payload.Content}
}

// toolEventFrame builds a ToolEvent frame, classifying the tool by name.
func toolEventFrame(phase ToolPhase, raw json.RawMessage) Frame {
	var ref toolRef
	json.Unmarshal(raw, &ref)

	name := ref.Name
	if name == "" {
		name = ref.Function.Name
	}

	return Frame{
		Kind: KindToolEvent,
		Tool: ToolEvent{
			Phase: phase,
			Kind:  classifyTool(name),
			Name:  name,
		},
	}
}

// classifyTool maps a tool name onto the surfaced tool kinds.
func classifyTool(name string) ToolKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "web_search"), strings.Contains(lower, "search"):
		return ToolKindWebSearch
	case strings.HasPrefix(lower, "mcp"):
		return ToolKindMCP
	default:
		return ToolKindOther
	}
}

func errorFrame(detail string) Frame {
	return Frame{Kind: KindError, ErrorDetail: detail}
}
