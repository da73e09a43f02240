package realtime

import "encoding/json"

// Inbound event types handled by the session.
const (
	evtSessionCreated      = "session.created"
	evtSessionUpdated      = "session.updated"
	evtAudioDelta          = "response.audio.delta"
	evtAudioDone           = "response.audio.done"
	evtAudioTranscriptDone = "response.audio_transcript.done"
	evtOutputItemAdded     = "response.output_item.added"
	evtFunctionArgsDelta   = "response.function_call_arguments.delta"
	evtFunctionArgsDone    = "response.function_call_arguments.done"
	evtSpeechStarted       = "input_audio_buffer.speech_started"
	evtSpeechStopped       = "input_audio_buffer.speech_stopped"
	evtInputTranscriptDone = "conversation.item.input_audio_transcription.completed"
	evtError               = "error"
)

// Outbound message and item types.
const (
	msgSessionUpdate   = "session.update"
	msgAudioAppend     = "input_audio_buffer.append"
	msgItemCreate      = "conversation.item.create"
	msgResponseCreate  = "response.create"
	itemFunctionOutput = "function_call_output"
	itemFunctionCall   = "function_call"
)

const (
	toolLogActivity        = "log_activity"
	defaultTranscribeModel = "whisper-1"
	defaultVADThreshold    = 0.5
	defaultVADPrefixMs     = 300
	defaultVADSilenceMs    = 500
)

// serverEvent is the union of the inbound fields the session reads.
type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	Transcript string `json:"transcript"`
	Item       *struct {
		Type   string `json:"type"`
		CallID string `json:"call_id"`
		Name   string `json:"name"`
	} `json:"item"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type toolSchema struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type sessionConfig struct {
	Modalities              []string          `json:"modalities"`
	Instructions            string            `json:"instructions"`
	Voice                   string            `json:"voice,omitempty"`
	InputAudioFormat        string            `json:"input_audio_format"`
	OutputAudioFormat       string            `json:"output_audio_format"`
	InputAudioTranscription map[string]string `json:"input_audio_transcription"`
	TurnDetection           turnDetection     `json:"turn_detection"`
	Tools                   []toolSchema      `json:"tools"`
	ToolChoice              string            `json:"tool_choice"`
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

// logActivitySchema is the JSON schema of the log_activity tool arguments.
var logActivitySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "activity_name":    {"type": "string", "description": "Short title of the activity"},
    "duration_minutes": {"type": "integer", "minimum": 0},
    "int_xp":           {"type": "integer", "minimum": 0, "maximum": 10000},
    "phy_xp":           {"type": "integer", "minimum": 0, "maximum": 10000},
    "imp_xp":           {"type": "integer", "minimum": 0, "maximum": 10000},
    "soc_xp":           {"type": "integer", "minimum": 0, "maximum": 10000},
    "physical_points":  {"type": "integer", "minimum": 0, "maximum": 10000},
    "mental_points":    {"type": "integer", "minimum": 0, "maximum": 10000},
    "notes":            {"type": "string"}
  },
  "required": ["activity_name", "int_xp", "phy_xp", "imp_xp", "soc_xp", "physical_points", "mental_points"]
}`)

func newSessionUpdate(instructions, voice string) sessionUpdate {
	return sessionUpdate{
		Type: msgSessionUpdate,
		Session: sessionConfig{
			Modalities:              []string{"text", "audio"},
			Instructions:            instructions,
			Voice:                   voice,
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm16",
			InputAudioTranscription: map[string]string{"model": defaultTranscribeModel},
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         defaultVADThreshold,
				PrefixPaddingMs:   defaultVADPrefixMs,
				SilenceDurationMs: defaultVADSilenceMs,
			},
			Tools: []toolSchema{{
				Type:        "function",
				Name:        toolLogActivity,
				Description: "Log a completed dog training activity with XP for each stat and daily goal points.",
				Parameters:  logActivitySchema,
			}},
			ToolChoice: "auto",
		},
	}
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
	Content []itemContent `json:"content,omitempty"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type itemCreate struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type responseCreate struct {
	Type string `json:"type"`
}

// toolResult is the envelope returned to the model after a tool call.
type toolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
