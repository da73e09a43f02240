// Package realtime manages a voice session against the OpenAI Realtime
// websocket API: connection state, reconnects, audio streaming and the
// log_activity tool call.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/metrics"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/prompts"
)

// State is the connection state of a Session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Permission is the cached microphone permission.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

var (
	ErrMicrophoneDenied = errors.New("microphone permission denied")
	ErrNotConnected     = errors.New("realtime session not connected")
	ErrRetriesExhausted = errors.New("realtime reconnect attempts exhausted")
)

// TokenSource mints the ephemeral credential used to open the socket.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Microphone captures audio frames.
type Microphone interface {
	// RequestPermission asks the user once; the answer is cached by the session.
	RequestPermission(ctx context.Context) (bool, error)
	// Start delivers frames to onFrame in capture order until Stop.
	Start(onFrame func(samples []float32)) error
	Stop()
}

// ActivityRecorder persists an activity reported by the log_activity tool and
// returns a short confirmation for the model to speak.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, report *model.ActivityReport) (string, error)
}

// Observer receives session events. Calls may come from any goroutine.
type Observer interface {
	OnStateChange(state State)
	OnTranscript(role, text string)
	OnActivityLogged(report *model.ActivityReport, message string)
	OnError(err error)
}

// ObserverFuncs implements Observer with optional callbacks.
type ObserverFuncs struct {
	StateChange    func(State)
	Transcript     func(role, text string)
	ActivityLogged func(*model.ActivityReport, string)
	Error          func(error)
}

func (o ObserverFuncs) OnStateChange(s State) {
	if o.StateChange != nil {
		o.StateChange(s)
	}
}

func (o ObserverFuncs) OnTranscript(role, text string) {
	if o.Transcript != nil {
		o.Transcript(role, text)
	}
}

func (o ObserverFuncs) OnActivityLogged(r *model.ActivityReport, msg string) {
	if o.ActivityLogged != nil {
		o.ActivityLogged(r, msg)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// Config describes the endpoint and reconnect policy.
type Config struct {
	URL          string
	Model        string
	Voice        string
	Instructions string

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ToolTimeout bounds a RecordActivity call.
	ToolTimeout time.Duration

	Dialer *websocket.Dialer
	// OnFatal fires once the retry budget is spent.
	OnFatal func(err error)
}

// Deps are the I/O collaborators of a Session. Speaker and Observer may be nil.
type Deps struct {
	Tokens     TokenSource
	Microphone Microphone
	Speaker    Speaker
	Recorder   ActivityRecorder
	Observer   Observer
}

// Session is one voice session. It is safe for concurrent use.
type Session struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu         sync.Mutex
	state      State
	permission Permission
	conn       *websocket.Conn
	userClosed bool
	attempts   int
	backoff    *backoff.ExponentialBackOff
	timer      *time.Timer
	capturing  bool

	writeMu sync.Mutex
	tools   toolCallAccumulator // read loop only
	play    *playbackQueue
}

// NewSession builds a disconnected session.
func NewSession(cfg Config, deps Deps, log zerolog.Logger) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	if cfg.Instructions == "" {
		cfg.Instructions = prompts.VoiceInstructions
	}
	if cfg.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = 30 * time.Second
		cfg.Dialer = &d
	}
	if deps.Observer == nil {
		deps.Observer = ObserverFuncs{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	return &Session{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		state:   StateDisconnected,
		backoff: b,
		play:    newPlaybackQueue(deps.Speaker),
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Permission returns the cached microphone permission.
func (s *Session) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// setStateLocked changes the state and reports whether observers must be told.
func (s *Session) setStateLocked(st State) bool {
	if s.state == st {
		return false
	}
	s.state = st
	return true
}

func (s *Session) notify(st State) {
	s.log.Debug().Str("state", string(st)).Msg("realtime state")
	s.deps.Observer.OnStateChange(st)
}

// Connect opens the session. It is a no-op while connecting or connected.
// The session reports StateConnected only after session.created arrives.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.userClosed = false
	s.attempts = 0
	s.backoff.Reset()
	changed := s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	if changed {
		s.notify(StateConnecting)
	}

	if err := s.open(ctx); err != nil {
		s.mu.Lock()
		changed := s.setStateLocked(StateError)
		s.mu.Unlock()
		if changed {
			s.notify(StateError)
		}
		s.deps.Observer.OnError(err)
		return err
	}
	return nil
}

func (s *Session) ensurePermission(ctx context.Context) error {
	s.mu.Lock()
	perm := s.permission
	s.mu.Unlock()
	switch perm {
	case PermissionGranted:
		return nil
	case PermissionDenied:
		return ErrMicrophoneDenied
	}
	if s.deps.Microphone == nil {
		return fmt.Errorf("%w: no microphone", ErrMicrophoneDenied)
	}
	ok, err := s.deps.Microphone.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request microphone permission: %w", err)
	}
	s.mu.Lock()
	if ok {
		s.permission = PermissionGranted
	} else {
		s.permission = PermissionDenied
	}
	s.mu.Unlock()
	if !ok {
		return ErrMicrophoneDenied
	}
	return nil
}

// Subprotocols returns the websocket subprotocols that carry the credential.
func Subprotocols(token string) []string {
	return []string{"realtime", "openai-insecure-api-key." + token, "openai-beta.realtime-v1"}
}

func (s *Session) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("realtime url: %w", err)
	}
	if s.cfg.Model != "" {
		q := u.Query()
		q.Set("model", s.cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// open mints a token, dials and starts the read loop and capture.
func (s *Session) open(ctx context.Context) error {
	if err := s.ensurePermission(ctx); err != nil {
		return err
	}
	if s.deps.Tokens == nil {
		return errors.New("realtime: no token source")
	}
	token, err := s.deps.Tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("mint realtime token: %w", err)
	}
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}
	d := *s.cfg.Dialer
	d.Subprotocols = Subprotocols(token)
	conn, resp, err := d.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}

	s.mu.Lock()
	if s.userClosed {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	startCapture := !s.capturing && s.deps.Microphone != nil
	s.capturing = s.capturing || startCapture
	s.mu.Unlock()

	go s.readLoop(conn)
	if startCapture {
		if err := s.deps.Microphone.Start(s.sendAudio); err != nil {
			s.mu.Lock()
			s.capturing = false
			s.mu.Unlock()
			s.deps.Observer.OnError(fmt.Errorf("start microphone: %w", err))
		}
	}
	s.log.Info().Str("model", s.cfg.Model).Msg("realtime socket open")
	return nil
}

// writeJSON serialises writes to the current connection.
func (s *Session) writeJSON(v interface{}) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// sendAudio is the capture callback. Frames are dropped while no socket is open.
func (s *Session) sendAudio(samples []float32) {
	if len(samples) == 0 {
		return
	}
	err := s.writeJSON(audioAppend{Type: msgAudioAppend, Audio: EncodeAudio(samples)})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		s.log.Debug().Err(err).Msg("audio append failed")
	}
}

// SendText adds a user text message and asks for a response.
func (s *Session) SendText(text string) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	item := itemCreate{Type: msgItemCreate, Item: conversationItem{
		Type:    "message",
		Role:    "user",
		Content: []itemContent{{Type: "input_text", Text: text}},
	}}
	if err := s.writeJSON(item); err != nil {
		return err
	}
	return s.writeJSON(responseCreate{Type: msgResponseCreate})
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDrop(conn, err)
			return
		}
		s.handleEvent(data)
	}
}

func (s *Session) handleEvent(data []byte) {
	var evt serverEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		s.log.Warn().Err(err).Msg("unreadable realtime event")
		return
	}
	switch evt.Type {
	case evtSessionCreated:
		s.mu.Lock()
		s.attempts = 0
		s.backoff.Reset()
		changed := s.setStateLocked(StateConnected)
		s.mu.Unlock()
		if changed {
			s.notify(StateConnected)
		}
		if err := s.writeJSON(newSessionUpdate(s.cfg.Instructions, s.cfg.Voice)); err != nil {
			s.deps.Observer.OnError(fmt.Errorf("send session.update: %w", err))
		}
	case evtSessionUpdated:
		s.log.Debug().Msg("realtime session updated")
	case evtAudioDelta:
		samples, err := DecodeAudio(evt.Delta)
		if err != nil {
			s.deps.Observer.OnError(err)
			return
		}
		s.play.Enqueue(samples)
	case evtAudioDone, evtSpeechStopped:
	case evtSpeechStarted:
		s.play.Clear()
	case evtInputTranscriptDone:
		s.deps.Observer.OnTranscript("user", evt.Transcript)
	case evtAudioTranscriptDone:
		s.deps.Observer.OnTranscript("assistant", evt.Transcript)
	case evtOutputItemAdded:
		if evt.Item != nil && evt.Item.Type == itemFunctionCall {
			s.tools.Start(evt.Item.CallID, evt.Item.Name)
		}
	case evtFunctionArgsDelta:
		s.tools.Delta(evt.CallID, evt.Delta)
	case evtFunctionArgsDone:
		call := s.tools.Done(evt.CallID, evt.Name, evt.Arguments)
		go s.handleToolCall(call)
	case evtError:
		msg := "unknown realtime error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.deps.Observer.OnError(fmt.Errorf("realtime: %s", msg))
	default:
		s.log.Debug().Str("type", evt.Type).Msg("realtime event ignored")
	}
}

// handleToolCall runs the tool and always reports back so the conversation
// continues.
func (s *Session) handleToolCall(call ToolCall) {
	result := s.runTool(call)
	out, _ := json.Marshal(result)
	item := itemCreate{Type: msgItemCreate, Item: conversationItem{
		Type:   itemFunctionOutput,
		CallID: call.CallID,
		Output: string(out),
	}}
	if err := s.writeJSON(item); err != nil {
		s.deps.Observer.OnError(fmt.Errorf("send tool output: %w", err))
		return
	}
	if err := s.writeJSON(responseCreate{Type: msgResponseCreate}); err != nil {
		s.deps.Observer.OnError(fmt.Errorf("send response.create: %w", err))
	}
}

func (s *Session) runTool(call ToolCall) toolResult {
	if call.Name != toolLogActivity {
		err := fmt.Errorf("unknown tool %q", call.Name)
		s.deps.Observer.OnError(err)
		return toolResult{Success: false, Error: err.Error()}
	}
	report, err := model.ParseActivityReport(call.Arguments)
	if err != nil {
		s.deps.Observer.OnError(err)
		return toolResult{Success: false, Error: err.Error()}
	}
	if s.deps.Recorder == nil {
		return toolResult{Success: false, Error: "activity logging is unavailable"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ToolTimeout)
	defer cancel()
	msg, err := s.deps.Recorder.RecordActivity(ctx, report)
	if err != nil {
		s.deps.Observer.OnError(fmt.Errorf("record activity: %w", err))
		return toolResult{Success: false, Error: err.Error()}
	}
	s.deps.Observer.OnActivityLogged(report, msg)
	return toolResult{Success: true, Message: msg}
}

// handleDrop runs when a connection's read fails.
func (s *Session) handleDrop(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	stopCapture := s.capturing
	s.capturing = false
	s.mu.Unlock()

	_ = conn.Close()
	if stopCapture && s.deps.Microphone != nil {
		s.deps.Microphone.Stop()
	}
	s.play.Clear()
	s.log.Warn().Err(cause).Msg("realtime socket closed")
	s.scheduleReconnect(cause)
}

// scheduleReconnect arms the next attempt or gives up when the budget is spent.
func (s *Session) scheduleReconnect(cause error) {
	s.mu.Lock()
	if s.userClosed {
		changed := s.setStateLocked(StateDisconnected)
		s.mu.Unlock()
		if changed {
			s.notify(StateDisconnected)
		}
		return
	}
	s.attempts++
	if s.attempts > s.cfg.MaxAttempts {
		changed := s.setStateLocked(StateError)
		attempts := s.cfg.MaxAttempts
		s.mu.Unlock()
		metrics.RealtimeReconnects.WithLabelValues("exhausted").Inc()
		if changed {
			s.notify(StateError)
		}
		err := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, cause)
		s.deps.Observer.OnError(err)
		if s.cfg.OnFatal != nil {
			s.cfg.OnFatal(err)
		}
		return
	}
	delay := s.backoff.NextBackOff()
	attempt := s.attempts
	changed := s.setStateLocked(StateConnecting)
	s.timer = time.AfterFunc(delay, s.reconnect)
	s.mu.Unlock()

	metrics.RealtimeReconnects.WithLabelValues("scheduled").Inc()
	s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("realtime reconnect scheduled")
	if changed {
		s.notify(StateConnecting)
	}
}

func (s *Session) reconnect() {
	s.mu.Lock()
	s.timer = nil
	if s.userClosed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.open(ctx); err != nil {
		s.log.Warn().Err(err).Msg("realtime reconnect failed")
		if errors.Is(err, ErrMicrophoneDenied) {
			s.mu.Lock()
			s.attempts = s.cfg.MaxAttempts
			s.mu.Unlock()
		}
		s.scheduleReconnect(err)
	}
}

// Disconnect stops the session on the user's behalf: it cancels a pending
// reconnect, stops capture, clears playback and closes the socket normally.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.userClosed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	stopCapture := s.capturing
	s.capturing = false
	changed := s.setStateLocked(StateDisconnected)
	s.mu.Unlock()

	if stopCapture && s.deps.Microphone != nil {
		s.deps.Microphone.Stop()
	}
	s.play.Clear()
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	if changed {
		s.notify(StateDisconnected)
	}
}

// Close disconnects and stops the playback goroutine. The session cannot be
// reused afterwards.
func (s *Session) Close() {
	s.Disconnect()
	s.play.Close()
}
