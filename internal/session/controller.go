// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/protocol"
	"github.com/jeranaias/rigchat/internal/thinking"
	"github.com/jeranaias/rigchat/internal/transport"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the slice of the API surface the controller drives directly.
type Backend interface {
	// StreamURL resolves the streaming channel URL for a conversation.
	// Credentials are resolved fresh on every call, so a rotated token
	// takes effect on the next connection attempt.
	StreamURL(conversationID string) (string, error)

	// AbortGeneration asks the backend to stop generating. Best-effort;
	// the controller closes the channel locally regardless of the result.
	AbortGeneration(ctx context.Context, conversationID string) error

	// UpdateConversationModel records a model switch on the backend.
	UpdateConversationModel(ctx context.Context, conversationID, modelID string) error
}

// History persists conversation transcripts.
type History interface {
	Load(conversationID string) (*model.Conversation, error)
	AppendTurn(conversationID string, user, assistant model.Message) error
}

// SpanStore persists thinking spans across restarts. *thinking.Store
// satisfies it.
type SpanStore interface {
	Save(conversationID, fingerprint string, spans []model.ThinkSpan) error
	MergeInto(conversationID string, msg *model.Message) (bool, error)
}

// StatusCallback receives an immutable status snapshot after every change.
type StatusCallback func(status model.SessionStatus)

// DeltaCallback receives each content fragment as it is folded into the
// active assistant message.
type DeltaCallback func(messageID, fragment string)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds tunables for driving a turn.
type Config struct {
	// ConnectTimeout bounds a single channel open attempt (default: 5s).
	ConnectTimeout time.Duration

	// MaxConnectAttempts is the total number of open attempts before the
	// turn fails (default: 3).
	MaxConnectAttempts int

	// RetryDelay is the base backoff between attempts; the wait grows
	// linearly, attempt * RetryDelay (default: 1s).
	RetryDelay time.Duration
}

// DefaultConfig returns the default turn configuration.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		MaxConnectAttempts: 3,
		RetryDelay:         time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// TurnOptions carries optional attachments for a turn.
type TurnOptions struct {
	// Image is a base64 payload, with or without a data URI prefix.
	Image string

	// Document is an extracted document attachment.
	Document *model.DocumentRef
}

// =============================================================================
// SESSION CONTROLLER
// =============================================================================

// eventBuffer sizes the per-attempt stream event channel. The reader keeps
// up with the backend, so this only absorbs short bursts.
const eventBuffer = 64

// streamEvent is one ordered occurrence on the streaming channel: either a
// decoded frame or the channel close.
type streamEvent struct {
	frame    protocol.Frame
	closed   bool
	closeErr error
}

// Controller owns one chat session: the transcript, the active model, the
// status snapshot, and the single in-flight turn. All methods are safe for
// concurrent use; SendTurn blocks until the turn reaches a terminal state.
type Controller struct {
	mu sync.Mutex

	cfg     Config
	backend Backend
	history History
	spans   SpanStore
	timer   *thinking.Timer

	conversationID string
	modelID        string
	messages       []*model.Message
	webSearch      bool

	status   model.SessionStatus
	inFlight bool

	// Per-turn cancellation. Replaced at the start of every turn.
	cancelCh   chan struct{}
	cancelOnce *sync.Once
	channel    *transport.Channel

	onStatus StatusCallback
	onDelta  DeltaCallback
}

// NewController creates a session controller over the given backend.
func NewController(cfg Config, backend Backend) *Controller {
	return &Controller{
		cfg:     cfg.withDefaults(),
		backend: backend,
		timer:   thinking.NewTimer(),
		status:  model.NewSessionStatus(),
	}
}

// SetHistory installs the transcript persistence sink.
func (c *Controller) SetHistory(h History) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = h
}

// SetSpanStore installs the thinking span persistence store.
func (c *Controller) SetSpanStore(s SpanStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = s
}

// SetStatusCallback installs the status observer. The callback runs outside
// the controller lock and receives a copy of the status.
func (c *Controller) SetStatusCallback(fn StatusCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// SetDeltaCallback installs the content fragment observer.
func (c *Controller) SetDeltaCallback(fn DeltaCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelta = fn
}

// Status returns the current status snapshot.
func (c *Controller) Status() model.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Messages returns a deep copy of the transcript.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m.Clone())
	}
	return out
}

// ConversationID returns the bound conversation, or "" when none is bound.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Model returns the selected model, or "" when none is selected.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelID
}

// =============================================================================
// SESSION SETUP
// =============================================================================

// BindConversation points the session at a conversation and resets the
// transcript. Fails when a turn is in flight.
func (c *Controller) BindConversation(conversationID string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.conversationID = conversationID
	c.messages = nil
	status := model.NewSessionStatus()
	status.WebSearchEnabled = c.webSearch
	c.status = status
	c.mu.Unlock()

	c.notifyStatus()
	return nil
}

// LoadConversation binds a stored conversation and restores its transcript,
// merging persisted thinking spans into assistant messages.
func (c *Controller) LoadConversation(conversationID string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	history := c.history
	spans := c.spans
	c.mu.Unlock()

	if history == nil {
		return &SessionError{Type: ErrTypeValidation, Message: "no history store configured"}
	}
	conv, err := history.Load(conversationID)
	if err != nil {
		return &SessionError{Type: ErrTypeUnknown, Message: "load conversation", Cause: err}
	}

	msgs := make([]*model.Message, 0, len(conv.Messages))
	for i := range conv.Messages {
		m := conv.Messages[i].Clone()
		if spans != nil && m.Role == model.RoleAssistant {
			if _, err := spans.MergeInto(conversationID, &m); err != nil {
				log.Printf("session: merge thinking spans: %v", err)
			}
		}
		msgs = append(msgs, &m)
	}

	c.mu.Lock()
	c.conversationID = conversationID
	c.messages = msgs
	if conv.Model != "" {
		c.modelID = conv.Model
	}
	status := model.NewSessionStatus()
	status.WebSearchEnabled = c.webSearch
	c.status = status
	c.mu.Unlock()

	c.notifyStatus()
	return nil
}

// SetModel selects the model for subsequent turns and records the switch on
// the backend when a conversation is bound. The model axis reports loading
// until the stream says otherwise. Fails when a turn is in flight.
func (c *Controller) SetModel(ctx context.Context, modelID string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	if modelID == c.modelID {
		c.mu.Unlock()
		return nil
	}
	c.modelID = modelID
	c.status.Model = model.ModelLoading
	conversationID := c.conversationID
	c.mu.Unlock()

	c.notifyStatus()

	if conversationID == "" {
		return nil
	}
	if err := c.backend.UpdateConversationModel(ctx, conversationID, modelID); err != nil {
		return &SessionError{Type: ErrTypeUnknown, Message: "update conversation model", Cause: err}
	}
	return nil
}

// SetWebSearch toggles web search for subsequent turns.
func (c *Controller) SetWebSearch(enabled bool) {
	c.mu.Lock()
	c.webSearch = enabled
	c.status.WebSearchEnabled = enabled
	c.mu.Unlock()

	c.notifyStatus()
}

// =============================================================================
// SEND TURN
// =============================================================================

// SendTurn sends one user turn and blocks until the turn completes, fails,
// or is cancelled. The returned message is the final assistant message;
// on cancellation it holds the partial content received so far.
func (c *Controller) SendTurn(ctx context.Context, content string, opts TurnOptions) (*model.Message, error) {
	content = strings.TrimSpace(content)

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	if content == "" && opts.Image == "" && opts.Document == nil {
		c.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	if c.modelID == "" {
		c.mu.Unlock()
		return nil, ErrNoModel
	}
	if c.conversationID == "" {
		c.mu.Unlock()
		return nil, ErrNoConversation
	}

	user := model.NewUserMessage(content)
	user.Image = opts.Image
	user.Document = opts.Document
	user.Model = c.modelID

	assistant := model.NewAssistantMessage(c.modelID)
	c.messages = append(c.messages, user, assistant)

	c.inFlight = true
	c.cancelCh = make(chan struct{})
	c.cancelOnce = &sync.Once{}
	c.channel = nil

	c.status.Model = model.ModelIdle
	c.status.Generation = model.GenerationConnecting
	c.status.Thinking = model.ThinkingIdle
	c.status.Tool = model.ToolIdle
	c.status.Channel = model.ChannelConnecting
	c.status.ActiveMessageID = assistant.ID
	c.status.FailureReason = ""
	c.status.LoadingProgress = 0
	c.status.WebSearchEnabled = c.webSearch

	conversationID := c.conversationID
	modelID := c.modelID
	webSearch := c.webSearch
	cancelCh := c.cancelCh
	c.mu.Unlock()

	c.notifyStatus()

	payload, err := protocol.EncodeTurn(user, modelID, webSearch)
	if err != nil {
		return nil, c.finishFailed(assistant, "encode turn", err)
	}

	turnDone := make(chan struct{})
	defer close(turnDone)

	ch, events, err := c.connectWithRetry(ctx, conversationID, payload, cancelCh, turnDone)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		// Cancelled during connect.
		return c.finishCancelled(conversationID, user, assistant)
	}

	c.mu.Lock()
	c.channel = ch
	c.status.Generation = model.GenerationGenerating
	c.status.Channel = model.ChannelOpen
	c.mu.Unlock()
	c.notifyStatus()

	return c.consume(ctx, conversationID, user, assistant, webSearch, cancelCh, events)
}

// connectWithRetry opens the streaming channel and sends the turn payload,
// retrying with linearly growing backoff. The whole turn is resent on each
// attempt since a failed attempt delivered nothing. Returns (nil, nil, nil)
// when the turn was cancelled while connecting.
func (c *Controller) connectWithRetry(
	ctx context.Context,
	conversationID string,
	payload []byte,
	cancelCh <-chan struct{},
	turnDone <-chan struct{},
) (*transport.Channel, chan streamEvent, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		select {
		case <-cancelCh:
			return nil, nil, nil
		case <-ctx.Done():
			return nil, nil, nil
		default:
		}

		events := make(chan streamEvent, eventBuffer)
		ch, err := c.openChannel(ctx, conversationID, events, turnDone)
		if err == nil {
			serr := ch.Send(payload)
			if serr == nil {
				return ch, events, nil
			}
			ch.Close("send failed")
			err = serr
		}
		lastErr = err

		if attempt >= c.cfg.MaxConnectAttempts {
			assistant := c.activeAssistant()
			return nil, nil, c.finishFailed(assistant, "connection timed out", lastErr)
		}

		select {
		case <-time.After(time.Duration(attempt) * c.cfg.RetryDelay):
		case <-cancelCh:
			return nil, nil, nil
		case <-ctx.Done():
			return nil, nil, nil
		}
	}
}

// openChannel resolves the stream URL, dials within the connect timeout,
// and wires frame and close callbacks into the ordered event channel.
func (c *Controller) openChannel(
	ctx context.Context,
	conversationID string,
	events chan streamEvent,
	turnDone <-chan struct{},
) (*transport.Channel, error) {
	url, err := c.backend.StreamURL(conversationID)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	return transport.Open(dialCtx, url,
		func(data []byte) {
			pushEvent(events, turnDone, streamEvent{frame: protocol.Decode(data)})
		},
		func(err error) {
			pushEvent(events, turnDone, streamEvent{closed: true, closeErr: err})
		})
}

// pushEvent delivers to the event channel unless the turn already finished;
// once turnDone closes nobody is draining and the transport goroutine must
// not block.
func pushEvent(events chan<- streamEvent, turnDone <-chan struct{}, ev streamEvent) {
	select {
	case events <- ev:
	case <-turnDone:
	}
}

// consume folds stream events into the assistant message until a terminal
// frame, channel close, or cancellation.
func (c *Controller) consume(
	ctx context.Context,
	conversationID string,
	user, assistant *model.Message,
	webSearch bool,
	cancelCh <-chan struct{},
	events <-chan streamEvent,
) (*model.Message, error) {
	asm := NewAssembler(assistant, c.timer, webSearch)

	for {
		select {
		case <-cancelCh:
			return c.finishCancelled(conversationID, user, assistant)
		case <-ctx.Done():
			return c.finishCancelled(conversationID, user, assistant)
		case ev := <-events:
			if ev.closed {
				select {
				case <-cancelCh:
					// Cancel closed the channel under us.
					return c.finishCancelled(conversationID, user, assistant)
				default:
				}
				return nil, c.finishFailed(assistant, "channel closed before completion", ev.closeErr)
			}

			done, err := c.apply(asm, ev.frame)
			c.notifyStatus()
			if ev.frame.Kind == protocol.KindDelta {
				c.mu.Lock()
				onDelta := c.onDelta
				c.mu.Unlock()
				if onDelta != nil {
					onDelta(assistant.ID, ev.frame.Content)
				}
			}
			if err != nil {
				return nil, c.finishFailed(assistant, err.Error(), nil)
			}
			if done {
				return c.finishCompleted(conversationID, user, assistant)
			}
		}
	}
}

// apply folds one frame under the controller lock, so message mutation and
// transcript snapshots never race, and mirrors assembler sub-state into the
// status snapshot.
func (c *Controller) apply(asm *Assembler, fr protocol.Frame) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	done, err := asm.Apply(fr)
	load, progress := asm.Load()
	c.status.Thinking = asm.Thinking()
	c.status.Tool = asm.Tool()
	c.status.Model = load
	c.status.LoadingProgress = progress
	return done, err
}

// activeAssistant returns the assistant message of the in-flight turn.
func (c *Controller) activeAssistant() *model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel stops the in-flight turn: it asks the backend to abort, then
// closes the channel locally regardless of the outcome. The partial
// assistant content is preserved and the turn ends Completed, not Failed.
// Calling Cancel with no turn in flight is a no-op, as is calling it twice.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	if !c.inFlight {
		c.mu.Unlock()
		return
	}
	conversationID := c.conversationID
	ch := c.channel
	once := c.cancelOnce
	cancelCh := c.cancelCh
	c.mu.Unlock()

	once.Do(func() {
		close(cancelCh)
		if err := c.backend.AbortGeneration(ctx, conversationID); err != nil {
			log.Printf("session: abort generation: %v", err)
		}
		if ch != nil {
			ch.Close("cancelled")
		}
	})
}

// =============================================================================
// TERMINAL TRANSITIONS
// =============================================================================

func (c *Controller) finishCompleted(conversationID string, user, assistant *model.Message) (*model.Message, error) {
	c.closeChannel("turn complete")
	c.persistTurn(conversationID, user, assistant)
	c.settle(func(s *model.SessionStatus) {
		s.Generation = model.GenerationCompleted
		s.Channel = model.ChannelClosed
	})
	return assistant, nil
}

func (c *Controller) finishCancelled(conversationID string, user, assistant *model.Message) (*model.Message, error) {
	c.closeChannel("cancelled")
	c.mu.Lock()
	if assistant.OpenSpan() != nil {
		c.timer.EndSpan(assistant)
	}
	c.mu.Unlock()
	c.persistTurn(conversationID, user, assistant)
	c.settle(func(s *model.SessionStatus) {
		s.Generation = model.GenerationCompleted
		s.Channel = model.ChannelClosed
	})
	return assistant, nil
}

func (c *Controller) finishFailed(assistant *model.Message, reason string, cause error) error {
	c.closeChannel("turn failed")
	c.mu.Lock()
	if assistant != nil && assistant.OpenSpan() != nil {
		c.timer.EndSpan(assistant)
	}
	c.mu.Unlock()
	c.settle(func(s *model.SessionStatus) {
		s.Generation = model.GenerationFailed
		s.FailureReason = reason
		if cause != nil {
			s.Channel = model.ChannelError
		} else {
			s.Channel = model.ChannelClosed
		}
	})
	return &SessionError{Type: ErrTypeStream, Message: reason, Cause: cause}
}

// settle applies the terminal status transition shared by every outcome:
// thinking and tool reset to idle, the active message clears, and the turn
// stops being in flight.
func (c *Controller) settle(mutate func(*model.SessionStatus)) {
	c.mu.Lock()
	c.status.Thinking = model.ThinkingIdle
	c.status.Tool = model.ToolIdle
	c.status.ActiveMessageID = ""
	mutate(&c.status)
	c.inFlight = false
	c.channel = nil
	c.mu.Unlock()

	c.notifyStatus()
}

func (c *Controller) closeChannel(reason string) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil {
		ch.Close(reason)
	}
}

// persistTurn writes the completed turn to history and the assistant's
// thinking spans to the span store. Both are best-effort; persistence
// failures never fail the turn.
func (c *Controller) persistTurn(conversationID string, user, assistant *model.Message) {
	c.mu.Lock()
	history := c.history
	spans := c.spans
	c.mu.Unlock()

	if spans != nil && len(assistant.ThinkSpans) > 0 {
		fp := thinking.Fingerprint(assistant.Content)
		if err := spans.Save(conversationID, fp, assistant.ThinkSpans); err != nil {
			log.Printf("session: save thinking spans: %v", err)
		}
	}
	if history != nil {
		if err := history.AppendTurn(conversationID, *user, *assistant); err != nil {
			log.Printf("session: append turn: %v", err)
		}
	}
}

// notifyStatus delivers the current snapshot to the observer outside the
// lock.
func (c *Controller) notifyStatus() {
	c.mu.Lock()
	fn := c.onStatus
	status := c.status
	c.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}
