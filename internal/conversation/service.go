package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/convocore/internal/provider"
	"github.com/flemzord/convocore/internal/token"
)

// Config carries the numeric settings for a Service. Parsing and validation
// happen elsewhere; the service consumes plain numbers.
type Config struct {
	// MaxMessages caps the number of messages per context window.
	MaxMessages int

	// MaxTokens caps the estimated token cost per context window.
	MaxTokens int

	// MaxImages caps the embedded images per context window.
	MaxImages int

	// SummarizeThreshold is the running token estimate at which a channel
	// becomes due for summarization. 0 disables auto-summarization.
	SummarizeThreshold int
}

// withDefaults returns a copy of cfg with zero-valued fields replaced.
func (cfg Config) withDefaults() Config {
	if cfg.MaxMessages == 0 {
		cfg.MaxMessages = 50
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 100_000
	}
	if cfg.MaxImages == 0 {
		cfg.MaxImages = 4
	}
	return cfg
}

// Service orchestrates history persistence, context bounding, and
// summarization for channels. Operations targeting the same channel are
// strictly serialized by a per-channel lock; different channels proceed
// independently.
type Service struct {
	repo    Repository
	ai      AIProvider
	builder *Builder
	monitor *Monitor
	clock   Clock
	locks   *keyedLocks
	logger  *slog.Logger
	tracer  trace.Tracer
	events  EventSink
	config  Config
}

// Option customises a Service.
type Option func(*Service)

// WithClock injects a Clock for deterministic tests.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger injects a logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEventSink attaches an observer for channel state changes.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// NewService creates a Service over the given ports.
func NewService(repo Repository, ai AIProvider, estimator token.Estimator, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		repo:    repo,
		ai:      ai,
		builder: NewBuilder(estimator),
		monitor: NewMonitor(cfg.SummarizeThreshold),
		clock:   SystemClock{},
		locks:   newKeyedLocks(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("convocore/conversation"),
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Idle tracking follows the service clock, so PruneIdle behaves
	// deterministically under an injected clock.
	s.monitor.now = s.clock.Now
	s.locks.now = s.clock.Now
	return s
}

// Append stores a message at the tail of the channel's history. The stored
// message (with ID, timestamp, and visibility assigned) is returned.
func (s *Service) Append(ctx context.Context, msg Message) (Message, error) {
	if msg.ChannelID == "" {
		return Message{}, fmt.Errorf("%w: missing channel", ErrInvalidMessage)
	}
	if msg.Content == "" && len(msg.Images) == 0 {
		return Message{}, fmt.Errorf("%w: no content or images", ErrInvalidMessage)
	}
	if msg.Role == "" {
		msg.Role = RoleUser
	}

	ctx, span := s.tracer.Start(ctx, "conversation.Append",
		trace.WithAttributes(attribute.String("channel", msg.ChannelID)))
	defer span.End()

	release, err := s.locks.Acquire(ctx, msg.ChannelID)
	if err != nil {
		return Message{}, err
	}
	defer release()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	// Timestamps are assigned under the channel lock, so two concurrent
	// appends can never store out-of-order times.
	msg.CreatedAt = s.clock.Now()
	msg.Visibility = VisibilityVisible

	// The insert is never interrupted mid-write by the caller's timeout.
	if err := s.repo.InsertMessage(context.WithoutCancel(ctx), msg); err != nil {
		return Message{}, fmt.Errorf("append: %w", err)
	}

	if msg.chatEligible() {
		state := s.monitor.Add(msg.ChannelID, s.builder.EstimateMessage(msg))
		if state == StateAtThreshold {
			s.logger.Info("channel reached summarization threshold",
				"channel", msg.ChannelID)
		}
	}

	s.publish(Event{Type: EventAppended, ChannelID: msg.ChannelID, At: msg.CreatedAt})
	return msg, nil
}

// GetContext returns the bounded context window for a channel. When the
// channel's running estimate has crossed the threshold, history is
// summarized first; a transient provider failure degrades to serving the
// unsummarized window, leaving the channel due for the next attempt.
func (s *Service) GetContext(ctx context.Context, channelID, vendor string, mode Mode) (Window, error) {
	if channelID == "" {
		return Window{}, fmt.Errorf("%w: missing channel", ErrInvalidMessage)
	}
	if !mode.Valid() {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.GetContext",
		trace.WithAttributes(
			attribute.String("channel", channelID),
			attribute.String("mode", string(mode)),
		))
	defer span.End()

	release, err := s.locks.Acquire(ctx, channelID)
	if err != nil {
		return Window{}, err
	}
	defer release()

	history, err := s.repo.ListVisible(ctx, channelID, vendor)
	if err != nil {
		return Window{}, fmt.Errorf("get context: %w", err)
	}

	// The threshold is evaluated against the full visible chat-eligible
	// history, not the post-truncation window. A surviving summary alone
	// can hold the estimate at the threshold; with nothing further to
	// compress the window is served as is.
	state := s.monitor.Observe(channelID, s.builder.EstimateChat(history))
	if state == StateAtThreshold && hasSummarizableChat(history) && s.monitor.Begin(channelID) {
		if err := s.summarizeLocked(ctx, channelID, vendor, history); err != nil {
			s.monitor.Fail(channelID)
			if !provider.IsTransient(err) {
				return Window{}, err
			}
			s.logger.Warn("auto-summarization failed, serving unsummarized context",
				"channel", channelID, "error", err)
		} else {
			history, err = s.repo.ListVisible(ctx, channelID, vendor)
			if err != nil {
				return Window{}, fmt.Errorf("get context: %w", err)
			}
		}
	}

	w := s.builder.Build(history, BuildRequest{
		Mode:        mode,
		MaxMessages: s.config.MaxMessages,
		MaxTokens:   s.config.MaxTokens,
		MaxImages:   s.config.MaxImages,
	})
	span.SetAttributes(
		attribute.Int("window.messages", len(w.Messages)),
		attribute.Int("window.tokens", w.Tokens),
		attribute.Bool("window.truncated", w.Truncated),
	)
	return w, nil
}

// SummarizeNow forces a summarization regardless of the running estimate.
// It reports whether a summarization actually ran: false with a nil error
// means one was already in flight and the call was a no-op.
func (s *Service) SummarizeNow(ctx context.Context, channelID, vendor string) (bool, error) {
	if channelID == "" {
		return false, fmt.Errorf("%w: missing channel", ErrInvalidMessage)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.SummarizeNow",
		trace.WithAttributes(attribute.String("channel", channelID)))
	defer span.End()

	release, err := s.locks.Acquire(ctx, channelID)
	if err != nil {
		return false, err
	}
	defer release()

	history, err := s.repo.ListVisible(ctx, channelID, vendor)
	if err != nil {
		return false, fmt.Errorf("summarize: %w", err)
	}
	if !hasSummarizableChat(history) {
		return false, ErrNothingToSummarize
	}

	s.monitor.Observe(channelID, s.builder.EstimateChat(history))
	if !s.monitor.ForceBegin(channelID) {
		return false, nil
	}
	if err := s.summarizeLocked(ctx, channelID, vendor, history); err != nil {
		s.monitor.Fail(channelID)
		return false, err
	}
	return true, nil
}

// Clear marks the whole channel history cleared and resets summarization
// state.
func (s *Service) Clear(ctx context.Context, channelID, vendor string) error {
	if channelID == "" {
		return fmt.Errorf("%w: missing channel", ErrInvalidMessage)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.Clear",
		trace.WithAttributes(attribute.String("channel", channelID)))
	defer span.End()

	release, err := s.locks.Acquire(ctx, channelID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.repo.ClearChannel(context.WithoutCancel(ctx), channelID, vendor); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	s.monitor.Reset(channelID)
	s.publish(Event{Type: EventCleared, ChannelID: channelID, At: s.clock.Now()})
	return nil
}

// MonitorState exposes the channel's summarization posture, for status
// endpoints.
func (s *Service) MonitorState(channelID string) State {
	return s.monitor.StateOf(channelID)
}

// PruneIdle evicts per-channel locks and monitor state idle longer than
// maxIdle, returning the total entries removed.
func (s *Service) PruneIdle(maxIdle time.Duration) int {
	return s.locks.Prune(maxIdle) + s.monitor.Prune(maxIdle)
}

// hasSummarizableChat reports whether the history holds anything beyond
// prior summaries worth compressing.
func hasSummarizableChat(history []Message) bool {
	for _, m := range history {
		if m.chatEligible() && m.Role != RoleSystem {
			return true
		}
	}
	return false
}

// summarizeLocked compresses the channel's prior chat history into a single
// system message. Caller holds the channel lock and has moved the monitor
// to Summarizing; on error the caller reverts it.
//
// Once begun, the provider call and the persistence write run detached from
// the caller's cancellation: the operation completes or cleanly fails, and
// history is never left partially summarized.
func (s *Service) summarizeLocked(ctx context.Context, channelID, vendor string, history []Message) error {
	var chat []Message
	for _, m := range history {
		if m.chatEligible() && m.Role != RoleSystem {
			chat = append(chat, m)
		}
	}
	// Previous summaries are absorbed into the new one.
	var priorSummaries []Message
	for _, m := range history {
		if m.chatEligible() && m.Role == RoleSystem {
			priorSummaries = append(priorSummaries, m)
		}
	}
	if len(chat) == 0 {
		return ErrNothingToSummarize
	}

	ctx = context.WithoutCancel(ctx)
	input := append(append([]Message{}, priorSummaries...), chat...)

	summary, err := s.ai.Summarize(ctx, input)
	if err != nil {
		return fmt.Errorf("summarize channel %s: %w", channelID, err)
	}

	sum := Message{
		ID:         uuid.New(),
		ChannelID:  channelID,
		Vendor:     vendor,
		Role:       RoleSystem,
		Content:    formatSummary(summary),
		Visibility: VisibilityVisible,
		CreatedAt:  s.clock.Now(),
	}

	superseded := make([]uuid.UUID, 0, len(input))
	for _, m := range input {
		superseded = append(superseded, m.ID)
	}

	if err := s.repo.ApplySummary(ctx, sum, superseded); err != nil {
		return fmt.Errorf("persist summary for channel %s: %w", channelID, err)
	}

	// Running estimate resets to the summary plus whatever chat-eligible
	// messages survived (none at this instant; appends come later).
	s.monitor.Complete(channelID, s.builder.EstimateMessage(sum))

	s.logger.Info("channel history summarized",
		"channel", channelID,
		"absorbed", len(input),
		"summary_tokens", s.builder.EstimateMessage(sum),
	)
	s.publish(Event{Type: EventSummarized, ChannelID: channelID, At: sum.CreatedAt})
	return nil
}

func (s *Service) publish(ev Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// formatSummary wraps the raw summary text in a labelled block.
func formatSummary(summary string) string {
	var b strings.Builder
	b.WriteString("[Conversation Summary]\n")
	b.WriteString(summary)
	return b.String()
}
