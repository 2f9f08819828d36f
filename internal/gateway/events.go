package gateway

import (
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/flemzord/convocore/internal/conversation"
)

// subscriber buffer: a stalled consumer drops events rather than blocking
// the service.
const eventBuffer = 16

// EventHub fans service events out to WebSocket subscribers. It implements
// conversation.EventSink; Publish never blocks.
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan conversation.Event]struct{}
}

// Compile-time interface guard.
var _ conversation.EventSink = (*EventHub)(nil)

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]map[chan conversation.Event]struct{})}
}

// Publish delivers the event to the channel's subscribers. Full subscriber
// buffers drop the event.
func (h *EventHub) Publish(ev conversation.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.ChannelID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener for one channel's events. The returned
// cancel function must be called to release the subscription.
func (h *EventHub) Subscribe(channelID string) (<-chan conversation.Event, func()) {
	ch := make(chan conversation.Event, eventBuffer)

	h.mu.Lock()
	if h.subs[channelID] == nil {
		h.subs[channelID] = make(map[chan conversation.Event]struct{})
	}
	h.subs[channelID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[channelID], ch)
		if len(h.subs[channelID]) == 0 {
			delete(h.subs, channelID)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// handleEvents upgrades to WebSocket and streams the channel's events until
// the client disconnects.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "channel", channel, "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		events, cancel := g.hub.Subscribe(channel)
		defer cancel()

		// No inbound messages are expected; CloseRead surfaces the
		// client's disconnect through the context.
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case ev := <-events:
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					return
				}
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}
