package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	orredis "github.com/fractalrespect/orecx/pkg/redis"
	"github.com/fractalrespect/orecx/pkg/store"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionReplay      = "replay"

	// allEvents subscribes to every event type.
	allEvents = "*"

	maxReplay = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage is sent by websocket clients.
type ClientMessage struct {
	Action string `json:"action"`
	// Event is an event type such as "proposal.stored", or "*".
	Event string `json:"event,omitempty"`
	// Count bounds a replay.
	Count int64 `json:"count,omitempty"`
}

// ServerMessage is sent to websocket clients.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// eventFilter tracks the event types a client listens to.
type eventFilter struct {
	mu     sync.RWMutex
	events map[string]bool
}

func newEventFilter() *eventFilter {
	return &eventFilter{events: make(map[string]bool)}
}

func (f *eventFilter) Subscribe(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event] = true
}

func (f *eventFilter) Unsubscribe(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, event)
}

// Matches reports whether event is subscribed, directly or through "*".
func (f *eventFilter) Matches(event string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.events[allEvents] || f.events[event]
}

// HandleWebSocket streams store events published on Redis.
//
// Client sends:
//
//	{"action": "subscribe", "event": "proposal.stored"}
//	{"action": "subscribe", "event": "*"}
//	{"action": "unsubscribe", "event": "proposal.stored"}
//	{"action": "replay", "count": 20}
//
// Server sends events as {"type": "<event type>", "payload": {...}} plus
// "subscribed", "unsubscribed", "info" and "error" messages.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Live events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	filter := newEventFilter()
	send := make(chan ServerMessage, 256)
	var producers, writer sync.WaitGroup

	guard := func(wg *sync.WaitGroup, name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in WebSocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}()
	}

	guard(&producers, "redis", func() { c.subscribeToRedis(ctx, send, filter) })
	guard(&producers, "ping", func() { c.sendPings(ctx, conn) })
	guard(&writer, "writer", func() { c.writeMessages(conn, send) })

	// Blocks until the client goes away.
	c.readClientMessages(ctx, conn, cancel, filter, send)

	// send is closed only after every producer has stopped.
	producers.Wait()
	close(send)
	writer.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// subscribeToRedis forwards matching events until ctx is done, resubscribing
// with backoff whenever Redis drops the subscription.
func (c *Controller) subscribeToRedis(ctx context.Context, send chan<- ServerMessage, filter *eventFilter) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1
	)

	backoff := initialBackoff
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}
		attempt++

		err := c.attemptRedisSubscription(ctx, send, filter, attempt)
		if ctx.Err() != nil {
			return
		}
		c.App.Logger.Warn("Redis subscription ended, will retry",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))

		if !trySend(ctx, send, ServerMessage{
			Type: "error",
			Payload: map[string]any{
				"message":     "Redis connection lost, attempting to reconnect...",
				"retryIn":     backoff.Seconds(),
				"attempt":     attempt,
				"recoverable": true,
			},
		}) {
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = calculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

func (c *Controller) attemptRedisSubscription(ctx context.Context, send chan<- ServerMessage, filter *eventFilter, attempt int) error {
	pubsub := c.App.RedisClient.PSubscribe(ctx, orredis.ChannelPattern)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Debug("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()
	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("confirm Redis subscription: %w", err)
	}

	if !trySend(ctx, send, ServerMessage{
		Type:    "info",
		Payload: map[string]any{"message": "Redis connection established", "attempt": attempt},
	}) {
		return ctx.Err()
	}
	return c.processRedisMessages(ctx, pubsub, send, filter)
}

func (c *Controller) processRedisMessages(ctx context.Context, pubsub *redis.PubSub, send chan<- ServerMessage, filter *eventFilter) error {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event := eventTypeFromChannel(msg.Channel)
			if event == "" || !filter.Matches(event) {
				continue
			}
			var ev store.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				c.App.Logger.Error("Failed to parse Redis message",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}
			if !trySend(ctx, send, ServerMessage{Type: event, Payload: ev}) {
				return ctx.Err()
			}
		}
	}
}

// calculateNextBackoff grows current by factor, capped at max, with
// +/- jitterFactor of random jitter. It never returns less than current.
func calculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	withJitter := time.Duration(float64(next) + jitter)
	if withJitter < current {
		withJitter = current
	}
	if withJitter > max {
		withJitter = max
	}
	return withJitter
}

// eventTypeFromChannel returns "proposal.stored" for "ornode:proposal.stored".
func eventTypeFromChannel(channel string) string {
	event, ok := strings.CutPrefix(channel, orredis.ChannelPrefix)
	if !ok || event == "" || strings.Contains(event, ":") {
		return ""
	}
	return event
}

// sendPings keeps the connection alive; pongs reset the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}
}

func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, filter *eventFilter, send chan<- ServerMessage) {
	const readTimeout = 60 * time.Second
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for ctx.Err() == nil {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		var reply []ServerMessage
		switch msg.Action {
		case actionSubscribe, actionUnsubscribe:
			if msg.Event == "" {
				reply = append(reply, errorMessage("event is required"))
				break
			}
			if msg.Action == actionSubscribe {
				filter.Subscribe(msg.Event)
				reply = append(reply, ServerMessage{Type: "subscribed", Payload: map[string]string{"event": msg.Event}})
			} else {
				filter.Unsubscribe(msg.Event)
				reply = append(reply, ServerMessage{Type: "unsubscribed", Payload: map[string]string{"event": msg.Event}})
			}
		case actionReplay:
			reply = c.replay(ctx, msg.Count, filter)
		default:
			reply = append(reply, errorMessage("unknown action: "+msg.Action))
		}
		for _, m := range reply {
			if !trySend(ctx, send, m) {
				return
			}
		}
	}
}

// replay returns the last count stream events matching filter, oldest first.
func (c *Controller) replay(ctx context.Context, count int64, filter *eventFilter) []ServerMessage {
	if count <= 0 || count > maxReplay {
		count = maxReplay
	}
	events, err := c.App.RedisClient.Recent(ctx, count)
	if err != nil {
		c.App.Logger.Warn("Replay failed", zap.Error(err))
		return []ServerMessage{errorMessage("replay unavailable")}
	}
	out := make([]ServerMessage, 0, len(events))
	for _, ev := range events {
		if filter.Matches(string(ev.Type)) {
			out = append(out, ServerMessage{Type: string(ev.Type), Payload: ev})
		}
	}
	return out
}

func errorMessage(msg string) ServerMessage {
	return ServerMessage{Type: "error", Payload: map[string]string{"message": msg}}
}

func trySend(ctx context.Context, send chan<- ServerMessage, msg ServerMessage) bool {
	select {
	case send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
