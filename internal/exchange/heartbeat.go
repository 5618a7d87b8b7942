package exchange

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// heartbeat keeps one connection's liveness visible to the remote endpoint
// independently of kline traffic. It proactively sends a pong frame on a
// fixed interval and answers remote ping sentinels after a randomized delay
// spread across the reply window, so hundreds of batches do not answer the
// endpoint at the same instant.
//
// TODO: the reply window (default 10 minutes) can exceed the remote idle
// timeout, in which case the remote closes the connection before the
// delayed reply goes out. Revisit whether the window should be clamped.
type heartbeat struct {
	conn        *websocket.Conn
	log         zerolog.Logger
	replyWindow time.Duration

	mu      sync.Mutex
	stopped bool
	timers  []*time.Timer
	done    chan struct{}
}

func newHeartbeat(conn *websocket.Conn, interval, replyWindow time.Duration, log zerolog.Logger) *heartbeat {
	h := &heartbeat{
		conn:        conn,
		log:         log,
		replyWindow: replyWindow,
		done:        make(chan struct{}),
	}
	go h.loop(interval)
	return h
}

func (h *heartbeat) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := h.send(); err != nil {
				h.log.Warn().Err(err).Msg("liveness frame failed, closing connection")
				// Closing unblocks the batch read loop, which takes the
				// same recovery path as a remote disconnect.
				_ = h.conn.Close()
				return
			}
			h.log.Debug().Msg("sent liveness frame")
		case <-h.done:
			return
		}
	}
}

// ScheduleReply arms a pong response after a uniformly random delay within
// the reply window. The timer is cancelled if the supervisor stops first,
// so a reply armed on a dead connection never fires against a new one.
func (h *heartbeat) ScheduleReply() {
	delay := time.Duration(0)
	if h.replyWindow > 0 {
		delay = time.Duration(rand.Int63n(int64(h.replyWindow)))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.timers = append(h.timers, time.AfterFunc(delay, func() {
		if err := h.send(); err != nil {
			h.log.Warn().Err(err).Msg("delayed ping reply failed")
			return
		}
		h.log.Debug().Dur("delay", delay).Msg("answered remote ping")
	}))
}

func (h *heartbeat) send() error {
	return h.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(5*time.Second))
}

// Stop releases the interval ticker and any pending reply timers. It is
// idempotent: stopping a supervisor with nothing running is a no-op.
func (h *heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	close(h.done)
	for _, t := range h.timers {
		t.Stop()
	}
	h.timers = nil
}
