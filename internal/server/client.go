package server

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/voxaos/internal/logging"
	"github.com/normanking/voxaos/internal/metrics"
	"github.com/normanking/voxaos/internal/session"
	"github.com/normanking/voxaos/pkg/types"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	sendBuffer = 256
	jobBuffer  = 64
)

var upgrader = websocket.Upgrader{
	// The assistant serves a local browser client.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

var errClientGone = errors.New("client disconnected")

// job is one unit of pipeline work. Jobs run one at a time on the worker so
// the pipeline never sees concurrent callers.
type job func(ctx context.Context) iter.Seq[types.StreamChunk]

// client pumps one connection. The read pump owns push-to-talk buffering;
// the worker owns the pipeline.
type client struct {
	conn *websocket.Conn
	sess *session.Session
	send chan outbound
	jobs chan job
	log  zerolog.Logger

	pttActive bool
	pttBuf    []byte
}

func newClient(conn *websocket.Conn, sess *session.Session) *client {
	return &client{
		conn: conn,
		sess: sess,
		send: make(chan outbound, sendBuffer),
		jobs: make(chan job, jobBuffer),
		log:  logging.Component("server").With().Str("session", sess.ID).Logger(),
	}
}

// serve blocks until the connection ends.
func (c *client) serve(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx) })
	g.Go(func() error { return c.work(gctx) })
	g.Go(func() error { return c.forwardConfirmations(gctx) })
	g.Go(func() error { return c.writePump(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, errClientGone) && !errors.Is(err, context.Canceled) {
		c.log.Warn().Err(err).Msg("connection ended with error")
	}
}

// readPump pumps messages from the websocket connection to the worker.
func (c *client) readPump(ctx context.Context) error {
	defer close(c.jobs)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read failed")
			}
			return errClientGone
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch kind {
		case websocket.BinaryMessage:
			c.handleAudio(data)
		case websocket.TextMessage:
			c.handleControl(data)
		}
	}
}

// handleAudio buffers held push-to-talk audio even while the pipeline is
// busy; PushToTalk decides at release whether it can run.
func (c *client) handleAudio(data []byte) {
	if c.pttActive {
		c.pttBuf = append(c.pttBuf, data...)
		return
	}
	if c.sess.Pipeline.Busy() {
		metrics.DroppedFrames.Inc()
		return
	}
	c.enqueue(func(ctx context.Context) iter.Seq[types.StreamChunk] {
		return c.sess.Pipeline.FeedAudio(ctx, data)
	})
}

func (c *client) handleControl(data []byte) {
	msg, err := ParseControl(data)
	if err != nil {
		c.log.Warn().Err(err).Msg("ignoring control message")
		return
	}

	switch msg.Type {
	case MsgPushToTalk:
		if msg.State == "start" {
			c.pttActive = true
			c.pttBuf = c.pttBuf[:0]
			c.enqueue(func(context.Context) iter.Seq[types.StreamChunk] {
				return c.sess.Pipeline.Reset()
			})
			return
		}
		if !c.pttActive {
			return
		}
		c.pttActive = false
		pcm := c.pttBuf
		c.pttBuf = nil
		c.enqueue(func(ctx context.Context) iter.Seq[types.StreamChunk] {
			return c.sess.Pipeline.PushToTalk(ctx, pcm)
		})

	case MsgTextInput:
		text := msg.Text
		c.enqueue(func(ctx context.Context) iter.Seq[types.StreamChunk] {
			return c.sess.Pipeline.SubmitText(ctx, text)
		})

	case MsgConfirm:
		if !c.sess.Confirm(msg.Approved) {
			c.log.Debug().Msg("confirm received with nothing pending")
		}
	}
}

// enqueue hands j to the worker, dropping it when the queue is full.
func (c *client) enqueue(j job) {
	select {
	case c.jobs <- j:
	default:
		metrics.DroppedFrames.Inc()
		c.log.Warn().Msg("work queue full, dropping message")
	}
}

// work runs queued jobs and maps their events onto the wire.
func (c *client) work(ctx context.Context) error {
	var mapper chunkMapper
	for j := range c.jobs {
		for chunk := range j(ctx) {
			frame, ok, err := mapper.Map(chunk)
			if err != nil {
				c.log.Warn().Err(err).Msg("unmapped event")
				continue
			}
			if !ok {
				continue
			}
			if err := c.push(ctx, frame); err != nil {
				return err
			}
		}
	}
	return errClientGone
}

func (c *client) forwardConfirmations(ctx context.Context) error {
	for {
		select {
		case req := <-c.sess.ConfirmRequests():
			frame, err := confirmFrame(req)
			if err != nil {
				c.log.Warn().Err(err).Msg("confirm request encode failed")
				continue
			}
			if err := c.push(ctx, frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *client) push(ctx context.Context, f outbound) error {
	select {
	case c.send <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writePump pumps messages to the websocket connection.
func (c *client) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(f.kind, f.payload); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		}
	}
}
