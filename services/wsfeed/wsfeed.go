// Package wsfeed streams receiver events and state to websocket clients
// and forwards their control requests onto the bus.
package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"nwrcode-go/bus"
	"nwrcode-go/errcode"
	"nwrcode-go/types"
	"nwrcode-go/x/timex"
)

var (
	topicEvents = bus.T("nwr", "event", "#")
	topicState  = bus.T("nwr", "state", "#")
)

const (
	requestTimeout = 5 * time.Second
	clientQueue    = 64
)

// Frame is the JSON sent to clients. Bus traffic fills Topic and Payload;
// replies to a client request fill ID and Reply.
type Frame struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload,omitempty"`
	ID      int    `json:"id,omitempty"`
	Reply   any    `json:"reply,omitempty"`
	Stamp   int64  `json:"stamp"`
}

// Request is what clients send: a control verb and its payload.
type Request struct {
	ID      int             `json:"id"`
	Verb    string          `json:"verb"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
	send chan []byte
	done bool
}

// enqueue drops the frame when the client is slow or gone.
func (c *wsClient) enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		c.done = true
		close(c.send)
	}
}

type Server struct {
	cfg  types.WSFeedConfig
	conn *bus.Connection
	log  *logrus.Entry

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

func New(conn *bus.Connection, cfg types.WSFeedConfig, log *logrus.Entry) *Server {
	if cfg.Path == "" {
		cfg.Path = "/events"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		cfg:     cfg,
		conn:    conn,
		log:     log.WithField("service", "wsfeed"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler serves the websocket endpoint on the configured path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	return mux
}

// Run pumps the bus to clients and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.pump(ctx)

	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	s.log.WithField("listen", s.cfg.Listen).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) pump(ctx context.Context) {
	evSub := s.conn.Subscribe(topicEvents)
	stSub := s.conn.Subscribe(topicState)
	defer s.conn.Unsubscribe(evSub)
	defer s.conn.Unsubscribe(stSub)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-evSub.Channel():
			s.forward(m)
		case m := <-stSub.Channel():
			s.forward(m)
		}
	}
}

func (s *Server) forward(m *bus.Message) {
	if m == nil {
		return
	}
	s.broadcast(Frame{Topic: m.Topic.String(), Payload: m.Payload, Stamp: timex.NowMs()})
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.log.WithError(err).WithField("topic", frame.Topic).Warn("frame not encodable")
		return
	}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		c.enqueue(data)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade failed")
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.log.WithField("clients", n).Info("client connected")

	// Writer
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			n := len(s.clients)
			s.clientsMu.Unlock()
			client.close()
			s.log.WithField("clients", n).Info("client disconnected")
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req Request
			if err := json.Unmarshal(data, &req); err != nil || req.Verb == "" {
				s.replyTo(client, Frame{ID: req.ID, Reply: types.Reply{Error: "bad request", Code: errcode.InvalidPayload}})
				continue
			}
			go s.request(client, req)
		}
	}()
}

// request forwards req to nwr/control/<verb> and relays the reply.
func (s *Server) request(c *wsClient, req Request) {
	var payload any
	if len(req.Payload) > 0 {
		payload = []byte(req.Payload)
	}
	topic := bus.T("nwr", "control", req.Verb)
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	m, err := s.conn.RequestWait(ctx, s.conn.NewMessage(topic, payload, false))
	f := Frame{Topic: topic.String(), ID: req.ID}
	if err != nil {
		f.Reply = types.Reply{Error: err.Error(), Code: errcode.Of(err)}
	} else {
		f.Reply = m.Payload
	}
	s.replyTo(c, f)
}

func (s *Server) replyTo(c *wsClient, f Frame) {
	f.Stamp = timex.NowMs()
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}
