package main

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var errNotUTF8 = errors.New("message is not valid UTF-8")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a gorilla connection to Conn. Send is only ever called by
// whoever holds the owning hub's lock, or by the connection's own goroutine
// before it joins a hub, so writes never overlap. Pings go through
// WriteControl, which gorilla allows concurrently with everything else.
type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func newWSConn(conn *websocket.Conn, readLimit int64) *wsConn {
	c := &wsConn{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingPump()

	return c
}

func (c *wsConn) Send(msg string) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *wsConn) Receive() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}

	if !utf8.Valid(data) {
		return "", errNotUTF8
	}

	return string(data), nil
}

// reject tells the peer why its handshake failed.
func (c *wsConn) reject(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })

	return c.conn.Close()
}

func (c *wsConn) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func endConnection(cfg *Config, c *wsConn, err error, remote string) {
	var rej *rejectError
	if errors.As(err, &rej) {
		c.reject(rej.reason)
		logf(cfg, "GAMES: Rejected %s: %s", remote, rej.reason)

		return
	}

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logf(cfg, "GAMES: Connection from %s ended: %v", remote, err)
	}
}

// serveHost handles $prefix/ws/hostcoop/:name.
func serveHost(cfg *Config, d *Dispatcher) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name := ps.ByName("name")
		if !validName(name) {
			http.Error(w, ErrInvalidName.Error(), http.StatusBadRequest)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("upgrade: %v", err)

			return
		}

		c := newWSConn(conn, cfg.maxMessageSize)
		defer c.Close()

		endConnection(cfg, c, d.Host(c, name), realIP(r))
	}
}

// serveJoin handles $prefix/ws/join/c:code. Unknown games are refused before
// the upgrade.
func serveJoin(cfg *Config, d *Dispatcher, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code, ok := codeFromPath(ps.ByName("code"))
		if !ok {
			http.Error(w, ErrInvalidCode.Error(), http.StatusBadRequest)

			return
		}

		hub, err := gm.acquire(code)
		if err != nil {
			logf(cfg, "GAMES: %s asked for unknown game %s", realIP(r), code)
			http.Error(w, err.Error(), http.StatusNotFound)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			gm.release(hub)
			errorf("upgrade: %v", err)

			return
		}

		c := newWSConn(conn, cfg.maxMessageSize)
		defer c.Close()

		endConnection(cfg, c, d.Join(c, hub), realIP(r))
	}
}

// joinURL is the address a player dials to join the game with this code.
func joinURL(cfg *Config, r *http.Request, code string) string {
	scheme := "ws"
	if r.TLS != nil || cfg.scheme() == "https" {
		scheme = "wss"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		scheme = "wss"
	}

	return scheme + "://" + r.Host + cfg.prefix + "/ws/join/" + joinPath(code)
}

// serveQR renders the join address of a running game as a PNG QR code.
func serveQR(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := strings.ToLower(ps.ByName("code"))

		if _, ok := gm.lookup(code); !ok {
			http.Error(w, ErrGameNotFound.Error(), http.StatusNotFound)

			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(joinURL(cfg, r, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		_, _ = w.Write(png)
	}
}

func registerGame(cfg *Config, mux *httprouter.Router, d *Dispatcher, gm *GameManager) {
	mux.GET(cfg.prefix+"/ws/hostcoop/:name", serveHost(cfg, d))
	mux.GET(cfg.prefix+"/ws/join/:code", serveJoin(cfg, d, gm))
	mux.GET(cfg.prefix+"/join/:code/qr", serveQR(cfg, gm))
}
