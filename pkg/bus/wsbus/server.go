package wsbus

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/soundboard/playerctld/internal/corelog"
)

const (
	maxReadBufSize  = 4096
	maxWriteBufSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxReadBufSize,
	WriteBufferSize: maxWriteBufSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AcceptFunc is called once per upgraded connection, on its own
// goroutine, so the caller can decide whether it's the player
// connection or a UI connection and wire it up accordingly.
type AcceptFunc func(conn *Conn, r *http.Request)

// Handler upgrades incoming HTTP requests to websocket connections and
// hands each one to accept. It implements http.Handler so it can be
// mounted directly on an http.ServeMux (mirroring the teacher's
// socket.Server).
type Handler struct {
	accept AcceptFunc
}

// NewHandler returns an http.Handler that upgrades every request and
// calls accept with the resulting Conn.
func NewHandler(accept AcceptFunc) *Handler {
	return &Handler{accept: accept}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		corelog.For("wsbus").Error().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	h.accept(NewConn(ws), r)
}
