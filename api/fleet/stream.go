package fleet

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/lampfleet/api/command"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// stream upgrades to a WebSocket, sends the current snapshot and then every
// broadcast. Text frames from the client are applied as commands; a
// rejected command is answered with an error frame.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := s.eng.Subscribe()
	defer s.eng.Unsubscribe(sub)

	errs := make(chan streamError, 8)
	done := make(chan struct{})
	go s.readCommands(conn, errs, done)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(s.eng.Snapshot()); err != nil {
		return
	}
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		var err error
		select {
		case <-done:
			return
		case snap, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteJSON(snap)
		case e := <-errs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = conn.WriteJSON(e)
		case <-ping.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			s.log.Debugf("websocket write: %v", err)
			return
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, errs chan<- streamError, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		c, err := command.Decode(bytes.NewReader(msg))
		if err == nil {
			_, err = command.Apply(s.eng, c)
		}
		if err != nil {
			select {
			case errs <- streamError{Type: "error", Error: err.Error()}:
			default:
			}
		}
	}
}
