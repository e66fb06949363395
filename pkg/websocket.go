package apscan

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

const WS_DEFAULT_CHANNEL string = "networks"

// WSRelay pushes every Change from the Scanner to connected websockets.
// Clients still get the full latest scan in each message, never a diff.
type WSRelay struct {
	relay chan Change
	newWs chan *WSCONN
	log   logrus.FieldLogger

	mu    sync.Mutex
	socks []*WSCONN
}

func NewWSRelay(relay chan Change, log logrus.FieldLogger) *WSRelay {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSRelay{
		relay: relay,
		newWs: make(chan *WSCONN),
		log:   log,
	}
}

func (t *WSRelay) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		quit := make(chan struct{})
		loopDone := make(chan struct{})
		go func() {
			defer close(loopDone)
		mainloop:
			for {
				select {
				case <-quit:
					break mainloop
				case ws := <-t.newWs:
					t.AddSock(ws)
				case v := <-t.relay:
					t.Broadcast(WS_DEFAULT_CHANNEL, v)
				}
			}
		}()

		started <- true
		<-stop
		close(quit)
		<-loopDone
		t.mu.Lock()
		for _, sock := range t.socks {
			sock.Close()
		}
		t.socks = nil
		t.mu.Unlock()
		stopped <- true
	}()
	return nil
}

func (t *WSRelay) Broadcast(channel string, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.socks[:0]
	for _, ws := range t.socks {
		if ws.channel != channel {
			kept = append(kept, ws)
			continue
		}
		if err := websocket.JSON.Send(ws.WS, v); err != nil {
			t.log.WithError(err).Debug("dropping websocket")
			ws.Close()
			continue
		}
		kept = append(kept, ws)
	}
	t.socks = kept
}

func (t *WSRelay) AddSock(ws *WSCONN) {
	t.mu.Lock()
	t.socks = append(t.socks, ws)
	n := len(t.socks)
	t.mu.Unlock()
	t.log.Debugf("accepted websocket, %d connected", n)
}

// GetWSHandler registers each connection on channel and sends it the
// payload from initialPayloader first, if that returns non-nil.
func (t *WSRelay) GetWSHandler(channel string, initialPayloader func() any) *websocket.Server {
	h := websocket.Server{
		Handler: func(ws *websocket.Conn) {
			conn := &WSCONN{WS: ws, Stop: make(chan bool), channel: channel}

			if p := initialPayloader(); p != nil {
				if err := websocket.JSON.Send(ws, p); err != nil {
					t.log.WithError(err).Debug("failed to send initial payload")
					return
				}
			}

			t.newWs <- conn
			go conn.watchClose()
			<-conn.Stop // hold the connection until stopper closes
		},
		Config: websocket.Config{Origin: nil},
	}
	return &h
}

type WSCONN struct {
	WS      *websocket.Conn
	Stop    chan bool
	once    sync.Once
	channel string // 'channel' discriminator for messages
}

func (t *WSCONN) Close() {
	t.once.Do(func() {
		close(t.Stop)
	})
}

// watchClose reads until the client goes away. Clients never send
// anything meaningful.
func (t *WSCONN) watchClose() {
	var discard []byte
	for {
		if err := websocket.Message.Receive(t.WS, &discard); err != nil {
			t.Close()
			return
		}
	}
}
