//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package server

import (
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

const outboxSize = 64

type wsClient struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// hub is the WebSocket channel transport: it fans signal messages out to
// every connected page.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: map[*wsClient]struct{}{}}
}

func (h *hub) Deliver(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- msg:
		default:
			glog.Warningf("dropping a message for %s: outbox full", c.conn.Request().RemoteAddr)
		}
	}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (s *Server) serveWS(ws *websocket.Conn) {
	c := &wsClient{
		conn: ws,
		out:  make(chan []byte, outboxSize),
		done: make(chan struct{}),
	}
	addr := ws.Request().RemoteAddr
	glog.V(1).Infof("Page connected from %s", addr)
	s.hub.add(c)
	defer func() {
		s.hub.remove(c)
		c.close()
		glog.V(1).Infof("Page from %s disconnected", addr)
	}()

	go func() {
		for {
			select {
			case msg := <-c.out:
				if err := websocket.Message.Send(ws, string(msg)); err != nil {
					glog.V(1).Infof("Websocket send error: %v, closing connection", err)
					c.close()
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	for {
		var text string
		if err := websocket.Message.Receive(ws, &text); err != nil {
			glog.V(1).Infof("Websocket recv error: %v, closing connection", err)
			return
		}
		data := []byte(text)
		if !s.ctx.Post(func() {
			if err := s.ch.Handle(data); err != nil {
				glog.Warningf("bad message from %s: %s", addr, err)
			}
		}) {
			return
		}
	}
}
