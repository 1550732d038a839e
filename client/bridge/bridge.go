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
// Package bridge implements the native object exposed to the page as
// "backend".
package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/homesystem/display/client/console"
)

const (
	// Name the backend is published under on the page.
	Name = "backend"

	MethodReceiveData = "receiveData"
	MethodOpenConsole = "openConsole"

	SignalDataFromQt   = "dataFromQt"
	SignalNumberResult = "numberResult"

	replyPrefix = "Qt received: "
)

// Handler receives signal arguments.
type Handler = func(args ...interface{})

type handlerEntry struct {
	id int
	h  Handler
}

// Backend relays messages between native code and the page. It is not safe
// for concurrent use; all calls are expected to come from the event loop.
type Backend struct {
	out      io.Writer
	opener   console.Opener
	handlers map[string][]handlerEntry
	nextID   int
}

// New creates a backend. Messages are printed to out; if out is nil, to
// whatever os.Stdout is at the time of the call, so that a console opened
// later receives them.
func New(out io.Writer, opener console.Opener) *Backend {
	if opener == nil {
		opener = console.Default()
	}
	return &Backend{
		out:    out,
		opener: opener,
		handlers: map[string][]handlerEntry{
			SignalDataFromQt:   nil,
			SignalNumberResult: nil,
		},
	}
}

// ReceiveData is called by the page with an arbitrary message.
func (b *Backend) ReceiveData(data string) {
	glog.Infof("Received from JavaScript: %q", data)
	fmt.Fprintf(b.stdout(), "JS sent: %s\n", data)

	b.emit(SignalDataFromQt, replyPrefix+data)
}

// OpenConsole opens a console for debug output, see package console.
func (b *Backend) OpenConsole() {
	b.opener.Open()
}

// OnDataFromQt subscribes to replies produced by ReceiveData.
func (b *Backend) OnDataFromQt(f func(message string)) (disconnect func()) {
	disconnect, _ = b.Connect(SignalDataFromQt, func(args ...interface{}) {
		f(args[0].(string))
	})
	return disconnect
}

// OnNumberResult subscribes to numberResult. Nothing emits it yet.
func (b *Backend) OnNumberResult(f func(result int)) (disconnect func()) {
	disconnect, _ = b.Connect(SignalNumberResult, func(args ...interface{}) {
		f(args[0].(int))
	})
	return disconnect
}

// Connect registers h for the named signal. Handlers registered while a
// signal is being emitted only see subsequent emissions.
func (b *Backend) Connect(signal string, h Handler) (func(), error) {
	if _, ok := b.handlers[signal]; !ok {
		return nil, errors.NotFoundf("signal %q", signal)
	}
	b.nextID++
	id := b.nextID
	b.handlers[signal] = append(b.handlers[signal], handlerEntry{id: id, h: h})
	return func() { b.disconnect(signal, id) }, nil
}

func (b *Backend) disconnect(signal string, id int) {
	hs := b.handlers[signal]
	for i, e := range hs {
		if e.id == id {
			// emit may be iterating over hs.
			b.handlers[signal] = append(append([]handlerEntry(nil), hs[:i]...), hs[i+1:]...)
			return
		}
	}
}

// Methods lists the methods callable from the page.
func (b *Backend) Methods() []string {
	return []string{MethodReceiveData, MethodOpenConsole}
}

// Signals lists the signals the page may subscribe to.
func (b *Backend) Signals() []string {
	return []string{SignalDataFromQt, SignalNumberResult}
}

// Invoke dispatches a page-originated method call. Arguments arrive as JSON.
func (b *Backend) Invoke(method string, args []json.RawMessage) error {
	switch method {
	case MethodReceiveData:
		data, err := stringArg(args, 0)
		if err != nil {
			return errors.Annotatef(err, "%s", method)
		}
		b.ReceiveData(data)
	case MethodOpenConsole:
		b.OpenConsole()
	default:
		return errors.NotFoundf("method %q", method)
	}
	return nil
}

func (b *Backend) emit(signal string, args ...interface{}) {
	for _, e := range b.handlers[signal] {
		e.h(args...)
	}
}

func (b *Backend) stdout() io.Writer {
	if b.out != nil {
		return b.out
	}
	return os.Stdout
}

// stringArg converts the i-th argument to a string the way a script value
// would be: strings as is, missing or null as empty, anything else as its
// JSON text.
func stringArg(args []json.RawMessage, i int) (string, error) {
	if i >= len(args) || len(args[i]) == 0 {
		return "", nil
	}
	raw := args[i]
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", errors.NotValidf("argument %d (%s)", i, raw)
	}
	if v == nil {
		return "", nil
	}
	return string(raw), nil
}
