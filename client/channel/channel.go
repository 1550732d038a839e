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
// Package channel publishes native objects to page script. Page code calls
// methods of the objects; signals emitted by the objects are delivered to the
// page through every attached transport.
package channel

import (
	"encoding/json"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/homesystem/display/common/ourutil"
)

// maxQuoted limits how much of a malformed message ends up in an error.
const maxQuoted = 200

const (
	TypeInvoke = "invoke"
	TypeSignal = "signal"
)

// Object is a native object which can be published on a channel.
type Object interface {
	Methods() []string
	Signals() []string
	Invoke(method string, args []json.RawMessage) error
	Connect(signal string, h func(args ...interface{})) (disconnect func(), err error)
}

// Transport carries encoded signal messages to the page.
type Transport interface {
	Deliver(msg []byte)
}

// Invocation is a method call coming from the page.
type Invocation struct {
	Type   string            `json:"type"`
	Object string            `json:"object"`
	Method string            `json:"method"`
	Args   []json.RawMessage `json:"args"`
}

// Emission is a signal going to the page. ID grows by one with every
// emission on a channel, so a page reachable through several transports can
// drop duplicates.
type Emission struct {
	Type   string        `json:"type"`
	ID     uint64        `json:"id"`
	Object string        `json:"object"`
	Signal string        `json:"signal"`
	Args   []interface{} `json:"args"`
}

// ObjectInfo describes a published object to the page.
type ObjectInfo struct {
	Methods []string `json:"methods"`
	Signals []string `json:"signals"`
}

type transportEntry struct {
	id int
	t  Transport
}

// Channel is not safe for concurrent use: register objects before the loop
// starts and call everything else on the loop.
type Channel struct {
	objects     map[string]Object
	disconnects []func()
	transports  []transportEntry
	nextID      int
	seq         uint64
}

func New() *Channel {
	return &Channel{objects: map[string]Object{}}
}

// RegisterObject publishes obj under name.
func (c *Channel) RegisterObject(name string, obj Object) error {
	if name == "" {
		return errors.NotValidf("empty object name")
	}
	if _, ok := c.objects[name]; ok {
		return errors.AlreadyExistsf("object %q", name)
	}
	for _, sig := range obj.Signals() {
		sig := sig
		disconnect, err := obj.Connect(sig, func(args ...interface{}) {
			c.emit(name, sig, args)
		})
		if err != nil {
			return errors.Annotatef(err, "connecting to %s.%s", name, sig)
		}
		c.disconnects = append(c.disconnects, disconnect)
	}
	c.objects[name] = obj
	glog.Infof("Registered object %q, methods %v, signals %v", name, obj.Methods(), obj.Signals())
	return nil
}

// Has reports whether an object is registered under name.
func (c *Channel) Has(name string) bool {
	_, ok := c.objects[name]
	return ok
}

// Describe returns all published objects.
func (c *Channel) Describe() map[string]ObjectInfo {
	res := make(map[string]ObjectInfo, len(c.objects))
	for name, obj := range c.objects {
		res[name] = ObjectInfo{Methods: obj.Methods(), Signals: obj.Signals()}
	}
	return res
}

// Attach adds a transport. Emissions which happened before are not replayed.
func (c *Channel) Attach(t Transport) (detach func()) {
	c.nextID++
	id := c.nextID
	c.transports = append(c.transports, transportEntry{id: id, t: t})
	return func() {
		for i, e := range c.transports {
			if e.id == id {
				c.transports = append(append([]transportEntry(nil), c.transports[:i]...), c.transports[i+1:]...)
				return
			}
		}
	}
}

// Handle decodes a page message and invokes the method it names.
func (c *Channel) Handle(data []byte) error {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return errors.NotValidf("message %q", ourutil.FirstN(string(data), maxQuoted))
	}
	if inv.Type != TypeInvoke {
		return errors.NotValidf("message type %q", inv.Type)
	}
	obj, ok := c.objects[inv.Object]
	if !ok {
		return errors.NotFoundf("object %q", inv.Object)
	}
	glog.V(1).Infof("Invoking %s.%s, %d arg(s)", inv.Object, inv.Method, len(inv.Args))
	return errors.Trace(obj.Invoke(inv.Method, inv.Args))
}

// Close disconnects the channel from the signals of all objects.
func (c *Channel) Close() {
	for _, d := range c.disconnects {
		d()
	}
	c.disconnects = nil
	c.transports = nil
}

func (c *Channel) emit(object, signal string, args []interface{}) {
	c.seq++
	if args == nil {
		args = []interface{}{}
	}
	msg, err := json.Marshal(&Emission{
		Type:   TypeSignal,
		ID:     c.seq,
		Object: object,
		Signal: signal,
		Args:   args,
	})
	if err != nil {
		glog.Errorf("failed to encode %s.%s: %s", object, signal, err)
		return
	}
	for _, e := range c.transports {
		e.t.Deliver(msg)
	}
}
