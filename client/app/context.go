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
// Package app holds the process-wide application context: the arguments the
// process was started with and the single event loop everything else runs on.
package app

import (
	"sync"

	"github.com/golang/glog"
)

const taskQueueSize = 256

// Runner is a foreign event loop, e.g. the one of a native window, which
// drives the context instead of the built-in loop.
type Runner interface {
	// Run blocks until the loop is terminated.
	Run()
	// Dispatch schedules f on the loop. Safe to call from any goroutine.
	Dispatch(f func())
	// Terminate stops the loop. Called on the loop.
	Terminate()
}

// Context is the application event context. Construct it once at startup
// and pass it to whoever needs to schedule work on the loop.
type Context struct {
	args  []string
	tasks chan func()
	done  chan struct{}

	mu       sync.Mutex
	runner   Runner
	exitCode int
	quitOnce sync.Once
}

// NewContext creates the application context for the given process
// arguments.
func NewContext(args []string) *Context {
	return &Context{
		args:  append([]string(nil), args...),
		tasks: make(chan func(), taskQueueSize),
		done:  make(chan struct{}),
	}
}

// Args returns the process arguments the context was created with.
func (c *Context) Args() []string {
	return c.args
}

// SetRunner hands the loop over to r. Must be called before Exec.
func (c *Context) SetRunner(r Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runner = r
}

// Post schedules f to run on the loop. It can be called from any goroutine,
// before or during Exec. Returns false if the loop has already quit; f is
// dropped in that case.
func (c *Context) Post(f func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- f:
		return true
	case <-c.done:
		return false
	}
}

// Quit stops the loop and makes Exec return code. Only the first call has
// any effect.
func (c *Context) Quit(code int) {
	c.quitOnce.Do(func() {
		c.mu.Lock()
		c.exitCode = code
		r := c.runner
		c.mu.Unlock()

		glog.Infof("Quitting the event loop, exit code %d", code)
		close(c.done)
		if r != nil {
			r.Dispatch(r.Terminate)
		}
	})
}

// Done is closed once Quit has been called.
func (c *Context) Done() <-chan struct{} {
	return c.done
}

// Exec runs the event loop until Quit is called or, with a runner, until the
// runner's loop ends on its own (e.g. the window was closed). Returns the exit
// code.
func (c *Context) Exec() int {
	c.mu.Lock()
	r := c.runner
	c.mu.Unlock()

	if r == nil {
		for {
			select {
			case f := <-c.tasks:
				f()
			case <-c.done:
				return c.code()
			}
		}
	}

	go func() {
		for {
			select {
			case f := <-c.tasks:
				r.Dispatch(f)
			case <-c.done:
				return
			}
		}
	}()
	r.Run()

	// The runner is gone, Quit must not touch it anymore.
	c.mu.Lock()
	c.runner = nil
	c.mu.Unlock()
	c.Quit(0)
	return c.code()
}

func (c *Context) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}
