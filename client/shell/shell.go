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
// Package shell wires the display together: the view, the backend object,
// the channel publishing it and the content server feeding the page.
package shell

import (
	"io"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/homesystem/display/client/app"
	"github.com/homesystem/display/client/bridge"
	"github.com/homesystem/display/client/channel"
	"github.com/homesystem/display/client/console"
	"github.com/homesystem/display/client/server"
)

// View shows the page. Implementations: the native window in package
// nativeview and BrowserView.
type View interface {
	Resize(width, height int)
	SetTitle(title string)
	// SetChannel makes the objects published on ch reachable from the page.
	SetChannel(ch *channel.Channel)
	Load(url string)
	// Show displays the view. The event loop is not running yet.
	Show(fullscreen bool) error
}

// PageSettings relax what page script may access. The start page is trusted.
type PageSettings struct {
	AllowFileAccess   bool
	AllowRemoteAccess bool
}

type Options struct {
	Title  string
	Width  int
	Height int
	// StartURL replaces the bundled start page if not empty.
	StartURL   string
	Fullscreen bool
	Page       PageSettings

	// Listen is the content server address.
	Listen  string
	WebRoot string

	// Stdout receives backend output; nil means os.Stdout.
	Stdout io.Writer
	Opener console.Opener
	// OpenConsole opens the console right away instead of waiting for the
	// page to ask.
	OpenConsole bool
}

type Shell struct {
	ctx      *app.Context
	view     View
	backend  *bridge.Backend
	channel  *channel.Channel
	server   *server.Server
	baseURL  string
	startURL string
}

// New sets up the view and shows it. The returned shell is ready for Exec.
func New(ctx *app.Context, view View, opts Options) (*Shell, error) {
	view.Resize(opts.Width, opts.Height)
	view.SetTitle(opts.Title)

	s := &Shell{
		ctx:     ctx,
		view:    view,
		backend: bridge.New(opts.Stdout, opts.Opener),
		channel: channel.New(),
	}

	if err := s.channel.RegisterObject(bridge.Name, s.backend); err != nil {
		return nil, errors.Trace(err)
	}
	view.SetChannel(s.channel)

	if opts.Page.AllowFileAccess || opts.Page.AllowRemoteAccess {
		glog.Infof("Page access: local files %v, remote URLs %v",
			opts.Page.AllowFileAccess, opts.Page.AllowRemoteAccess)
	}
	s.server = server.New(ctx, s.channel, server.Options{
		Addr:              opts.Listen,
		WebRoot:           opts.WebRoot,
		AllowFileAccess:   opts.Page.AllowFileAccess,
		AllowRemoteAccess: opts.Page.AllowRemoteAccess,
	})
	base, err := s.server.Start()
	if err != nil {
		return nil, errors.Trace(err)
	}
	s.baseURL = base
	s.startURL = base + "/"
	if opts.StartURL != "" {
		s.startURL = opts.StartURL
	}
	glog.Infof("Loading %s", s.startURL)
	view.Load(s.startURL)

	if opts.OpenConsole {
		s.backend.OpenConsole()
	}

	if err := view.Show(opts.Fullscreen); err != nil {
		s.server.Close()
		return nil, errors.Annotatef(err, "showing the view")
	}
	return s, nil
}

// Exec runs the event loop and returns its exit code.
func (s *Shell) Exec() int {
	code := s.ctx.Exec()
	s.channel.Close()
	if err := s.server.Close(); err != nil {
		glog.Warningf("closing the content server: %s", err)
	}
	return code
}

func (s *Shell) Backend() *bridge.Backend {
	return s.backend
}

func (s *Shell) Channel() *channel.Channel {
	return s.channel
}

// BaseURL is the root of the content server.
func (s *Shell) BaseURL() string {
	return s.baseURL
}

func (s *Shell) StartURL() string {
	return s.startURL
}
