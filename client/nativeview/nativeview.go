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
// Package nativeview shows the page in a native window with an embedded
// web view. The window's own loop drives the application context.
package nativeview

import (
	"encoding/json"

	"github.com/golang/glog"
	zwebview "github.com/zserge/webview"

	"github.com/homesystem/display/client/app"
	"github.com/homesystem/display/client/channel"
)

// View must be created, shown and run on the main OS thread.
type View struct {
	ctx   *app.Context
	debug bool

	title  string
	width  int
	height int
	url    string
	ch     *channel.Channel

	wv zwebview.WebView
}

// New creates a view for ctx. debug enables the web inspector.
func New(ctx *app.Context, debug bool) *View {
	return &View{ctx: ctx, debug: debug}
}

func (v *View) Resize(width, height int) {
	v.width, v.height = width, height
}

func (v *View) SetTitle(title string) {
	v.title = title
	if v.wv != nil {
		v.wv.SetTitle(title)
	}
}

func (v *View) SetChannel(ch *channel.Channel) {
	v.ch = ch
}

func (v *View) Load(url string) {
	v.url = url
	if v.wv != nil {
		target, _ := json.Marshal(url)
		v.eval("window.location.href = " + string(target))
	}
}

func (v *View) Show(fullscreen bool) error {
	v.wv = zwebview.New(zwebview.Settings{
		Title:                  v.title,
		URL:                    v.url,
		Width:                  v.width,
		Height:                 v.height,
		Resizable:              true,
		Debug:                  v.debug,
		ExternalInvokeCallback: v.handleInvoke,
	})
	if fullscreen {
		v.wv.SetFullscreen(true)
	}
	if v.ch != nil {
		v.ch.Attach(v)
	}
	v.ctx.SetRunner(v)
	glog.Infof("Window %q %dx%d shown, fullscreen: %v", v.title, v.width, v.height, fullscreen)
	return nil
}

// Run implements app.Runner.
func (v *View) Run() {
	v.wv.Run()
	v.wv.Exit()
}

// Dispatch implements app.Runner.
func (v *View) Dispatch(f func()) {
	v.wv.Dispatch(f)
}

// Terminate implements app.Runner.
func (v *View) Terminate() {
	v.wv.Terminate()
}

// Deliver implements channel.Transport. Called on the loop.
func (v *View) Deliver(msg []byte) {
	v.eval(deliverScript(msg))
}

func (v *View) handleInvoke(w zwebview.WebView, data string) {
	if v.ch == nil {
		return
	}
	if err := v.ch.Handle([]byte(data)); err != nil {
		glog.Warningf("bad message from the page: %s", err)
	}
}

func (v *View) eval(js string) {
	if err := v.wv.Eval(js); err != nil {
		glog.Warningf("eval failed: %s", err)
	}
}

func deliverScript(msg []byte) string {
	return "window.__displayChannel && window.__displayChannel.deliver(" + string(msg) + ")"
}
