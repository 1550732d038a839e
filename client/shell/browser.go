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
package shell

import (
	"os/exec"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/skratchdot/open-golang/open"

	"github.com/homesystem/display/client/channel"
)

const urlPlaceholder = "{url}"

// BrowserView shows the page in a web browser. The page reaches the
// channel over the content server's WebSocket, so SetChannel has nothing to
// do. Size, title and fullscreen are up to the browser.
type BrowserView struct {
	// Command starts the browser, e.g. "chromium --kiosk {url}". The URL is
	// appended if there is no {url}. Empty means the system default browser.
	Command string
	// Launch opens url; set by NewBrowserView.
	Launch func(url string) error

	url string
}

func NewBrowserView(command string) *BrowserView {
	v := &BrowserView{Command: command}
	v.Launch = v.launch
	return v
}

func (v *BrowserView) Resize(width, height int) {
	glog.V(1).Infof("browser view: window size %dx%d is up to the browser", width, height)
}

func (v *BrowserView) SetTitle(title string) {}

func (v *BrowserView) SetChannel(ch *channel.Channel) {}

func (v *BrowserView) Load(url string) {
	v.url = url
}

func (v *BrowserView) Show(fullscreen bool) error {
	if fullscreen && v.Command == "" {
		glog.Infof("Fullscreen requested; pass a kiosk flag via --browser-cmd to get it")
	}
	glog.Infof("Opening %s in the browser", v.url)
	return errors.Trace(v.Launch(v.url))
}

func (v *BrowserView) launch(url string) error {
	if v.Command == "" {
		return errors.Trace(open.Start(url))
	}
	args, err := browserCommand(v.Command, url)
	if err != nil {
		return errors.Trace(err)
	}
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return errors.Annotatef(err, "starting %s", args[0])
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			glog.Warningf("%s exited: %s", args[0], err)
		}
	}()
	return nil
}

// browserCommand splits the command line and puts url in place of {url}.
func browserCommand(cmdline, url string) ([]string, error) {
	args, err := shellwords.Parse(cmdline)
	if err != nil {
		return nil, errors.Annotatef(err, "parsing browser command %q", cmdline)
	}
	if len(args) == 0 {
		return nil, errors.NotValidf("empty browser command")
	}
	replaced := false
	for i, a := range args {
		if strings.Contains(a, urlPlaceholder) {
			args[i] = strings.Replace(a, urlPlaceholder, url, -1)
			replaced = true
		}
	}
	if !replaced {
		args = append(args, url)
	}
	return args, nil
}
