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
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/homesystem/display/client/app"
	"github.com/homesystem/display/client/config"
	"github.com/homesystem/display/client/console"
	"github.com/homesystem/display/client/instance"
	"github.com/homesystem/display/client/nativeview"
	"github.com/homesystem/display/client/shell"
	"github.com/homesystem/display/common/ourutil"
	"github.com/homesystem/display/common/pflagenv"
	"github.com/homesystem/display/version"
)

const (
	envPrefix = "DISPLAY_"
)

var (
	configFile  = flag.String("config", "", "Config file, .yml, .yaml or .ini")
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")

	flagConfig = config.Defaults()
)

func init() {
	// The native window and its loop must stay on the main thread.
	runtime.LockOSThread()
	config.BindFlags(flag.CommandLine, &flagConfig)
}

func run() (int, error) {
	cfg, err := config.Resolve(flag.CommandLine, *configFile)
	if err != nil {
		return 1, errors.Trace(err)
	}

	release, err := instance.Acquire(cfg.LockFile)
	if err != nil {
		return 1, errors.Trace(err)
	}
	defer release()

	ctx := app.NewContext(os.Args)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			glog.Infof("Got %s, quitting", sig)
			ctx.Quit(0)
		case <-ctx.Done():
		}
	}()

	var view shell.View
	if cfg.Browser {
		view = shell.NewBrowserView(cfg.BrowserCmd)
	} else {
		view = nativeview.New(ctx, cfg.Debug)
	}

	s, err := shell.New(ctx, view, shell.Options{
		Title:      cfg.Title,
		Width:      cfg.Width,
		Height:     cfg.Height,
		StartURL:   cfg.URL,
		Fullscreen: cfg.ShowFullscreen(runtime.GOARCH),
		Page: shell.PageSettings{
			AllowFileAccess:   cfg.AllowFileAccess,
			AllowRemoteAccess: cfg.AllowRemoteAccess,
		},
		Listen:      cfg.Listen,
		WebRoot:     cfg.WebRoot,
		Opener:      console.Default(),
		OpenConsole: cfg.OpenConsole,
	})
	if err != nil {
		return 1, errors.Trace(err)
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "Display started, content served at %s\n", s.BaseURL())
	ourutil.Reportf("Press Ctrl-C to quit")

	return s.Exec(), nil
}

func main() {
	initFlags()
	flag.Parse()
	if err := pflagenv.Parse(envPrefix); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Print(version.Summary("The home display client"))
		return
	}

	glog.Infof("%s", version.GetUserAgent())
	code, err := run()
	if err != nil {
		glog.Infof("Error: %+v", err)
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
	}
	glog.Flush()
	os.Exit(code)
}
