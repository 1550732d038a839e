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
// Package console makes sure the process has a console to print to.
//
// On Windows a GUI binary starts without one, so it is allocated on demand
// and the standard streams are redirected into it. Everywhere else the
// process inherits the terminal it was started from and opening a console is
// a no-op.
package console

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/homesystem/display/common/ourutil"
)

// Opener opens a console for the process. Open never reports failure: a
// missing console is not worth stopping the display for.
type Opener interface {
	Open()
}

// AllocatingOpener allocates a new console and redirects the standard
// streams to it.
type AllocatingOpener struct {
	// Alloc allocates the console.
	Alloc func() error
	// OpenOutput opens the output device of the freshly allocated console.
	OpenOutput func() (*os.File, error)
	// Redirect points the process standard output and error at f.
	Redirect func(f *os.File) error
}

// NewAllocatingOpener returns an opener backed by the platform console API.
func NewAllocatingOpener() *AllocatingOpener {
	return &AllocatingOpener{
		Alloc:      allocConsole,
		OpenOutput: openConsoleOutput,
		Redirect:   redirectStd,
	}
}

func (o *AllocatingOpener) Open() {
	if err := o.Alloc(); err != nil {
		glog.V(1).Infof("console allocation failed: %s", err)
		return
	}
	f, err := o.OpenOutput()
	if err != nil {
		glog.V(1).Infof("failed to open console output: %s", err)
		return
	}
	if err := o.Redirect(f); err != nil {
		glog.V(1).Infof("failed to redirect standard streams: %s", err)
		f.Close()
		return
	}
	ourutil.Freportf(f, "Console allocated")
}

var infof = glog.Infof

// NoopOpener is used where the process already has a terminal.
type NoopOpener struct {
	// GOOS is reported in the confirmation lines.
	GOOS string
	// Out receives the confirmation line. Nil means the current os.Stdout.
	Out io.Writer
}

func (o *NoopOpener) Open() {
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Console already available on %s\n", o.GOOS)
	infof("Running on %s - console output goes to terminal", o.GOOS)
}

// ForPlatform selects the opener variant for the given GOOS.
func ForPlatform(goos string) Opener {
	if goos == "windows" {
		return NewAllocatingOpener()
	}
	return &NoopOpener{GOOS: goos}
}

// Default is ForPlatform(runtime.GOOS).
func Default() Opener {
	return ForPlatform(runtime.GOOS)
}

// redirectFiles makes os.Stdout and os.Stderr refer to f. Platform specific
// redirects call it after adjusting the OS level handles.
func redirectFiles(f *os.File) {
	os.Stdout = f
	os.Stderr = f
}

var errNoConsoleAPI = errors.NotSupportedf("console allocation on %s", runtime.GOOS)
