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
package console

import (
	"os"

	"github.com/juju/errors"
	"golang.org/x/sys/windows"
)

const (
	// (DWORD)-11 and (DWORD)-12
	stdOutputHandle = uint32(0xfffffff5)
	stdErrorHandle  = uint32(0xfffffff4)
)

var (
	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	procAllocConsole = kernel32.NewProc("AllocConsole")
	procSetStdHandle = kernel32.NewProc("SetStdHandle")
)

func allocConsole() error {
	if err := procAllocConsole.Find(); err != nil {
		return errors.Trace(err)
	}
	r1, _, err := procAllocConsole.Call()
	if r1 == 0 {
		return errors.Annotatef(err, "AllocConsole")
	}
	return nil
}

func openConsoleOutput() (*os.File, error) {
	f, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return f, nil
}

func redirectStd(f *os.File) error {
	for _, h := range []uint32{stdOutputHandle, stdErrorHandle} {
		r1, _, err := procSetStdHandle.Call(uintptr(h), f.Fd())
		if r1 == 0 {
			return errors.Annotatef(err, "SetStdHandle")
		}
	}
	redirectFiles(f)
	return nil
}
