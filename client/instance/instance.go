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
// Package instance keeps a second display client from driving the same
// display.
package instance

import (
	"github.com/golang/glog"
	"github.com/juju/errors"
	flock "github.com/theckman/go-flock"
)

// Acquire takes the lock file at path. The returned function releases it.
// An empty path disables locking.
func Acquire(path string) (release func(), err error) {
	if path == "" {
		return func() {}, nil
	}
	fl := flock.NewFlock(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Annotatef(err, "locking %s", path)
	}
	if !locked {
		return nil, errors.AlreadyExistsf("display client holding %s", path)
	}
	glog.V(1).Infof("Holding %s", path)
	return func() {
		if err := fl.Unlock(); err != nil {
			glog.Warningf("unlocking %s: %s", path, err)
		}
	}, nil
}
