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
package server

import (
	"net/http"
	"time"

	"github.com/golang/glog"
)

// MakeLogger creates a logger middleware suitable for using in goji
// multiplexer. Requests are logged at verbosity 1.
func MakeLogger() func(inner http.Handler) http.Handler {
	return func(inner http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !glog.V(1) {
				inner.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}

			glog.Infof("START | %s | %-7s %s", r.RemoteAddr, r.Method, path)

			inner.ServeHTTP(w, r)

			glog.Infof("END %13v | %s | %-7s %s", time.Since(start), r.RemoteAddr, r.Method, path)
		})
	}
}
