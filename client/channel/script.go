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
package channel

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/juju/errors"
)

//go:embed bridge.js.tmpl
var scriptTemplateText string

var scriptTemplate = template.Must(template.New("bridge.js").Parse(scriptTemplateText))

// Script renders the page-side shim defining every published object. host
// is the address of the content server, used for the WebSocket transport.
func (c *Channel) Script(host string) ([]byte, error) {
	objects, err := json.Marshal(c.Describe())
	if err != nil {
		return nil, errors.Trace(err)
	}
	hostJSON, err := json.Marshal(host)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, struct {
		Objects string
		Host    string
	}{string(objects), string(hostJSON)}); err != nil {
		return nil, errors.Trace(err)
	}
	return buf.Bytes(), nil
}
