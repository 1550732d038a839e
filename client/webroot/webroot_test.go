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
package webroot

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/juju/errors"
)

func TestAsset(t *testing.T) {
	data, err := Asset("web_root/index.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `<script src="/bridge.js"></script>`) {
		t.Errorf("start page does not load the bridge shim")
	}

	if _, err := Asset("web_root/nope.html"); !errors.IsNotFound(err) {
		t.Errorf("got: %v, want a not found error", err)
	}
}

func TestAssetDir(t *testing.T) {
	names, err := AssetDir("web_root")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := names, []string{"app.js", "index.html", "style.css"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestFileSystem(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(FileSystem()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/" + StartPage)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got: %d, want: %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<title>Home Display</title>") {
		t.Errorf("unexpected start page: %s", body)
	}
}
