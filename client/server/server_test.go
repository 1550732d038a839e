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
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/homesystem/display/client/app"
	"github.com/homesystem/display/client/bridge"
	"github.com/homesystem/display/client/channel"
	"github.com/homesystem/display/client/console"
)

type testServer struct {
	t    *testing.T
	ctx  *app.Context
	out  *bytes.Buffer
	srv  *Server
	base string
	done chan int
}

func startServer(t *testing.T, opts Options, setup ...func(*Server)) *testServer {
	t.Helper()
	ctx := app.NewContext([]string{"display-client"})
	out := &bytes.Buffer{}
	ch := channel.New()
	if err := ch.RegisterObject(bridge.Name, bridge.New(out, &console.NoopOpener{GOOS: "test", Out: ioutil.Discard})); err != nil {
		t.Fatal(err)
	}
	opts.Addr = "127.0.0.1:0"
	srv := New(ctx, ch, opts)
	for _, f := range setup {
		f(srv)
	}
	base, err := srv.Start()
	if err != nil {
		t.Fatal(err)
	}
	ts := &testServer{t: t, ctx: ctx, out: out, srv: srv, base: base, done: make(chan int)}
	go func() { ts.done <- ctx.Exec() }()
	return ts
}

func (ts *testServer) stop() {
	ts.ctx.Quit(0)
	<-ts.done
	ts.srv.Close()
}

// stdout returns what the backend printed so far, read on the loop.
func (ts *testServer) stdout() string {
	res := make(chan string)
	ts.ctx.Post(func() { res <- ts.out.String() })
	return <-res
}

func (ts *testServer) get(path string) (int, string, http.Header) {
	ts.t.Helper()
	return ts.getWith(path, "", nil)
}

// getWith sends a GET with the given Host (if not empty) and headers.
func (ts *testServer) getWith(path, host string, hdr map[string]string) (int, string, http.Header) {
	ts.t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.base+path, nil)
	if err != nil {
		ts.t.Fatal(err)
	}
	if host != "" {
		req.Host = host
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatal(err)
	}
	return resp.StatusCode, string(body), resp.Header
}

func (ts *testServer) dial() *websocket.Conn {
	ts.t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.base, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", ts.base+"/")
	if err != nil {
		ts.t.Fatal(err)
	}
	return ws
}

func TestStartPage(t *testing.T) {
	ts := startServer(t, Options{})
	defer ts.stop()

	code, body, hdr := ts.get("/")
	if code != http.StatusOK {
		t.Fatalf("status: got: %d, want: %d", code, http.StatusOK)
	}
	if !strings.Contains(body, `<script src="/bridge.js"></script>`) {
		t.Errorf("unexpected start page: %s", body)
	}
	if got, want := hdr.Get("Cache-Control"), "no-cache"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}

	if code, _, _ := ts.get("/nope.html"); code != http.StatusNotFound {
		t.Errorf("status: got: %d, want: %d", code, http.StatusNotFound)
	}
}

func TestWebRootOverride(t *testing.T) {
	dir, err := ioutil.TempDir("", "webroot_")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	ioutil.WriteFile(filepath.Join(dir, "index.html"), []byte("custom page"), 0644)

	ts := startServer(t, Options{WebRoot: dir})
	defer ts.stop()

	if _, body, _ := ts.get("/"); body != "custom page" {
		t.Errorf("got: %q, want: %q", body, "custom page")
	}
}

func TestBridgeScript(t *testing.T) {
	ts := startServer(t, Options{})
	defer ts.stop()

	code, body, hdr := ts.get("/bridge.js")
	if code != http.StatusOK {
		t.Fatalf("status: got: %d, want: %d", code, http.StatusOK)
	}
	if !strings.HasPrefix(hdr.Get("Content-Type"), "application/javascript") {
		t.Errorf("unexpected content type %q", hdr.Get("Content-Type"))
	}
	want := `var objects = {"backend":{"methods":["receiveData","openConsole"],"signals":["dataFromQt","numberResult"]}};`
	if !strings.Contains(body, want) {
		t.Errorf("script does not define the backend:\n%s", body)
	}
	host := strings.TrimPrefix(ts.base, "http://")
	if !strings.Contains(body, fmt.Sprintf("var host = %q;", host)) {
		t.Errorf("script does not point at %s", host)
	}
}

func TestWebSocketTransport(t *testing.T) {
	ts := startServer(t, Options{})
	defer ts.stop()

	ws := ts.dial()
	defer ws.Close()

	msg := `{"type":"invoke","object":"backend","method":"receiveData","args":["hello"]}`
	if err := websocket.Message.Send(ws, msg); err != nil {
		t.Fatal(err)
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply string
	if err := websocket.Message.Receive(ws, &reply); err != nil {
		t.Fatal(err)
	}
	var em channel.Emission
	if err := json.Unmarshal([]byte(reply), &em); err != nil {
		t.Fatal(err)
	}
	if em.Object != bridge.Name || em.Signal != bridge.SignalDataFromQt {
		t.Errorf("unexpected emission %s", reply)
	}
	if len(em.Args) != 1 || em.Args[0] != "Qt received: hello" {
		t.Errorf("unexpected args %v", em.Args)
	}
	if got, want := ts.stdout(), "JS sent: hello\n"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestWebSocketBadMessage(t *testing.T) {
	ts := startServer(t, Options{})
	defer ts.stop()

	ws := ts.dial()
	defer ws.Close()

	for _, msg := range []string{
		`garbage`,
		`{"type":"invoke","object":"frontend","method":"receiveData","args":["x"]}`,
		`{"type":"invoke","object":"backend","method":"receiveData","args":["ok"]}`,
	} {
		if err := websocket.Message.Send(ws, msg); err != nil {
			t.Fatal(err)
		}
	}

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply string
	if err := websocket.Message.Receive(ws, &reply); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, `"args":["Qt received: ok"]`) {
		t.Errorf("unexpected reply %s", reply)
	}
}

func TestWebSocketForeignOrigin(t *testing.T) {
	ts := startServer(t, Options{})
	defer ts.stop()

	wsURL := "ws" + strings.TrimPrefix(ts.base, "http") + "/ws"
	if ws, err := websocket.Dial(wsURL, "", "http://evil.example.com/"); err == nil {
		ws.Close()
		t.Errorf("connection from a foreign origin accepted")
	}
}

func TestLocalFileAccess(t *testing.T) {
	f, err := ioutil.TempFile("", "local_")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString("local content")
	f.Close()
	p := filepath.ToSlash(f.Name())
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	ts := startServer(t, Options{AllowFileAccess: true})
	defer ts.stop()
	code, body, _ := ts.get("/local" + p)
	if code != http.StatusOK || body != "local content" {
		t.Errorf("got: %d %q, want: 200 %q", code, body, "local content")
	}

	ts2 := startServer(t, Options{AllowFileAccess: false})
	defer ts2.stop()
	if code, _, _ := ts2.get("/local" + p); code != http.StatusForbidden {
		t.Errorf("status: got: %d, want: %d", code, http.StatusForbidden)
	}
}

func TestRemoteAccess(t *testing.T) {
	uaCh := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case uaCh <- r.Header.Get("User-Agent"):
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, `{"temp":21}`)
	}))
	defer upstream.Close()

	// upstream listens on loopback, which the default policy refuses.
	ts := startServer(t, Options{AllowRemoteAccess: true}, allowAnyTarget)
	defer ts.stop()

	code, body, hdr := ts.get("/remote?url=" + upstream.URL + "/weather")
	if code != http.StatusTeapot || body != `{"temp":21}` {
		t.Errorf("got: %d %q", code, body)
	}
	if got := hdr.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Access-Control-Allow-Origin %q", got)
	}
	if got, want := hdr.Get("Content-Type"), "application/json"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if gotUA := <-uaCh; !strings.HasPrefix(gotUA, "display-client/") {
		t.Errorf("unexpected user agent %q", gotUA)
	}

	if code, _, _ := ts.get("/remote?url=file:///etc/passwd"); code != http.StatusBadRequest {
		t.Errorf("status: got: %d, want: %d", code, http.StatusBadRequest)
	}

	ts2 := startServer(t, Options{AllowRemoteAccess: false})
	defer ts2.stop()
	if code, _, _ := ts2.get("/remote?url=" + upstream.URL); code != http.StatusForbidden {
		t.Errorf("status: got: %d, want: %d", code, http.StatusForbidden)
	}
}

func allowAnyTarget(s *Server) {
	s.checkTarget = func(net.IP) error { return nil }
}

func TestForeignPagesRefused(t *testing.T) {
	f, err := ioutil.TempFile("", "secret_")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString("TOP SECRET")
	f.Close()
	p := filepath.ToSlash(f.Name())
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	ts := startServer(t, Options{AllowFileAccess: true, AllowRemoteAccess: true})
	defer ts.stop()

	for _, c := range []struct {
		name string
		path string
		host string
		hdr  map[string]string
	}{
		{"local, foreign origin", "/local" + p, "", map[string]string{"Origin": "http://evil.example.com"}},
		{"local, cross-site fetch", "/local" + p, "", map[string]string{"Sec-Fetch-Site": "cross-site"}},
		{"local, rebound host", "/local" + p, "evil.example.com", nil},
		{"remote, foreign origin", "/remote?url=" + ts.base + "/local" + p, "", map[string]string{"Origin": "http://evil.example.com"}},
		{"remote, own listener", "/remote?url=" + ts.base + "/local" + p, "", nil},
		{"remote, localhost", "/remote?url=http://localhost:1/", "", nil},
	} {
		code, body, hdr := ts.getWith(c.path, c.host, c.hdr)
		if code != http.StatusForbidden {
			t.Errorf("%s: status: got: %d, want: %d", c.name, code, http.StatusForbidden)
		}
		if strings.Contains(body, "TOP SECRET") {
			t.Errorf("%s: file content leaked", c.name)
		}
		if got := hdr.Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("%s: unexpected Access-Control-Allow-Origin %q", c.name, got)
		}
	}

	// The page itself may still read the file.
	code, body, _ := ts.getWith("/local"+p, "", map[string]string{"Origin": ts.base, "Sec-Fetch-Site": "same-origin"})
	if code != http.StatusOK || body != "TOP SECRET" {
		t.Errorf("got: %d %q, want: 200 %q", code, body, "TOP SECRET")
	}
}

func TestRefuseLocalTarget(t *testing.T) {
	s := New(app.NewContext(nil), channel.New(), Options{})
	for _, c := range []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", false},
		{"127.1.2.3", false},
		{"::1", false},
		{"0.0.0.0", false},
		{"169.254.10.1", false},
		{"fe80::1", false},
		{"192.168.1.20", true},
		{"10.0.0.5", true},
		{"93.184.216.34", true},
	} {
		err := s.refuseLocalTarget(net.ParseIP(c.ip))
		if got := err == nil; got != c.want {
			t.Errorf("%s: allowed: got: %v, want: %v (%v)", c.ip, got, c.want, err)
		}
	}
}

func TestCloseDropsClients(t *testing.T) {
	ts := startServer(t, Options{})
	ws := ts.dial()
	defer ws.Close()

	deadline := time.Now().Add(5 * time.Second)
	for ts.srv.hub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ts.stop()
	if got := ts.srv.hub.count(); got != 0 {
		t.Errorf("got %d clients after Close, want 0", got)
	}
}
