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
// Package server serves the start page, the page-side bridge shim and the
// WebSocket channel transport on a loopback address.
package server

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	goji "goji.io"
	"goji.io/pat"
	"goji.io/pattern"
	"golang.org/x/net/context/ctxhttp"
	"golang.org/x/net/websocket"

	"github.com/homesystem/display/client/app"
	"github.com/homesystem/display/client/channel"
	"github.com/homesystem/display/client/webroot"
	"github.com/homesystem/display/version"
)

const remoteFetchTimeout = 30 * time.Second

type Options struct {
	// Addr to listen at, e.g. "127.0.0.1:0".
	Addr string
	// WebRoot is served instead of the bundled assets if not empty.
	WebRoot string
	// AllowFileAccess enables /local/, which serves local files to the page.
	AllowFileAccess bool
	// AllowRemoteAccess enables /remote, which fetches remote URLs for the
	// page.
	AllowRemoteAccess bool
	// HTTPClient is used for /remote. The default one refuses to connect to
	// this machine.
	HTTPClient *http.Client
}

type Server struct {
	ctx  *app.Context
	ch   *channel.Channel
	opts Options
	hub  *hub

	ln     net.Listener
	hs     *http.Server
	detach func()

	// checkTarget vets every address /remote is about to contact.
	checkTarget func(ip net.IP) error
}

// New creates a server for the objects published on ch. Channel calls are
// made on the loop of ctx.
func New(ctx *app.Context, ch *channel.Channel, opts Options) *Server {
	s := &Server{
		ctx:  ctx,
		ch:   ch,
		opts: opts,
		hub:  newHub(),
	}
	s.checkTarget = s.refuseLocalTarget
	if s.opts.HTTPClient == nil {
		dialer := &net.Dialer{
			Timeout: remoteFetchTimeout,
			Control: func(network, address string, _ syscall.RawConn) error {
				host, _, err := net.SplitHostPort(address)
				if err != nil {
					return errors.Trace(err)
				}
				return s.checkTarget(net.ParseIP(host))
			},
		}
		s.opts.HTTPClient = &http.Client{
			Timeout:   remoteFetchTimeout,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		}
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.Use(MakeLogger())

	mux.Handle(pat.Get("/ws"), websocket.Server{
		Handshake: checkSameOrigin,
		Handler:   s.serveWS,
	})
	mux.HandleFunc(pat.Get("/bridge.js"), s.handleScript)
	mux.HandleFunc(pat.Get("/local/*"), s.handleLocal)
	mux.HandleFunc(pat.Get("/remote"), s.handleRemote)

	var assets http.FileSystem = webroot.FileSystem()
	if s.opts.WebRoot != "" {
		assets = http.Dir(s.opts.WebRoot)
	}
	fs := http.FileServer(assets)
	mux.Handle(pat.New("/*"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		fs.ServeHTTP(w, r)
	}))
	return mux
}

// Start starts listening and attaches the WebSocket transport to the
// channel. Must be called before the loop runs. Returns the base URL.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return "", errors.Annotatef(err, "listening at %s", s.opts.Addr)
	}
	s.ln = ln
	s.hs = &http.Server{Handler: s.Handler()}
	s.detach = s.ch.Attach(s.hub)

	base := fmt.Sprintf("http://%s", ln.Addr())
	glog.Infof("Serving %s at %s", s.describeRoot(), base)
	go func() {
		if err := s.hs.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Errorf("content server: %s", err)
		}
	}()
	return base, nil
}

// Close stops the server and drops all WebSocket clients. Must not race
// with the loop: call it once Exec has returned.
func (s *Server) Close() error {
	if s.hs == nil {
		return nil
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	s.hub.closeAll()
	return errors.Trace(s.hs.Close())
}

func (s *Server) describeRoot() string {
	if s.opts.WebRoot != "" {
		return s.opts.WebRoot
	}
	return "bundled " + webroot.Prefix
}

// onLoop runs f on the loop and waits for it. Returns false if the loop is
// gone or the request was canceled.
func (s *Server) onLoop(r *http.Request, f func()) bool {
	done := make(chan struct{})
	if !s.ctx.Post(func() {
		f()
		close(done)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-s.ctx.Done():
		return false
	case <-r.Context().Done():
		return false
	}
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var js []byte
	var err error
	if !s.onLoop(r, func() { js, err = s.ch.Script(r.Host) }) {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		glog.Errorf("rendering bridge script: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(js)
}

func (s *Server) handleLocal(w http.ResponseWriter, r *http.Request) {
	if !s.opts.AllowFileAccess {
		http.Error(w, "local file access is disabled", http.StatusForbidden)
		return
	}
	if err := s.checkPageRequest(r); err != nil {
		glog.Warningf("refusing %s: %s", r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	p := pattern.Path(r.Context())
	// "/C:/Users/..." on Windows.
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	glog.V(1).Infof("Serving local file %s", p)
	http.ServeFile(w, r, filepath.FromSlash(p))
}

func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	if !s.opts.AllowRemoteAccess {
		http.Error(w, "remote access is disabled", http.StatusForbidden)
		return
	}
	if err := s.checkPageRequest(r); err != nil {
		glog.Warningf("refusing %s: %s", r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	target := r.URL.Query().Get("url")
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, fmt.Sprintf("invalid url %q", target), http.StatusBadRequest)
		return
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(r.Context(), u.Hostname())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	for _, a := range addrs {
		if err := s.checkTarget(a.IP); err != nil {
			glog.Warningf("refusing to fetch %s: %s", target, err)
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", version.GetUserAgent())
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := ctxhttp.Do(r.Context(), s.opts.HTTPClient, req)
	if err != nil {
		glog.Warningf("fetching %s: %s", target, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		glog.V(1).Infof("copying %s: %s", target, err)
	}
}

// checkPageRequest accepts requests made by pages of this server only: the
// Host must name this server and browser-supplied origin hints must agree.
func (s *Server) checkPageRequest(r *http.Request) error {
	if !s.isOwnHost(r.Host) {
		return errors.NotValidf("host %q", r.Host)
	}
	if o := r.Header.Get("Origin"); o != "" {
		u, err := url.Parse(o)
		if err != nil || !strings.EqualFold(u.Host, r.Host) {
			return errors.NotValidf("origin %q", o)
		}
	}
	switch site := r.Header.Get("Sec-Fetch-Site"); site {
	case "", "same-origin", "none":
	default:
		return errors.NotValidf("%s request", site)
	}
	return nil
}

func (s *Server) isOwnHost(hostport string) bool {
	if s.ln != nil && strings.EqualFold(hostport, s.ln.Addr().String()) {
		return true
	}
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// refuseLocalTarget keeps /remote off this machine: loopback, unspecified
// and link-local addresses and the listener's own address are refused.
// Other private networks stay reachable for devices on the LAN.
func (s *Server) refuseLocalTarget(ip net.IP) error {
	if ip == nil {
		return errors.NotValidf("target address")
	}
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return errors.NotValidf("target %s", ip)
	}
	if s.ln != nil {
		if own, ok := s.ln.Addr().(*net.TCPAddr); ok && own.IP.Equal(ip) {
			return errors.NotValidf("target %s", ip)
		}
	}
	return nil
}

// checkSameOrigin only accepts pages served by this server.
func checkSameOrigin(config *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return errors.Trace(err)
	}
	if origin == nil || !strings.EqualFold(origin.Host, r.Host) {
		return errors.Errorf("origin %v is not allowed", origin)
	}
	config.Origin = origin
	return nil
}
