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
// Package config holds the display client settings: built-in defaults,
// optionally overridden by a YAML or INI file, overridden by flags and
// DISPLAY_* environment variables.
package config

import (
	"io/ioutil"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/juju/errors"
	"github.com/kardianos/osext"
	flag "github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"

	"github.com/homesystem/display/common/multierror"
)

const (
	FullscreenAuto = "auto"
	FullscreenOn   = "true"
	FullscreenOff  = "false"

	DefaultTitle  = "Cross-Platform Web UI"
	DefaultWidth  = 800
	DefaultHeight = 600
	DefaultListen = "127.0.0.1:0"
)

type Config struct {
	Title  string `yaml:"title" ini:"title"`
	Width  int    `yaml:"width" ini:"width"`
	Height int    `yaml:"height" ini:"height"`
	// URL replaces the bundled start page.
	URL string `yaml:"url" ini:"url"`
	// WebRoot is served instead of the bundled assets when set.
	WebRoot    string `yaml:"web_root" ini:"web_root"`
	Fullscreen string `yaml:"fullscreen" ini:"fullscreen"`

	Browser    bool   `yaml:"browser" ini:"browser"`
	BrowserCmd string `yaml:"browser_cmd" ini:"browser_cmd"`
	Listen     string `yaml:"listen" ini:"listen"`

	AllowFileAccess   bool `yaml:"allow_file_access" ini:"allow_file_access"`
	AllowRemoteAccess bool `yaml:"allow_remote_access" ini:"allow_remote_access"`

	OpenConsole bool   `yaml:"open_console" ini:"open_console"`
	Debug       bool   `yaml:"debug" ini:"debug"`
	LockFile    string `yaml:"lock_file" ini:"lock_file"`
}

// Defaults returns the built-in configuration. The bundled page is trusted,
// so it may read local files and fetch remote URLs.
func Defaults() Config {
	return Config{
		Title:             DefaultTitle,
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		WebRoot:           DefaultWebRoot(),
		Fullscreen:        FullscreenAuto,
		Listen:            DefaultListen,
		AllowFileAccess:   true,
		AllowRemoteAccess: true,
		LockFile:          filepath.Join(os.TempDir(), "display-client.lock"),
	}
}

// DefaultWebRoot returns the web_root directory next to the executable if
// there is one, and an empty string (bundled assets) otherwise.
func DefaultWebRoot() string {
	dir, err := osext.ExecutableFolder()
	if err != nil {
		return ""
	}
	wr := filepath.Join(dir, "web_root")
	if fi, err := os.Stat(filepath.Join(wr, "index.html")); err != nil || fi.IsDir() {
		return ""
	}
	return wr
}

// BindFlags registers a flag for every setting on fs, storing into c.
func BindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Title, "title", c.Title, "Window title")
	fs.IntVar(&c.Width, "width", c.Width, "Window width")
	fs.IntVar(&c.Height, "height", c.Height, "Window height")
	fs.StringVar(&c.URL, "url", c.URL, "Start page URL; the bundled page is used if empty")
	fs.StringVar(&c.WebRoot, "web-root", c.WebRoot, "Web root to serve instead of the bundled one")
	fs.StringVar(&c.Fullscreen, "fullscreen", c.Fullscreen, "Fullscreen mode: auto (fullscreen on ARM), true or false")
	fs.BoolVar(&c.Browser, "browser", c.Browser, "Show the page in the system browser instead of a native window")
	fs.StringVar(&c.BrowserCmd, "browser-cmd", c.BrowserCmd, "Command to start the browser with; {url} is replaced by the start URL")
	fs.StringVar(&c.Listen, "listen", c.Listen, "Address of the local content server")
	fs.BoolVar(&c.AllowFileAccess, "allow-file-access", c.AllowFileAccess, "Allow the page to read local files")
	fs.BoolVar(&c.AllowRemoteAccess, "allow-remote-access", c.AllowRemoteAccess, "Allow the page to fetch remote URLs")
	fs.BoolVar(&c.OpenConsole, "open-console", c.OpenConsole, "Open a console for debug output at startup")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable the web inspector")
	fs.StringVar(&c.LockFile, "lock-file", c.LockFile, "Lock file guarding against a second instance; empty disables")
}

// Load reads settings from a YAML (.yml, .yaml) or INI (.ini) file into c.
// Settings missing from the file keep their values.
func Load(path string, c *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return errors.Trace(err)
		}
		if err := yaml.UnmarshalStrict(data, c); err != nil {
			return errors.Annotatef(err, "parsing %s", path)
		}
	case ".ini":
		f, err := ini.Load(path)
		if err != nil {
			return errors.Annotatef(err, "parsing %s", path)
		}
		if err := f.MapTo(c); err != nil {
			return errors.Annotatef(err, "parsing %s", path)
		}
	default:
		return errors.NotSupportedf("config file format %q", filepath.Ext(path))
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the config file
// at path (if not empty), then every flag of fs which was changed on the
// command line or from the environment.
func Resolve(fs *flag.FlagSet, path string) (Config, error) {
	c := Defaults()
	if path != "" {
		if err := Load(path, &c); err != nil {
			return c, errors.Trace(err)
		}
	}

	overlay := flag.NewFlagSet("overlay", flag.ContinueOnError)
	BindFlags(overlay, &c)
	var errs error
	fs.Visit(func(f *flag.Flag) {
		if overlay.Lookup(f.Name) == nil {
			return
		}
		if err := overlay.Set(f.Name, f.Value.String()); err != nil {
			errs = multierror.Append(errs, errors.Annotatef(err, "--%s", f.Name))
		}
	})
	if errs != nil {
		return c, errs
	}
	return c, errors.Trace(c.Validate())
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs error
	if c.Width <= 0 || c.Height <= 0 {
		errs = multierror.Append(errs, errors.NotValidf("window size %dx%d", c.Width, c.Height))
	}
	switch c.Fullscreen {
	case FullscreenAuto, FullscreenOn, FullscreenOff:
	default:
		errs = multierror.Append(errs, errors.NotValidf("fullscreen mode %q", c.Fullscreen))
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		errs = multierror.Append(errs, errors.NotValidf("listen address %q", c.Listen))
	}
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" {
			errs = multierror.Append(errs, errors.NotValidf("start URL %q", c.URL))
		}
	}
	if c.WebRoot != "" {
		if fi, err := os.Stat(c.WebRoot); err != nil || !fi.IsDir() {
			errs = multierror.Append(errs, errors.NotValidf("web root %q", c.WebRoot))
		}
	}
	if c.BrowserCmd != "" && !c.Browser {
		errs = multierror.Append(errs, errors.NotValidf("--browser-cmd without --browser"))
	}
	return errs
}

// IsEmbeddedTarget reports whether goarch is one of the embedded display
// targets (Raspberry Pi and the like).
func IsEmbeddedTarget(goarch string) bool {
	return goarch == "arm" || goarch == "arm64"
}

// ShowFullscreen decides whether the window is shown fullscreen on goarch.
func (c *Config) ShowFullscreen(goarch string) bool {
	switch c.Fullscreen {
	case FullscreenOn:
		return true
	case FullscreenOff:
		return false
	}
	return IsEmbeddedTarget(goarch)
}
