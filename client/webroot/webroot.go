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
// Package webroot holds the bundled start page.
package webroot

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"

	assetfs "github.com/elazarl/go-bindata-assetfs"
	"github.com/juju/errors"
)

const (
	// Prefix of all bundled assets.
	Prefix = "web_root"
	// StartPage is the page loaded at startup.
	StartPage = "index.html"
)

//go:embed web_root
var files embed.FS

// Asset returns the contents of the named asset, e.g. "web_root/index.html".
func Asset(name string) ([]byte, error) {
	data, err := files.ReadFile(clean(name))
	if err != nil {
		return nil, errors.NotFoundf("asset %q", name)
	}
	return data, nil
}

// AssetDir returns names of the entries of the named asset directory.
func AssetDir(name string) ([]string, error) {
	entries, err := files.ReadDir(clean(name))
	if err != nil {
		return nil, errors.NotFoundf("asset dir %q", name)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// AssetInfo returns file info of the named asset.
func AssetInfo(name string) (os.FileInfo, error) {
	fi, err := fs.Stat(files, clean(name))
	if err != nil {
		return nil, errors.NotFoundf("asset %q", name)
	}
	return fi, nil
}

// FileSystem serves the bundled assets over HTTP with the web_root prefix
// stripped.
func FileSystem() *assetfs.AssetFS {
	return &assetfs.AssetFS{
		Asset:     Asset,
		AssetDir:  AssetDir,
		AssetInfo: AssetInfo,
		Prefix:    Prefix,
	}
}

func clean(name string) string {
	name = path.Clean("/" + name)
	return name[1:]
}
