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
package version

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/homesystem/display/common/ourutil"
)

type VersionJson struct {
	BuildId        string    `json:"build_id"`
	BuildTimestamp time.Time `json:"build_timestamp"`
	BuildVersion   string    `json:"build_version"`
}

const (
	LatestVersionName = "latest"
)

var (
	regexpVersionNumber = regexp.MustCompile(`^\d+\.[0-9.]*$`)
	regexpBuildIdDistr  = regexp.MustCompile(`^(?P<version>[^+]+)\+(?P<hash>[^~]+)\~(?P<distr>[^\d]+)\d+$`)
)

// GetVersion returns this binary's version, or "latest" if it's not a release build.
func GetVersion() string {
	if LooksLikeVersionNumber(Version) {
		return Version
	}
	return LatestVersionName
}

func LooksLikeVersionNumber(s string) bool {
	return regexpVersionNumber.MatchString(s)
}

// Returns the distribution name if the build id looks like the binary was
// built in some distro environment (like a Raspberry Pi OS package), or "".
func DistrName(buildId string) string {
	return ourutil.FindNamedSubmatches(regexpBuildIdDistr, buildId)["distr"]
}

// GetJson returns the version info in the shape of a build info file.
func GetJson() VersionJson {
	vj := VersionJson{BuildId: BuildId, BuildVersion: Version}
	if ts, err := time.Parse(time.RFC3339, BuildTimestamp); err == nil {
		vj.BuildTimestamp = ts
	}
	return vj
}

func GetUserAgent() string {
	return fmt.Sprintf("display-client/%s %s (%s; %s)", Version, BuildId, runtime.GOOS, runtime.GOARCH)
}

// Summary describes this build, one property per line.
func Summary(name string) string {
	vj := GetJson()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nVersion: %s\nBuild ID: %s\n", name, GetVersion(), vj.BuildId)
	if !vj.BuildTimestamp.IsZero() {
		fmt.Fprintf(&sb, "Built: %s\n", vj.BuildTimestamp.UTC().Format(time.RFC3339))
	}
	if d := DistrName(vj.BuildId); d != "" {
		fmt.Fprintf(&sb, "Distribution: %s\n", d)
	}
	return sb.String()
}
