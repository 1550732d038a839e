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
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/homesystem/display/common/pflagenv"
	"github.com/homesystem/display/version"
)

var (
	hiddenFlags = []string{
		"alsologtostderr",
		"log_backtrace_at",
		"log_dir",
		"logtostderr",
		"stderrthreshold",
		"v",
		"vmodule",

		"allow-file-access",
		"allow-remote-access",
		"listen",
		"lock-file",
		"web-root",
	}

	// Flags shown by the short usage.
	simpleFlags = []string{
		"config",
		"url",
		"fullscreen",
		"browser",
		"open-console",
		"debug",
	}
)

func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	hideFlags()
	flag.Usage = usage
}

func hideFlags() {
	for _, f := range hiddenFlags {
		flag.CommandLine.MarkHidden(f)
	}
}

func unhideFlags() {
	for _, f := range hiddenFlags {
		f := flag.Lookup(f)
		if f != nil {
			f.Hidden = false
		}
	}
}

func printFlag(w *tabwriter.Writer, name string) {
	f := flag.Lookup(name)
	if f == nil {
		return
	}
	arg := "<" + f.Value.Type() + ">"
	if f.Value.Type() == "bool" {
		arg = ""
	}
	fmt.Fprintf(w, "  --%s %s\t%s. Env: %s, default value: %q\n",
		name, arg, f.Usage, pflagenv.EnvName(name, envPrefix), f.DefValue)
}

func usage() {
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 1, ' ', 0)

	fmt.Fprintf(w, "The home display client %s.\n", version.Version)
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  %s [flags]\n", os.Args[0])
	fmt.Fprintf(w, "\nFlags:\n")
	if *helpFull {
		fmt.Fprint(w, flag.CommandLine.FlagUsages())
	} else {
		for _, name := range simpleFlags {
			printFlag(w, name)
		}
		fmt.Fprintf(w, "\nRun with --helpfull to see all flags.\n")
	}

	w.Flush()
}
