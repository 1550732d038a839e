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
package pflagenv

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// LookupFunc returns the value of the named environment variable and whether
// it is present. os.LookupEnv is the default.
type LookupFunc func(name string) (string, bool)

// ParseFlagSet iterates through all non-set flags in the given FlagSet,
// checks if there is an environment variable with the uppercased flag name
// prepended with the given envPrefix, and if so, sets flag value to the
// environment variable value.
//
// It should be called after Parse is called for the given FlagSet.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) error {
	_, err := ParseFlagSetWith(fs, envPrefix, os.LookupEnv)
	return err
}

// Parse is the same as ParseFlagSet, but operates on pflag.CommandLine.
func Parse(envPrefix string) error {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

// ParseFlagSetWith is like ParseFlagSet but reads variables through lookup.
// It returns the names of the flags which were set from the environment,
// sorted. Flags set from the environment are marked as changed, so they are
// indistinguishable from flags given on the command line afterwards.
func ParseFlagSetWith(fs *pflag.FlagSet, envPrefix string, lookup LookupFunc) ([]string, error) {

	// pflag can tell a changed flag from an untouched one, so only untouched
	// flags are candidates: the command line always wins.

	nonset := make(map[string]*pflag.Flag)
	fs.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			nonset[f.Name] = f
		}
	})

	var set []string
	for name := range nonset {
		v, ok := lookup(EnvName(name, envPrefix))
		if !ok || v == "" {
			continue
		}
		if err := fs.Set(name, v); err != nil {
			return nil, fmt.Errorf("invalid value %q for %s: %v", v, EnvName(name, envPrefix), err)
		}
		set = append(set, name)
	}
	sort.Strings(set)
	return set, nil
}

// EnvName returns the environment variable consulted for the given flag.
func EnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}
