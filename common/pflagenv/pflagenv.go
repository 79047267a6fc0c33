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
// Package pflagenv fills flags that were not given on the command line
// from secondary sources: environment variables and config files.
package pflagenv

import (
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"
)

// LookupFunc returns the value for the named flag, if the source has one.
type LookupFunc func(flagName string) (string, bool)

// ParseFlagSet sets every flag in fs that was not set explicitly from the
// environment variable named after the flag: uppercased, dashes replaced with
// underscores and prefixed with envPrefix.
//
// It should be called after Parse is called for the given FlagSet.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) error {
	return SetFrom(fs, EnvLookup(envPrefix))
}

// The same as ParseFlagSet, but operates on a default FlagSet: pflag.CommandLine
func Parse(envPrefix string) error {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

// EnvLookup looks flags up in the environment.
func EnvLookup(envPrefix string) LookupFunc {
	return func(flagName string) (string, bool) {
		v := os.Getenv(getEnvName(flagName, envPrefix))
		return v, v != ""
	}
}

// MapLookup looks flags up in a map keyed by flag name.
func MapLookup(m map[string]string) LookupFunc {
	return func(flagName string) (string, bool) {
		v, ok := m[flagName]
		return v, ok
	}
}

// SetFrom sets flags that have not been changed yet from the given source.
// Flags set this way count as changed, so an earlier source takes precedence over a later one.
func SetFrom(fs *pflag.FlagSet, lookup LookupFunc) error {
	// pflag does not tell a flag set to its default value apart from a flag
	// that was not set at all, but Changed does.
	var nonset []*pflag.Flag
	fs.VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			nonset = append(nonset, f)
		}
	})
	for _, f := range nonset {
		v, ok := lookup(f.Name)
		if !ok {
			continue
		}
		if err := fs.Set(f.Name, v); err != nil {
			return errors.Annotatef(err, "invalid value %q for --%s", v, f.Name)
		}
	}
	return nil
}

func getEnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}
