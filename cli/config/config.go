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
// Package config loads flag defaults from a YAML file.
//
//   transport: serial
//   port: /dev/ttyUSB0
//   baud-rate: 460800
//   flash-size: 0x10000
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/kardianos/osext"
	flag "github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"

	"github.com/mongoose-os/ch32prog/common/pflagenv"
)

const (
	DefaultFileName = "ch32prog.yaml"
)

// Load reads a config file into a map from flag name to value.
func Load(fname string) (map[string]string, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read config")
	}
	return Parse(data)
}

func Parse(data []byte) (map[string]string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Annotatef(err, "invalid config")
	}
	res := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[interface{}]interface{}, []interface{}:
			return nil, errors.NotValidf("value of %q", k)
		case nil:
			continue
		}
		res[k] = fmt.Sprintf("%v", v)
	}
	return res, nil
}

// DefaultFile returns the config file next to the executable, or "" if there is none.
func DefaultFile() string {
	dir, err := osext.ExecutableFolder()
	if err != nil {
		glog.V(1).Infof("cannot determine executable location: %s", err)
		return ""
	}
	fname := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(fname); err != nil {
		return ""
	}
	return fname
}

// Apply sets flags in fs that were not set otherwise from the config file.
// An explicitly named file must exist, the default one is optional.
func Apply(fs *flag.FlagSet, fname string) error {
	if fname == "" {
		if fname = DefaultFile(); fname == "" {
			return nil
		}
	}
	glog.V(1).Infof("Reading config from %s", fname)
	values, err := Load(fname)
	if err != nil {
		return errors.Annotatef(err, "%s", fname)
	}
	for k := range values {
		if fs.Lookup(k) == nil {
			return errors.NotFoundf("flag %q in %s", k, fname)
		}
	}
	return errors.Trace(pflagenv.SetFrom(fs, pflagenv.MapLookup(values)))
}
