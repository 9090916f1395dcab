// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package rawstream

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadYAMLStore reads a YAML parameter file into a MapStore.
//
// Nested mappings are flattened into dotted keys, so either of
//
//	raw_data_stream:
//	  dir: /var/log/gps
//
// or
//
//	raw_data_stream.dir: /var/log/gps
//
// resolves the key "raw_data_stream.dir".
func LoadYAMLStore(path string) (MapStore, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading parameter file")
	}
	return ParseYAMLStore(d)
}

// ParseYAMLStore parses YAML parameter data into a MapStore.
func ParseYAMLStore(d []byte) (MapStore, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(d, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing parameter data")
	}

	ms := make(MapStore, len(raw))
	flattenInto(ms, "", raw)
	return ms, nil
}

func flattenInto(ms MapStore, prefix string, v map[string]interface{}) {
	for k, val := range v {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if nested, ok := val.(map[string]interface{}); ok {
			flattenInto(ms, key, nested)
			continue
		}
		ms[key] = val
	}
}
