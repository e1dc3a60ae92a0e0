// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"bytes"
	"reflect"
	"strconv"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// durationKeys are the YAML keys of duration fields. yaml.v3 encodes
// time.Duration as integer nanoseconds, which Load would not read back.
var durationKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Config{})
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Type == reflect.TypeOf(time.Duration(0)) {
			keys[f.Tag.Get("yaml")] = true
		}
	}
	return keys
}()

// YAML renders c as a config file Load accepts. Call Redacted first when
// the output is shown to a user.
func (c Config) YAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	humanizeDurations(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return buf.Bytes(), nil
}

func humanizeDurations(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if !durationKeys[key.Value] || value.Kind != yaml.ScalarNode {
			continue
		}
		nanos, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			continue
		}
		value.Tag = "!!str"
		value.Value = time.Duration(nanos).String()
	}
}
