/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"mosn.io/api"

	"mosn.io/shmseg/pkg/log"
	"mosn.io/shmseg/pkg/metrics"
	"mosn.io/shmseg/pkg/segment"
	"mosn.io/shmseg/pkg/serialize"
	"mosn.io/shmseg/pkg/shm"
	"mosn.io/shmseg/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the configuration file of the shmseg tool.
type Config struct {
	Dir         string              `json:"dir,omitempty"`          // directory of the shared objects, /dev/shm if empty
	Serializer  string              `json:"serializer,omitempty"`   // default serializer name
	Perm        string              `json:"perm,omitempty"`         // octal permission of created files
	Mlock       bool                `json:"mlock,omitempty"`        // pin mapped pages
	LockTimeout *api.DurationConfig `json:"lock_timeout,omitempty"` // waits forever if unset or negative
	Log         LogConfig           `json:"log,omitempty"`
	Metrics     MetricsConfig       `json:"metrics,omitempty"`
	Segments    []SegmentConfig     `json:"segments,omitempty"`
}

// LogConfig for the default error logger
type LogConfig struct {
	Output string `json:"output,omitempty"`
	Level  string `json:"level,omitempty"`
}

// MetricsConfig for segment metrics
type MetricsConfig struct {
	StatsMatcher StatsMatcher `json:"stats_matcher,omitempty"`
}

// StatsMatcher is a configuration for reject metrics by label or key patterns
type StatsMatcher struct {
	RejectAll       bool     `json:"reject_all,omitempty"`
	ExclusionLabels []string `json:"exclusion_labels,omitempty"`
	ExclusionKeys   []string `json:"exclusion_keys,omitempty"`
}

// SegmentConfig describes a segment the tool creates.
type SegmentConfig struct {
	Name         string            `json:"name"`
	Capacity     datasize.ByteSize `json:"capacity"`
	Synchronized bool              `json:"synchronized,omitempty"`
	Serializer   string            `json:"serializer,omitempty"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Dir:        types.DefaultShmDir,
		Serializer: serialize.DefaultName,
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	log.StartLogger.Infof("[config] load config from %s", path)
	return cfg, nil
}

// Parse decodes and validates a JSON configuration.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, errors.Wrapf(types.ErrInvalidArgument, "parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that parsing cannot.
func (c *Config) Validate() error {
	if _, err := c.perm(); err != nil {
		return err
	}
	if _, err := serialize.Get(c.Serializer); err != nil {
		return err
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLogLevel(c.Log.Level); err != nil {
			return errors.Wrapf(types.ErrInvalidArgument, "%v", err)
		}
	}
	seen := make(map[string]bool, len(c.Segments))
	for _, s := range c.Segments {
		if err := types.ValidateName(s.Name); err != nil {
			return err
		}
		if seen[s.Name] {
			return errors.Wrapf(types.ErrInvalidArgument, "segment %s configured twice", s.Name)
		}
		seen[s.Name] = true
		if s.Capacity == 0 || uint64(s.Capacity) > segment.MaxCapacity {
			return errors.Wrapf(types.ErrOutOfRange, "capacity %s of segment %s", s.Capacity.HR(), s.Name)
		}
		if _, err := serialize.Get(s.Serializer); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) perm() (os.FileMode, error) {
	if c.Perm == "" {
		return 0, nil
	}
	p, err := strconv.ParseUint(c.Perm, 8, 32)
	if err != nil || p > 0777 {
		return 0, errors.Wrapf(types.ErrInvalidArgument, "perm %q is not an octal permission", c.Perm)
	}
	return os.FileMode(p), nil
}

// Apply installs the process wide settings: logging, metrics exclusions
// and page locking.
func (c *Config) Apply() error {
	if c.Log.Output != "" || c.Log.Level != "" {
		level := log.INFO
		if c.Log.Level != "" {
			lv, err := log.ParseLogLevel(c.Log.Level)
			if err != nil {
				return err
			}
			level = lv
		}
		if c.Log.Output == "" {
			log.UpdateErrorLoggerLevel(level)
		} else if err := log.InitDefaultLogger(c.Log.Output, level); err != nil {
			return err
		}
	}
	m := c.Metrics.StatsMatcher
	metrics.SetStatsMatcher(m.RejectAll, m.ExclusionLabels, m.ExclusionKeys)
	shm.MlockEnabled = c.Mlock
	return nil
}

// Segment returns the configuration of the named segment.
func (c *Config) Segment(name string) (SegmentConfig, bool) {
	for _, s := range c.Segments {
		if s.Name == name {
			return s, true
		}
	}
	return SegmentConfig{Name: name}, false
}

// Options returns the segment options of the named segment.
func (c *Config) Options(name string) []segment.Option {
	opts := []segment.Option{
		segment.WithDir(c.Dir),
		segment.WithSerializer(c.Serializer),
		segment.WithLockTimeout(c.Timeout()),
	}
	if s, ok := c.Segment(name); ok && s.Serializer != "" {
		opts = append(opts, segment.WithSerializer(s.Serializer))
	}
	if perm, err := c.perm(); err == nil && perm != 0 {
		opts = append(opts, segment.WithPerm(perm))
	}
	return opts
}

// Timeout is the lock timeout, types.Infinite unless configured.
func (c *Config) Timeout() time.Duration {
	if c.LockTimeout == nil || c.LockTimeout.Duration < 0 {
		return types.Infinite
	}
	return c.LockTimeout.Duration
}
