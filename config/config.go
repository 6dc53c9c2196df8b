// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/healthexport/internal/engine"
	"github.com/cardinalhq/healthexport/internal/extract"
	"github.com/cardinalhq/healthexport/internal/grouping"
	"github.com/cardinalhq/healthexport/internal/sink"
	"github.com/cardinalhq/healthexport/internal/source"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Extract extract.Config  `mapstructure:"extract"`
	Group   grouping.Config `mapstructure:"group"`
	Sink    sink.Config     `mapstructure:"sink"`
	Input   InputConfig     `mapstructure:"input"`
	Output  OutputConfig    `mapstructure:"output"`
}

type InputConfig struct {
	// MemberSuffix selects the document inside a zip input.
	MemberSuffix string `mapstructure:"member_suffix"`

	// SkipElements are element names never turned into records. Empty
	// means healthkit.DefaultSkipElements.
	SkipElements []string `mapstructure:"skip_elements"`
}

type OutputConfig struct {
	// Format is the archive format, "zip" or "tar.zst".
	Format string `mapstructure:"format"`

	// Table is the per-group table format.
	Table string `mapstructure:"table"`
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "HEALTHEXPORT" and the dot character
// in keys is replaced by an underscore. For example, "extract.workers"
// becomes "HEALTHEXPORT_EXTRACT_WORKERS".
func Load() (*Config, error) {
	cfg := &Config{
		Extract: extract.DefaultConfig(),
		Group:   grouping.DefaultConfig(),
		Sink:    sink.DefaultConfig(),
		Input:   InputConfig{MemberSuffix: source.DefaultMemberSuffix},
		Output:  OutputConfig{Format: "zip", Table: "csv"},
	}

	v := viper.New()
	v.SetConfigName("healthexport")
	v.AddConfigPath(".")
	v.SetEnvPrefix("HEALTHEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetThreads overrides every worker count.
func (c *Config) SetThreads(n int) {
	if n <= 0 {
		return
	}
	c.Extract.Workers = n
	c.Group.Workers = n
	c.Sink.Workers = n
}

// EngineOptions maps the configuration onto the pipeline.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Extract:      c.Extract,
		Group:        c.Group,
		Sink:         c.Sink,
		Format:       c.Output.Format,
		Table:        c.Output.Table,
		MemberSuffix: c.Input.MemberSuffix,
		SkipElements: c.Input.SkipElements,
	}
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
