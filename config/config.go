// Package config is the typed, dotted-key configuration surface populated
// via viper; every tunable is threaded through constructors rather than
// read from globals at call sites.
package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ColumnConfig is the per-"<partition>.<col>" slice of gParameters.
type ColumnConfig struct {
	// DisableIndexOnFailure marks a column "no index" on a failed build
	// instead of retrying ("<partition>.<col>.disableIndexOnFailure").
	DisableIndexOnFailure bool
}

// PartitionConfig is the per-"<partition>" slice of gParameters.
type PartitionConfig struct {
	// CacheDirectory is scratch space for out-of-core roster merges.
	CacheDirectory string
	Columns        map[string]ColumnConfig
}

// Config is the fully resolved configuration surface, including the log
// level read from the "gVerbose" key.
type Config struct {
	LogLevel   zerolog.Level
	Partitions map[string]PartitionConfig
}

// Partition returns name's resolved configuration, or the zero value if
// name has no explicit entry.
func (c *Config) Partition(name string) PartitionConfig {
	return c.Partitions[name]
}

// DisableIndexOnFailure reports the "<partition>.<col>.disableIndexOnFailure"
// setting for col in partition, defaulting to false.
func (c *Config) DisableIndexOnFailure(partition, col string) bool {
	p, ok := c.Partitions[partition]
	if !ok {
		return false
	}
	return p.Columns[col].DisableIndexOnFailure
}

// Load reads configuration from path (if non-empty), environment variables
// prefixed BITDB_, and defaults; viper's dotted-key lookups map directly
// onto the "partitions.<name>.columns.<col>" key shape.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BITDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("gVerbose", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	lvl, err := zerolog.ParseLevel(v.GetString("gVerbose"))
	if err != nil {
		return nil, fmt.Errorf("config: gVerbose: %w", err)
	}

	cfg := &Config{LogLevel: lvl, Partitions: map[string]PartitionConfig{}}
	raw := v.GetStringMap("partitions")
	for name := range raw {
		sub := v.Sub("partitions." + name)
		if sub == nil {
			continue
		}
		pc := PartitionConfig{
			CacheDirectory: sub.GetString("cacheDirectory"),
			Columns:        map[string]ColumnConfig{},
		}
		for col := range sub.GetStringMap("columns") {
			colSub := sub.Sub("columns." + col)
			if colSub == nil {
				continue
			}
			pc.Columns[col] = ColumnConfig{
				DisableIndexOnFailure: colSub.GetBool("disableIndexOnFailure"),
			}
		}
		cfg.Partitions[name] = pc
	}
	return cfg, nil
}
