package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	zerr "github.com/forgehost/lfs-gateway/errors"
)

// metadataConfig wires a mapstructure.Metadata tracker into viper's
// decode pipeline so LoadConfiguration can tell an empty config file
// apart from one with unrecognized keys.
func metadataConfig(md *mapstructure.Metadata) viper.DecoderConfigOption {
	return func(c *mapstructure.DecoderConfig) {
		c.Metadata = md
	}
}

// LoadConfiguration reads configPath, a JSON/YAML/TOML file, on top of
// conf's existing defaults and validates the result.
func LoadConfiguration(conf *Config, configPath string) error {
	viperInstance := viper.NewWithOptions(viper.KeyDelimiter("::"))

	ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
	if !contains(viper.SupportedExts, ext) {
		ext = ""
	}

	if ext == "" {
		var err error

		for _, configType := range viper.SupportedExts {
			viperInstance.SetConfigType(configType)
			viperInstance.SetConfigFile(configPath)

			err = viperInstance.ReadInConfig()
			if err == nil {
				break
			}
		}

		if err != nil {
			return fmt.Errorf("%w: %w", zerr.ErrBadConfig, err)
		}
	} else {
		viperInstance.SetConfigFile(configPath)

		if err := viperInstance.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: %w", zerr.ErrBadConfig, err)
		}
	}

	metaData := &mapstructure.Metadata{}

	decoderOpts := []viper.DecoderConfigOption{
		metadataConfig(metaData),
		viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()),
	}

	if err := viperInstance.UnmarshalExact(conf, decoderOpts...); err != nil {
		return fmt.Errorf("%w: %w", zerr.ErrBadConfig, err)
	}

	if len(metaData.Keys) == 0 {
		return fmt.Errorf("%w: config file has no key:value pairs", zerr.ErrBadConfig)
	}

	if len(metaData.Unused) > 0 {
		return fmt.Errorf("%w: unknown keys %v", zerr.ErrBadConfig, metaData.Unused)
	}

	return Validate(conf)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}
