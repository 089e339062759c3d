package config

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LoadConfig reads the config file into vip. An empty location leaves vip empty.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		return nil
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %w", err)
	}
	return nil
}

// Unmarshal decodes the values loaded into vip over cfg. Keys that do not match a
// field are an error.
func Unmarshal(vip *viper.Viper, cfg *Config) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		FixedBytesHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithZeroFields(),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}
	if err := vip.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// FixedBytesHookFunc rejects anything but strings for fixed size byte arrays with a text
// form. YAML reads an unquoted 0x12 as a number, which would otherwise be decoded into
// the array as raw bytes.
func FixedBytesHookFunc() mapstructure.DecodeHookFuncType {
	unmarshaler := reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	return func(from, to reflect.Type, data any) (any, error) {
		if to.Kind() != reflect.Array || !reflect.PointerTo(to).Implements(unmarshaler) {
			return data, nil
		}
		if from.Kind() != reflect.String {
			return nil, fmt.Errorf("%v must be a quoted hex string, got %v %v", to, from, data)
		}
		return data, nil
	}
}

func WithZeroFields() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ZeroFields = true
	}
}

func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}
