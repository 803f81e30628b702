package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/roach88/pmgate/internal/eventlog"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PMGATE_"

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"dedupe_keys":        true,
	"sensitive_patterns": true,
	"oracle_args":        true,
}

// Load layers defaults, the optional file at path, the environment and the
// explicitly set flags in fs, then validates the result. fs may be nil.
//
// All failures are ConfigurationErrors.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, eventlog.NewConfigurationError("loading defaults: %v", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, eventlog.NewConfigurationError("loading config file %s: %v", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return Config{}, eventlog.NewConfigurationError("loading environment: %v", err)
	}

	if fs != nil {
		if err := applyFlags(k, fs); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, eventlog.NewConfigurationError("unmarshaling config: %v", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFlags copies every explicitly set flag that names a config key.
// Flag names use dashes where keys use underscores.
func applyFlags(k *koanf.Koanf, fs *pflag.FlagSet) error {
	var firstErr error
	fs.Visit(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !k.Exists(key) || firstErr != nil {
			return
		}
		var (
			v   any
			err error
		)
		switch f.Value.Type() {
		case "stringSlice":
			v, err = fs.GetStringSlice(f.Name)
		case "bool":
			v, err = fs.GetBool(f.Name)
		case "float64":
			v, err = fs.GetFloat64(f.Name)
		case "int":
			v, err = fs.GetInt(f.Name)
		default:
			v = f.Value.String()
		}
		if err == nil {
			err = k.Set(key, v)
		}
		if err != nil {
			firstErr = eventlog.NewConfigurationError("flag --%s: %v", f.Name, err)
		}
	})
	return firstErr
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	return v
}

// Validate checks ranges and enumerations.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return eventlog.NewConfigurationError("validating config: %v", err)
	}
	fe := verrs[0]
	return eventlog.NewConfigurationError("invalid %s=%v: %s", fe.Field(), fe.Value(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "required":
		return "is required"
	}
	return "failed " + fe.Tag()
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
