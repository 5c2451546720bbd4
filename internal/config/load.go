// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: SECUREAUTH_TOKEN__SIGNING_KEY.
const EnvPrefix = "SECUREAUTH_"

// flagKeys maps the flags registered by BindFlags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":         "http_addr",
	"grpc-addr":         "grpc_addr",
	"metrics-addr":      "metrics_addr",
	"log-format":        "log_format",
	"database-url":      "database.url",
	"ratelimit-backend": "ratelimit.backend",
	"redis-url":         "ratelimit.redis_url",
	"bcrypt-cost":       "bcrypt_cost",
}

// BindFlags registers the overridable flags on fs. Defaults shown in help
// come from Default; unset flags never override lower layers.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTPAddr, "REST and browser listen address")
	fs.String("grpc-addr", d.GRPCAddr, "gRPC listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("ratelimit-backend", d.RateLimit.Backend, "limiter state backend (memory or redis)")
	fs.String("redis-url", "", "redis URL for the redis limiter backend")
	fs.Int("bcrypt-cost", d.BcryptCost, "bcrypt work factor for new hashes")
}

// Options controls Load.
type Options struct {
	// Path is the YAML file. Empty skips the file layer.
	Path string
	// Optional tolerates a missing file, used for the XDG default path.
	Optional bool
	// Flags, when set, is the final layer. Only flags the user changed apply.
	Flags *pflag.FlagSet
	// Validator replaces (*Config).Validate for callers that need only part
	// of the configuration.
	Validator func(*Config) error
}

// Load layers defaults, file, environment and flags, then validates.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if opts.Path != "" {
		if err := loadFile(k, opts); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code(CodeInvalid).With("layer", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalid).With("layer", "flags").Wrap(err)
		}
	}

	cfg := Default()
	// A configured policy list replaces the defaults instead of merging
	// into them element by element.
	if k.Exists("ratelimit.policies") {
		cfg.RateLimit.Policies = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeInvalid).With("operation", "decode configuration").Wrap(err)
	}
	validate := opts.Validator
	if validate == nil {
		validate = (*Config).Validate
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, opts Options) error {
	if _, err := os.Stat(opts.Path); err != nil {
		if opts.Optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code(CodeInvalid).With("path", opts.Path).Wrapf(err, "read config file")
	}
	if err := ValidateFile(opts.Path); err != nil {
		return err
	}
	if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
		return oops.Code(CodeInvalid).With("path", opts.Path).Wrapf(err, "parse config file")
	}
	return nil
}

// envKey turns SECUREAUTH_RATELIMIT__REDIS_URL into ratelimit.redis_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
