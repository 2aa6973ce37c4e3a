// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config parses the configuration of throttlectl from flags, the
// environment and an optional config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/throttling/congestion"
	"github.com/ava-labs/throttling/database/leveldb"
	"github.com/ava-labs/throttling/database/memdb"
	"github.com/ava-labs/throttling/state/redisstore"
	"github.com/ava-labs/throttling/throttling/definitions"
	"github.com/ava-labs/throttling/throttling/expiry"
	"github.com/ava-labs/throttling/trace"
	"github.com/ava-labs/throttling/utils/filesystem"
	"github.com/ava-labs/throttling/utils/logging"
)

// EnvPrefix is prepended to the upper-cased key of every option read from the
// environment. For example, THROTTLING_LOG_LEVEL sets [LogLevelKey].
const EnvPrefix = "throttling"

var (
	errMissingDefinitions = errors.New("throttle definitions file is required")
	errInvalidSplit       = errors.New("capacity split must be positive")
	errZeroGasPerSecond   = errors.New("gas per second must be positive")
	errUnknownDBType      = errors.New("unknown database type")
	errInvalidPort        = errors.New("invalid http port")
	errZeroPersistFreq    = errors.New("persist frequency must be positive")
	errInvalidSampleRate  = errors.New("trace sample rate must be in [0, 1]")
)

type Config struct {
	Definitions     *definitions.Document
	DefinitionsFile string
	GasPerSecond    uint64
	CapacitySplit   int

	ExpiryDir           string
	ExpiryResource      string
	ExpiryMinUnitOfWork []expiry.AccessKind

	Tiers *congestion.Tiers

	DBType           string
	DBDir            string
	RedisAddress     string
	RedisKeyPrefix   string
	PersistFrequency time.Duration

	Log logging.Config

	HTTPHost            string
	HTTPPort            uint16
	HTTPAllowedOrigins  []string
	HTTPShutdownTimeout time.Duration

	Trace trace.Config
}

// ExpiryLoader returns the loader of the expiry throttle definition.
func (c Config) ExpiryLoader(reader filesystem.Reader) expiry.Loader {
	if c.ExpiryDir == "" {
		return &expiry.AssetLoader{FS: expiry.Assets}
	}
	return &expiry.FileLoader{
		Reader: reader,
		Dir:    c.ExpiryDir,
	}
}

// HTTPAddress returns the address the HTTP server listens on.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// GetViper returns the viper environment from parsing [args], the environment
// and the config file, if one is specified. [extra] flags are parsed and bound
// alongside the flags of BuildFlagSet.
func GetViper(args []string, extra ...*flag.FlagSet) (*viper.Viper, error) {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.AddGoFlagSet(BuildFlagSet())
	for _, extraFS := range extra {
		fs.AddGoFlagSet(extraFS)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if v.IsSet(ConfigFileKey) {
		v.SetConfigFile(os.ExpandEnv(v.GetString(ConfigFileKey)))
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// GetConfig sets attributes on the returned config based on the values
// defined in [v]. The throttle definitions file is read with [reader].
func GetConfig(v *viper.Viper, reader filesystem.Reader) (Config, error) {
	config := Config{
		DefinitionsFile:     os.ExpandEnv(v.GetString(DefinitionsFileKey)),
		GasPerSecond:        v.GetUint64(GasPerSecondKey),
		CapacitySplit:       v.GetInt(CapacitySplitKey),
		ExpiryDir:           os.ExpandEnv(v.GetString(ExpiryDirKey)),
		ExpiryResource:      v.GetString(ExpiryResourceKey),
		DBType:              v.GetString(DBTypeKey),
		DBDir:               os.ExpandEnv(v.GetString(DBDirKey)),
		RedisAddress:        v.GetString(RedisAddressKey),
		RedisKeyPrefix:      v.GetString(RedisKeyPrefixKey),
		PersistFrequency:    v.GetDuration(PersistFrequencyKey),
		HTTPHost:            v.GetString(HTTPHostKey),
		HTTPAllowedOrigins:  splitList(v.GetString(HTTPAllowedOriginsKey)),
		HTTPShutdownTimeout: v.GetDuration(HTTPShutdownTimeoutKey),
	}

	if config.GasPerSecond == 0 {
		return Config{}, errZeroGasPerSecond
	}
	if config.CapacitySplit <= 0 {
		return Config{}, fmt.Errorf("%w: %d", errInvalidSplit, config.CapacitySplit)
	}
	if config.PersistFrequency <= 0 {
		return Config{}, fmt.Errorf("%w: %s", errZeroPersistFreq, config.PersistFrequency)
	}
	switch config.DBType {
	case leveldb.Name, memdb.Name, redisstore.Name:
	default:
		return Config{}, fmt.Errorf("%w: %q", errUnknownDBType, config.DBType)
	}

	port := v.GetUint(HTTPPortKey)
	if port > math.MaxUint16 {
		return Config{}, fmt.Errorf("%w: %d", errInvalidPort, port)
	}
	config.HTTPPort = uint16(port)

	var err error
	config.Definitions, err = getDefinitions(config.DefinitionsFile, reader)
	if err != nil {
		return Config{}, err
	}
	config.ExpiryMinUnitOfWork, err = getAccessKinds(v.GetString(ExpiryMinUnitOfWorkKey))
	if err != nil {
		return Config{}, fmt.Errorf("couldn't parse %s: %w", ExpiryMinUnitOfWorkKey, err)
	}
	config.Tiers, err = GetTiers(v)
	if err != nil {
		return Config{}, err
	}
	config.Log, err = getLoggingConfig(v)
	if err != nil {
		return Config{}, err
	}
	config.Trace, err = getTraceConfig(v)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// GetTiers parses the congestion pricing tiers configured in [v].
func GetTiers(v *viper.Viper) (*congestion.Tiers, error) {
	tiers, err := congestion.From(
		v.GetString(PricingTiersKey),
		v.GetUint64(PricingFreeTierLimitKey),
		v.GetUint64(PricingMaxTotalUnitsKey),
		v.GetDuration(PricingReferenceLifetimeKey),
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", PricingTiersKey, err)
	}
	return tiers, nil
}

// GetDefinitions reads the throttle definitions configured in [v].
func GetDefinitions(v *viper.Viper, reader filesystem.Reader) (*definitions.Document, error) {
	return getDefinitions(os.ExpandEnv(v.GetString(DefinitionsFileKey)), reader)
}

func getDefinitions(path string, reader filesystem.Reader) (*definitions.Document, error) {
	if path == "" {
		return nil, errMissingDefinitions
	}
	b, err := reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read throttle definitions: %w", err)
	}
	doc, err := definitions.ParseFile(path, b)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %q: %w", path, err)
	}
	return doc, nil
}

func getAccessKinds(s string) ([]expiry.AccessKind, error) {
	names := splitList(s)
	kinds := make([]expiry.AccessKind, len(names))
	for i, name := range names {
		kind, err := expiry.ParseAccessKind(name)
		if err != nil {
			return nil, err
		}
		kinds[i] = kind
	}
	return kinds, nil
}

func getLoggingConfig(v *viper.Viper) (logging.Config, error) {
	loggingConfig := logging.DefaultConfig()
	loggingConfig.Name = AppName
	loggingConfig.Format = v.GetString(LogFormatKey)
	loggingConfig.Directory = os.ExpandEnv(v.GetString(LogDirKey))
	loggingConfig.MaxSize = v.GetInt(LogMaxSizeKey)
	loggingConfig.MaxFiles = v.GetInt(LogMaxFilesKey)

	var err error
	loggingConfig.Level, err = logging.ToLevel(v.GetString(LogLevelKey))
	return loggingConfig, err
}

func getTraceConfig(v *viper.Viper) (trace.Config, error) {
	exporterType, err := trace.ExporterTypeFromString(v.GetString(TracingExporterTypeKey))
	if err != nil {
		return trace.Config{}, fmt.Errorf("couldn't parse %s: %w", TracingExporterTypeKey, err)
	}
	if exporterType == trace.NoOp {
		return trace.Config{AppName: AppName}, nil
	}

	sampleRate := v.GetFloat64(TracingSampleRateKey)
	if sampleRate < 0 || sampleRate > 1 {
		return trace.Config{}, fmt.Errorf("%w: %f", errInvalidSampleRate, sampleRate)
	}
	return trace.Config{
		ExporterConfig: trace.ExporterConfig{
			Type:     exporterType,
			Endpoint: v.GetString(TracingEndpointKey),
			Insecure: v.GetBool(TracingInsecureKey),
		},
		Enabled:         true,
		TraceSampleRate: sampleRate,
		AppName:         AppName,
	}, nil
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
