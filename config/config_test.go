// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

const testDefinitions = `version: 1
buckets:
  - name: ThroughputLimits
    burstPeriodMs: 1000
    throttleGroups:
      - opsPerSec: 100
        operations: ["*"]
`

func writeFile(t *testing.T, name string, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func getConfig(t *testing.T, args ...string) (Config, error) {
	t.Helper()

	v, err := GetViper(args)
	require.NoError(t, err)
	return GetConfig(v, filesystem.NewReader())
}

func TestGetConfigDefaults(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, "throttles.yaml", testDefinitions)
	config, err := getConfig(t, "--"+DefinitionsFileKey, path)
	require.NoError(err)

	require.Equal(path, config.DefinitionsFile)
	require.Len(config.Definitions.Buckets, 1)
	require.Equal("ThroughputLimits", config.Definitions.Buckets[0].Name)
	require.Equal(uint64(defaultGasPerSecond), config.GasPerSecond)
	require.Equal(1, config.CapacitySplit)
	require.Empty(config.ExpiryDir)
	require.Equal(expiry.DefaultResource, config.ExpiryResource)
	require.Equal(defaultMinUnitOfWork, config.ExpiryMinUnitOfWork)
	require.Equal(DefaultPricingTiers, config.Tiers.String())
	require.Equal(uint64(defaultMaxTotalUnits), config.Tiers.MaxTotalUnits())
	require.Equal(defaultReferenceLifetime, config.Tiers.ReferenceLifetime())
	require.Equal(leveldb.Name, config.DBType)
	require.Equal(defaultDBDir, config.DBDir)
	require.Equal(defaultPersistFrequency, config.PersistFrequency)
	require.Equal(logging.Info, config.Log.Level)
	require.Equal(logging.PlainFormat, config.Log.Format)
	require.Equal(AppName, config.Log.Name)
	require.Equal("127.0.0.1:9660", config.HTTPAddress())
	require.Equal([]string{"*"}, config.HTTPAllowedOrigins)
	require.Equal(10*time.Second, config.HTTPShutdownTimeout)
	require.False(config.Trace.Enabled)
	require.Equal(AppName, config.Trace.AppName)

	require.IsType(&expiry.AssetLoader{}, config.ExpiryLoader(filesystem.NewReader()))
}

func TestGetConfigFromFlags(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, "throttles.yaml", testDefinitions)
	config, err := getConfig(t,
		"--"+DefinitionsFileKey, path,
		"--"+GasPerSecondKey, "42",
		"--"+CapacitySplitKey, "7",
		"--"+ExpiryDirKey, "/expiry",
		"--"+ExpiryMinUnitOfWorkKey, "StorageGet, StorageRemove",
		"--"+PricingTiersKey, "1til10K,2til20K",
		"--"+PricingMaxTotalUnitsKey, "30000",
		"--"+PricingReferenceLifetimeKey, "1h",
		"--"+DBTypeKey, memdb.Name,
		"--"+LogLevelKey, "verbo",
		"--"+LogFormatKey, logging.JSONFormat,
		"--"+HTTPPortKey, "8080",
		"--"+HTTPAllowedOriginsKey, "a.example, b.example",
	)
	require.NoError(err)

	require.Equal(uint64(42), config.GasPerSecond)
	require.Equal(7, config.CapacitySplit)
	require.Equal([]expiry.AccessKind{expiry.StorageGet, expiry.StorageRemove}, config.ExpiryMinUnitOfWork)
	require.Equal("1til10K,2til20K", config.Tiers.String())
	require.Equal(uint64(30_000), config.Tiers.MaxTotalUnits())
	require.Equal(time.Hour, config.Tiers.ReferenceLifetime())
	require.Equal(memdb.Name, config.DBType)
	require.Equal(logging.Verbo, config.Log.Level)
	require.Equal(logging.JSONFormat, config.Log.Format)
	require.Equal(uint16(8080), config.HTTPPort)
	require.Equal([]string{"a.example", "b.example"}, config.HTTPAllowedOrigins)

	loader, ok := config.ExpiryLoader(filesystem.NewReader()).(*expiry.FileLoader)
	require.True(ok)
	require.Equal("/expiry", loader.Dir)
}

func TestGetConfigRedis(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, "throttles.yaml", testDefinitions)
	config, err := getConfig(t,
		"--"+DefinitionsFileKey, path,
		"--"+DBTypeKey, redisstore.Name,
		"--"+RedisAddressKey, "redis.internal:6380",
		"--"+RedisKeyPrefixKey, "node-1:",
	)
	require.NoError(err)
	require.Equal(redisstore.Name, config.DBType)
	require.Equal("redis.internal:6380", config.RedisAddress)
	require.Equal("node-1:", config.RedisKeyPrefix)
}

func TestGetConfigTracing(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, "throttles.yaml", testDefinitions)
	config, err := getConfig(t,
		"--"+DefinitionsFileKey, path,
		"--"+TracingExporterTypeKey, "http",
		"--"+TracingEndpointKey, "collector:4318",
		"--"+TracingInsecureKey+"=false",
		"--"+TracingSampleRateKey, "0.5",
	)
	require.NoError(err)
	require.Equal(trace.Config{
		ExporterConfig: trace.ExporterConfig{
			Type:     trace.HTTP,
			Endpoint: "collector:4318",
			Insecure: false,
		},
		Enabled:         true,
		TraceSampleRate: 0.5,
		AppName:         AppName,
	}, config.Trace)
}

func TestGetConfigUnknownExporter(t *testing.T) {
	path := writeFile(t, "throttles.yaml", testDefinitions)
	_, err := getConfig(t, "--"+DefinitionsFileKey, path, "--"+TracingExporterTypeKey, "zipkin")
	require.ErrorContains(t, err, "unknown exporter type")
}

func TestGetConfigFromEnv(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, "throttles.yaml", testDefinitions)
	t.Setenv("THROTTLING_THROTTLE_DEFINITIONS_FILE", path)
	t.Setenv("THROTTLING_THROTTLE_CAPACITY_SPLIT", "3")

	config, err := getConfig(t, "--"+GasPerSecondKey, "9")
	require.NoError(err)
	require.Equal(path, config.DefinitionsFile)
	require.Equal(3, config.CapacitySplit)
	require.Equal(uint64(9), config.GasPerSecond)
}

func TestGetConfigFromFile(t *testing.T) {
	require := require.New(t)

	definitionsPath := writeFile(t, "throttles.yaml", testDefinitions)
	configPath := writeFile(t, "config.json", `{
  "`+DefinitionsFileKey+`": "`+definitionsPath+`",
  "`+CapacitySplitKey+`": 4,
  "`+PricingFreeTierLimitKey+`": 100
}`)

	// Flags take precedence over the config file.
	config, err := getConfig(t,
		"--"+ConfigFileKey, configPath,
		"--"+CapacitySplitKey, "5",
	)
	require.NoError(err)
	require.Equal(definitionsPath, config.DefinitionsFile)
	require.Equal(5, config.CapacitySplit)
	require.Equal(uint64(100), config.Tiers.FreeTierLimit())
}

func TestGetConfigErrors(t *testing.T) {
	path := writeFile(t, "throttles.yaml", testDefinitions)

	tests := []struct {
		name        string
		args        []string
		expectedErr error
	}{
		{
			name:        "missing definitions",
			args:        nil,
			expectedErr: errMissingDefinitions,
		},
		{
			name:        "unreadable definitions",
			args:        []string{"--" + DefinitionsFileKey, filepath.Join(t.TempDir(), "missing.json")},
			expectedErr: os.ErrNotExist,
		},
		{
			name:        "unsupported definitions format",
			args:        []string{"--" + DefinitionsFileKey, writeFile(t, "throttles.toml", testDefinitions)},
			expectedErr: definitions.ErrUnsupportedFormat,
		},
		{
			name:        "zero gas",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + GasPerSecondKey, "0"},
			expectedErr: errZeroGasPerSecond,
		},
		{
			name:        "zero split",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + CapacitySplitKey, "0"},
			expectedErr: errInvalidSplit,
		},
		{
			name:        "unknown database",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + DBTypeKey, "pebbledb"},
			expectedErr: errUnknownDBType,
		},
		{
			name:        "port out of range",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + HTTPPortKey, "70000"},
			expectedErr: errInvalidPort,
		},
		{
			name:        "zero persist frequency",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + PersistFrequencyKey, "0s"},
			expectedErr: errZeroPersistFreq,
		},
		{
			name:        "unknown access kind",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + ExpiryMinUnitOfWorkKey, "AccountsPut"},
			expectedErr: expiry.ErrUnknownAccessKind,
		},
		{
			name:        "decreasing tiers",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + PricingTiersKey, "2til10,1til20"},
			expectedErr: congestion.ErrDecreasingPrice,
		},
		{
			name:        "sample rate out of range",
			args:        []string{"--" + DefinitionsFileKey, path, "--" + TracingExporterTypeKey, "grpc", "--" + TracingSampleRateKey, "1.5"},
			expectedErr: errInvalidSampleRate,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := getConfig(t, test.args...)
			require.ErrorIs(t, err, test.expectedErr)
		})
	}
}

func TestGetConfigInvalidLogLevel(t *testing.T) {
	path := writeFile(t, "throttles.yaml", testDefinitions)
	_, err := getConfig(t, "--"+DefinitionsFileKey, path, "--"+LogLevelKey, "loud")
	require.ErrorContains(t, err, "unknown log level")
}

func TestGetViperUnknownFlag(t *testing.T) {
	_, err := GetViper([]string{"--not-a-flag"})
	require.ErrorContains(t, err, "not-a-flag")
}
