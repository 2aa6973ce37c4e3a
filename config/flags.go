// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ava-labs/throttling/database/leveldb"
	"github.com/ava-labs/throttling/state/redisstore"
	"github.com/ava-labs/throttling/throttling/expiry"
	"github.com/ava-labs/throttling/trace"
	"github.com/ava-labs/throttling/utils/logging"
)

const (
	AppName = "throttlectl"

	// DefaultPricingTiers prices units in thousandths of a cent per unit per
	// reference lifetime.
	DefaultPricingTiers = "10til50M,50til100M,100til150M,200til200M,500til250M,700til300M,1000til350M,2000til400M,5000til450M,10000til500M"

	defaultGasPerSecond      = 15_000_000
	defaultMaxTotalUnits     = 500_000_000
	defaultReferenceLifetime = 90 * 24 * time.Hour
	defaultPersistFrequency  = 10 * time.Second
)

var (
	defaultDataDir = filepath.Join(os.ExpandEnv("$HOME"), "."+AppName)
	defaultDBDir   = filepath.Join(defaultDataDir, "db")

	defaultMinUnitOfWork = []expiry.AccessKind{
		expiry.AccountsGetForModify,
		expiry.AccountsRemove,
	}
)

// BuildFlagSet returns the complete set of flags for throttlectl
func BuildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)

	fs.String(ConfigFileKey, "", "Specifies a config file")

	// Throttles
	fs.String(DefinitionsFileKey, "", "Path to the throttle definitions, in JSON or YAML")
	fs.Uint64(GasPerSecondKey, defaultGasPerSecond, "Gas admitted per second by the gas throttle")
	fs.Int(CapacitySplitKey, 1, "Number of nodes the advisory throttles split the network capacity across")

	// Expiry
	fs.String(ExpiryDirKey, "", "Directory holding the expiry throttle definition. If empty, the packaged definition is used")
	fs.String(ExpiryResourceKey, expiry.DefaultResource, "Name of the expiry throttle definition")
	fs.String(ExpiryMinUnitOfWorkKey, joinAccessKinds(defaultMinUnitOfWork), "Comma separated accesses performed by every unit of expiry work")

	// Pricing
	fs.String(PricingTiersKey, DefaultPricingTiers, "Comma separated <price>til<usage> congestion pricing tiers")
	fs.Uint64(PricingFreeTierLimitKey, 0, "Units an entity may hold before it is charged")
	fs.Uint64(PricingMaxTotalUnitsKey, defaultMaxTotalUnits, "Units the network can hold")
	fs.Duration(PricingReferenceLifetimeKey, defaultReferenceLifetime, "Lifetime the tier prices are quoted for")

	// Database
	fs.String(DBTypeKey, leveldb.Name, "Database type used to persist throttle usage. Should be one of {leveldb, memdb, redis}")
	fs.String(DBDirKey, defaultDBDir, "Path to database directory")
	fs.String(RedisAddressKey, "localhost:6379", "Address of the Redis server, if db-type is redis")
	fs.String(RedisKeyPrefixKey, redisstore.DefaultKeyPrefix, "Prefix of the Redis keys holding throttle usage")
	fs.Duration(PersistFrequencyKey, defaultPersistFrequency, "Frequency throttle usage is persisted at")

	// Logging
	fs.String(LogLevelKey, "info", "The log level. Should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogFormatKey, logging.PlainFormat, "The log format. Should be one of {plain, json}")
	fs.String(LogDirKey, "", "Logging directory. If empty, logs are written to stdout")
	fs.Int(LogMaxSizeKey, 8, "The maximum file size in megabytes of the log file before it gets rotated")
	fs.Int(LogMaxFilesKey, 7, "The maximum number of rotated log files to keep")

	// HTTP
	fs.String(HTTPHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(HTTPPortKey, 9660, "Port of the HTTP server")
	fs.String(HTTPAllowedOriginsKey, "*", "Origins to allow on the HTTP port")
	fs.Duration(HTTPShutdownTimeoutKey, 10*time.Second, "Maximum duration to wait for existing connections to complete during shutdown")

	// Tracing
	fs.String(TracingExporterTypeKey, trace.NoOp.String(), fmt.Sprintf("Type of exporter to use for tracing. Options are [%s, %s]. If empty, tracing is disabled", trace.GRPC, trace.HTTP))
	fs.String(TracingEndpointKey, "localhost:4317", "The endpoint to send trace data to")
	fs.Bool(TracingInsecureKey, true, "If true, don't use TLS when sending trace data")
	fs.Float64(TracingSampleRateKey, 0.1, "The fraction of traces to sample. If >= 1, always sample. If <= 0, never sample")

	return fs
}

func joinAccessKinds(kinds []expiry.AccessKind) string {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = kind.String()
	}
	return strings.Join(names, ",")
}
