// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	ConfigFileKey = "config-file"

	DefinitionsFileKey = "throttle-definitions-file"
	GasPerSecondKey    = "throttle-gas-per-second"
	CapacitySplitKey   = "throttle-capacity-split"

	ExpiryDirKey           = "expiry-throttle-dir"
	ExpiryResourceKey      = "expiry-throttle-resource"
	ExpiryMinUnitOfWorkKey = "expiry-throttle-min-unit-of-work"

	PricingTiersKey             = "pricing-tiers"
	PricingFreeTierLimitKey     = "pricing-free-tier-limit"
	PricingMaxTotalUnitsKey     = "pricing-max-total-units"
	PricingReferenceLifetimeKey = "pricing-reference-lifetime"

	DBTypeKey         = "db-type"
	DBDirKey          = "db-dir"
	RedisAddressKey   = "redis-address"
	RedisKeyPrefixKey = "redis-key-prefix"

	LogLevelKey    = "log-level"
	LogFormatKey   = "log-format"
	LogDirKey      = "log-dir"
	LogMaxSizeKey  = "log-rotater-max-size"
	LogMaxFilesKey = "log-rotater-max-files"

	HTTPHostKey            = "http-host"
	HTTPPortKey            = "http-port"
	HTTPAllowedOriginsKey  = "http-allowed-origins"
	HTTPShutdownTimeoutKey = "http-shutdown-timeout"

	PersistFrequencyKey = "persist-frequency"

	TracingExporterTypeKey = "tracing-exporter-type"
	TracingEndpointKey     = "tracing-endpoint"
	TracingInsecureKey     = "tracing-insecure"
	TracingSampleRateKey   = "tracing-sample-rate"
)
