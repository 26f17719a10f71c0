// Package config loads application configuration.
//
// Settings come from three layers, lowest precedence first: built-in
// defaults, an optional YAML file named by GATEHOUSE_CONFIG_FILE, and
// GATEHOUSE_* environment variables. The environment always wins, so a
// deployment can ship a checked-in file and still override single values
// per instance.
//
// Recognized environment variables:
//
//	GATEHOUSE_CONFIG_FILE            path to a YAML config file
//	GATEHOUSE_POSTGRES_URL           postgres connection URL
//	GATEHOUSE_POSTGRES_MAX_CONNS     max open connections
//	GATEHOUSE_POSTGRES_IDLE_CONNS    max idle connections
//	GATEHOUSE_POSTGRES_CONN_LIFETIME connection lifetime (duration)
//	GATEHOUSE_CACHE_BACKEND          "redis" or "memory"
//	GATEHOUSE_REDIS_URL              redis connection URL
//	GATEHOUSE_REDIS_PASSWORD         redis password override
//	GATEHOUSE_REDIS_DB               redis database number
//	GATEHOUSE_MEMORY_CACHE_SIZE      in-process cache entry limit
//	GATEHOUSE_LOG_LEVEL              debug, info, warn, or error
//	GATEHOUSE_METRICS_ENABLED        "true" or "false"
package config
