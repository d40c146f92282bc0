// Package config loads and validates chainkit configuration.
//
// Values come from a config.yml found in standard locations (or given
// explicitly), then from a .env file, then from environment variables.
// Environment variables are read only when they carry the service prefix:
// for service "chainrun", CHAINRUN_STREAM_HIGH_WATER_MARK sets
// stream.high_water_mark.
//
// # Usage
//
//	cfg, err := config.Load("chainrun", config.WithConfigFile("config.yml"))
package config
