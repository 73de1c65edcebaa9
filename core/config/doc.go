// Package config loads the application configuration from environment
// variables and an optional .env file.
//
// Each subsystem owns its partial Config struct (database, redis, log);
// this package composes them and binds defaults declared via `default:`
// struct tags, so DATABASE_HOST, REDIS_PORT and friends map onto nested
// keys automatically.
package config
