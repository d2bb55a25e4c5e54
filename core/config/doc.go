// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file on first use and uses caarlos0/env for parsing
// environment variables into struct fields.
//
//	type RelayConfig struct {
//		Port      int    `env:"PORT" envDefault:"3000"`
//		JWTSecret string `env:"JWT_SECRET"`
//	}
//
//	var cfg RelayConfig
//	config.MustLoad(&cfg)
package config
