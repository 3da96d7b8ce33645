// Package config provides configuration loading and validation for the transcriber.
// It reads a YAML file on top of built-in defaults, overlays the LEMONFOX_* environment
// variables (optionally sourced from a .env file) and validates every section once at startup.
package config
