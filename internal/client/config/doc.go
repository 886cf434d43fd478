// Package config loads settings for the VIP club command-line client.
//
// Sources are layered in order: built-in defaults, an optional JSON file
// named by -c/-config, then short command-line flags.
package config
