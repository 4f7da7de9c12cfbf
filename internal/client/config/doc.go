// Package config loads runtime settings for the Temple Sanathan client.
//
// Sources are applied in order, later ones overriding earlier ones:
// built-in defaults, a JSON file (-c/-config), environment variables, and
// command-line flags.
package config
