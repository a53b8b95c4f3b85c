// Package config loads and validates BluLok Core configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// BLULOK_* environment variable overrides. Validation runs after all three
// layers so a deployment cannot start with a missing operations key or an
// unusable database path.
package config
