// Package config loads attachfinder settings.
//
// Values are resolved in this order, highest first: command line flags,
// ATTACHFINDER_* environment variables, the YAML config file
// ($XDG_CONFIG_HOME/attachfinder/config.yaml by default), and built-in
// defaults. The OAuth client settings also honour the unprefixed CLIENT_ID,
// CLIENT_SECRET and REDIRECT_URI variables, and PORT sets the listen port.
// A .env file in the working directory is loaded into the environment
// first by LoadDotEnv.
package config
