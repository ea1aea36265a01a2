// Package config provides configuration management for the Loxone bridge.
//
// Configuration is loaded from a YAML file with environment variable
// overrides applied afterwards:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Environment variables follow the pattern LOXBRIDGE_SECTION_KEY,
// e.g. LOXBRIDGE_MINISERVER_PASSWORD overrides miniserver.password.
// Credentials should always come from the environment in production.
package config
