// Package config handles loading and validating the KairosDB persistor configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a .env file into the environment when one is present
//   - Overriding with KAIROSPERSISTOR_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// The persistor section mirrors the historical bus module options: address
// defaults to "jonnywray.kairospersistor", host to "localhost" and port to 8080.
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.BackendURL())
package config
