// Package config handles loading and validating sqlsessiond configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SQLSESSION_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The store password and JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The admin API refuses to start without a JWT secret of at least 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/sqlsession.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Store.Path)
package config
