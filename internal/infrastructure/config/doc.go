// Package config handles loading and validating Doorguard configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling (including the stock access-policy timings)
//
// Security Considerations:
//   - The door passcode, admin passcode and admin card ID should be set via
//     environment variables (DOORGUARD_PASSCODE, DOORGUARD_ADMIN_PASSCODE,
//     DOORGUARD_ADMIN_CARD_ID) rather than committed to the YAML file
//   - The config file should have restricted permissions (0600)
//   - Policy values here only seed the policy store on first boot; later
//     changes go through the validated policy setters
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Access.MaxAttempts)
package config
