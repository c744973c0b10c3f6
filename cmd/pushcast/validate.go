package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pushcast/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Pushcast configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pushcast validate -c pushcast.yaml
  pushcast validate --config /etc/pushcast/pushcast.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ttl := "default"
	if cfg.Delivery.TTL != nil {
		ttl = cfg.Delivery.TTL.Duration().String()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  VAPID keys:      %s\n", keySource(cfg))
	fmt.Fprintf(out, "  Max concurrency: %d\n", cfg.Delivery.MaxConcurrency)
	fmt.Fprintf(out, "  Timeout:         %s\n", cfg.Delivery.Timeout.Duration())
	fmt.Fprintf(out, "  TTL:             %s\n", ttl)
	fmt.Fprintf(out, "  Urgency:         %s\n", cfg.Delivery.Urgency)

	return nil
}
