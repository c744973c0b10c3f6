package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/pushcast"
)

// keysCmd generates a VAPID key pair in dotenv format.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate a VAPID key pair",
	Long: `Generate a VAPID application server key pair.

Browsers subscribe against the public key, so the pair must stay the same
across restarts. The output is in dotenv format, ready for the .env file
that "pushcast serve" loads.

Example:
  pushcast keys
  pushcast keys -o .env`,
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.Flags().StringP("output", "o", "", "write the keys to this dotenv file instead of stdout")
}

func runKeys(cmd *cobra.Command, args []string) error {
	keys, err := pushcast.GenerateVAPIDKeys()
	if err != nil {
		return err
	}

	env := map[string]string{
		"VAPID_PUBLIC_KEY":  keys.PublicKey,
		"VAPID_PRIVATE_KEY": keys.PrivateKey,
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := godotenv.Write(env, output); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "VAPID keys written to %s\n", output)
		return nil
	}

	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode keys: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), content)
	return nil
}
