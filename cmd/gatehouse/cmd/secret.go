package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

// secretBytes is the raw entropy for a generated signing secret. Base64
// expands it past the 64-byte minimum the token layer enforces.
const secretBytes = 64

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a signing secret suitable for GATEHOUSE_SIGNING_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		buf := make([]byte, secretBytes)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("gathering entropy: %w", err)
		}
		fmt.Println(base64.RawStdEncoding.EncodeToString(buf))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretCmd)
}
