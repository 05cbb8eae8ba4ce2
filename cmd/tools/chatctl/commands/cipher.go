package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/penpal/backend/internal/crypto"
)

func cipherFromFlags(secret, scheme string) (*crypto.Cipher, error) {
	if secret == "" {
		secret = os.Getenv("MESSAGE_SECRET_KEY")
	}
	if scheme == "" {
		scheme = os.Getenv("MESSAGE_CIPHER")
	}
	s, err := crypto.ParseScheme(scheme)
	if err != nil {
		return nil, err
	}
	return crypto.New(secret, s)
}

// encrypt <text>: print the stored form of text.
func encryptCmd() *cobra.Command {
	var secret, scheme string
	cmd := &cobra.Command{
		Use:   "encrypt <text>",
		Short: "Encrypt text the way messages are stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipherFromFlags(secret, scheme)
			if err != nil {
				return err
			}
			out, err := c.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "message secret (default $MESSAGE_SECRET_KEY)")
	cmd.Flags().StringVar(&scheme, "scheme", "", "cryptojs or xchacha (default $MESSAGE_CIPHER)")
	return cmd
}

// decrypt <ciphertext>: print the plaintext of a stored message.
func decryptCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "decrypt <ciphertext>",
		Short: "Decrypt a stored message text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cipherFromFlags(secret, "")
			if err != nil {
				return err
			}
			out, err := c.Decrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "message secret (default $MESSAGE_SECRET_KEY)")
	return cmd
}
