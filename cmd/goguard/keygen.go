package main

import (
	"crypto/rsa"
	"errors"
	"io/fs"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goGuard/jwt"
)

type keygenConfig struct {
	out   string
	bits  int
	force bool
}

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	cfg := &keygenConfig{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA signing key",
		Long: `Writes a PKCS#8 PEM encoded RSA private key with 0600 permissions.
Point key.file at the result to sign tokens with it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.out, "out", "goguard.pem", "output path")
	cmd.Flags().IntVar(&cfg.bits, "bits", jwt.DefaultKeyBits, "RSA modulus size")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite an existing file")

	return cmd
}

func runKeygen(cmd *cobra.Command, cfg *keygenConfig) error {
	if !cfg.force {
		if _, err := os.Stat(cfg.out); err == nil {
			return oops.Code("KEY_EXISTS").With("path", cfg.out).Errorf("%s already exists; use --force to overwrite", cfg.out)
		}
	}

	key, err := jwt.GenerateKey(cfg.bits)
	if err != nil {
		return oops.Code("KEY_INVALID").With("bits", cfg.bits).Wrap(err)
	}
	encoded, err := jwt.EncodePrivateKeyPEM(key)
	if err != nil {
		return oops.Code("KEY_INVALID").Wrap(err)
	}
	if err := os.WriteFile(cfg.out, encoded, 0o600); err != nil {
		return oops.Code("KEY_WRITE_FAILED").With("path", cfg.out).Wrap(err)
	}

	cmd.Printf("Wrote %d-bit RSA key to %s\n", cfg.bits, cfg.out)
	return nil
}

func readKeyFile(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("signing key %s not found; run goguard keygen or set key.generate", path)
	}
	if err != nil {
		return nil, err
	}
	return jwt.ParsePrivateKeyPEM(data)
}
