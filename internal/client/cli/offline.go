package cli

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophqms/internal/canon"
	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/filex"
	"github.com/dmitrijs2005/gophqms/internal/signature"
	"github.com/spf13/cobra"
)

// readInput returns the named file, or stdin for no argument or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

// canonicalize re-encodes one JSON document in canonical form. Numbers are
// kept as written so large integers survive.
func canonicalize(b []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON: trailing data after document")
	}
	return canon.Marshal(v)
}

func newCanonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canon [file]",
		Short: "Print the canonical encoding of a JSON document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out, err := canonicalize(in)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newHashCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the SHA-256 content hash of a JSON document",
		Long: "Canonicalizes the document and prints the lowercase hex SHA-256 of the result. " +
			"With --raw the input bytes are hashed as they are.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if !raw {
				if in, err = canonicalize(in); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest.Digest(in))
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "hash the input bytes without canonicalizing")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var (
		out   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair",
		Long: "Writes the private key to <out>.pem (mode 0600) and the public key to <out>.pub.pem. " +
			"The public key is what the server is configured with.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := signature.GenerateEd25519()
			if err != nil {
				return err
			}
			if err := filex.WritePrivateFile(out+".pem", priv, force); err != nil {
				return err
			}
			if err := os.WriteFile(out+".pub.pem", pub, 0o644); err != nil {
				return err
			}
			kc, err := signature.ParsePublicKeyPEM(pub)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "private key: %s.pem\n", out)
			fmt.Fprintf(w, "public key:  %s.pub.pem\n", out)
			fmt.Fprintf(w, "fingerprint: %s\n", kc.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "qms-signer", "output path prefix")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing private key")
	return cmd
}

func loadKey(path string) (crypto.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return signature.ParsePrivateKeyPEM(b)
}

func newSignCmd() *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Sign bytes with a private key and print the base64 signature",
		Long: "Signs the input exactly as given, so feed it the canonical payload " +
			"(e.g. the output of 'qmsctl canon').",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(keyPath)
			if err != nil {
				return err
			}
			msg, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			sig, err := signature.Sign(key, msg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(sig))
			return err
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "PEM private key (Ed25519 or P-256)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
