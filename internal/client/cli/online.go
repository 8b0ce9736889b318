package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/client/client"
	"github.com/dmitrijs2005/gophqms/internal/client/models"
	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *options) *cobra.Command {
	var userName string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the access token in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), false, func(d *deps) error {
				if userName == "" {
					var err error
					userName, err = promptLine(cmd, "User name")
					if err != nil {
						return err
					}
				}
				password, err := promptPassword(cmd, "Password")
				if err != nil {
					return err
				}
				if err := d.session.Login(cmd.Context(), d.cfg.ServerURL, userName, password); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged in to %s as %s\n", d.cfg.ServerURL, userName)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&userName, "user", "u", "", "login name")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), false, func(d *deps) error {
				return d.session.Logout(cmd.Context())
			})
		},
	}
}

func newRecordCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Fetch and sign record payloads",
	}
	cmd.AddCommand(newRecordCanonicalCmd(opts), newRecordSignCmd(opts))
	return cmd
}

func newRecordCanonicalCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "canonical TYPE ID",
		Short: "Fetch the canonical payload of a record",
		Long:  "Prints the payload as JSON, or saves it with --out for signing later without a connection.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), true, func(d *deps) error {
				p, err := d.api.Canonical(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(p, "", "  ")
				if err != nil {
					return err
				}
				if out == "" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
					return err
				}
				return os.WriteFile(out, append(b, '\n'), 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the payload to this file")
	return cmd
}

func newRecordSignCmd(opts *options) *cobra.Command {
	var (
		keyPath     string
		payloadPath string
		requestID   string
	)

	cmd := &cobra.Command{
		Use:   "sign TYPE ID",
		Short: "Sign a record's canonical payload into the journal",
		Long: "Fetches the payload (or reads it from --payload), signs it with --key and stores " +
			"the signature as PENDING. Run 'qmsctl submit' to deliver it.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(keyPath)
			if err != nil {
				return err
			}

			if payloadPath != "" {
				p, err := readPayload(payloadPath, args[0], args[1])
				if err != nil {
					return err
				}
				return opts.withDeps(cmd.Context(), false, func(d *deps) error {
					e, err := d.signer.SignPayload(cmd.Context(), p, requestID, key)
					if err != nil {
						return err
					}
					return printSigned(cmd.OutOrStdout(), e)
				})
			}

			return opts.withDeps(cmd.Context(), true, func(d *deps) error {
				e, err := d.signer.Sign(cmd.Context(), args[0], args[1], requestID, key)
				if err != nil {
					return err
				}
				return printSigned(cmd.OutOrStdout(), e)
			})
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "PEM private key (Ed25519 or P-256)")
	cmd.Flags().StringVar(&payloadPath, "payload", "", "payload saved by 'qmsctl record canonical --out'")
	cmd.Flags().StringVar(&requestID, "request", "", "correlation id of the signature request being answered")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func readPayload(path, entityType, entityID string) (*client.CanonicalPayload, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &client.CanonicalPayload{}
	if err := json.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !strings.EqualFold(p.EntityType, entityType) || p.EntityID != entityID {
		return nil, fmt.Errorf("%s holds %s/%s, not %s/%s", path, p.EntityType, p.EntityID, entityType, entityID)
	}
	return p, nil
}

func printSigned(w io.Writer, e *models.JournalEntry) error {
	_, err := fmt.Fprintf(w, "signed %s/%s version %d hash %s\njournal entry %s (%s)\n",
		e.EntityType, e.EntityID, e.RecordVersion, e.QMSHash, e.ID, e.Status)
	return err
}

func newSubmitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Deliver PENDING journal entries to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), true, func(d *deps) error {
				report, err := d.signer.Submit(cmd.Context())
				if report != nil {
					w := cmd.OutOrStdout()
					for _, e := range report.Submitted {
						fmt.Fprintf(w, "%s/%s: artifact %s %s\n", e.EntityType, e.EntityID, deref(e.ArtifactID), deref(e.Verification))
					}
					for _, e := range report.Rejected {
						fmt.Fprintf(w, "%s/%s: rejected: %s\n", e.EntityType, e.EntityID, deref(e.LastError))
					}
					fmt.Fprintf(w, "%d submitted, %d rejected, %d still pending\n",
						len(report.Submitted), len(report.Rejected), report.Remaining)
				}
				return err
			})
		},
	}
}

func newJournalCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local signature journal",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), false, func(d *deps) error {
				entries, err := d.signer.Journal(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "journal is empty")
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tRECORD\tVERSION\tSIGNED\tSTATUS\tRESULT")
				for _, e := range entries {
					result := deref(e.Verification)
					if e.Status != models.JournalSubmitted {
						result = deref(e.LastError)
					}
					fmt.Fprintf(tw, "%s\t%s/%s\t%d\t%s\t%s\t%s\n", e.ID, e.EntityType, e.EntityID,
						e.RecordVersion, e.SignedAt.Format(time.RFC3339), e.Status, result)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries, 0 for all")
	cmd.AddCommand(list)
	return cmd
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status TYPE ID",
		Short: "Show whether a record's latest signature still verifies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), true, func(d *deps) error {
				st, err := d.api.ApprovalStatus(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "record:       %s/%s\n", st.EntityType, st.EntityID)
				fmt.Fprintf(w, "current hash: %s\n", st.CurrentHash)
				if st.Artifact == nil || st.Verification == nil {
					_, err := fmt.Fprintln(w, "artifact:     none")
					return err
				}
				fmt.Fprintf(w, "artifact:     %s (signed hash %s)\n", st.Artifact.ID, st.Artifact.QMSHash)
				fmt.Fprintf(w, "verification: %s", st.Verification.Status)
				if st.Verification.Reason != "" {
					fmt.Fprintf(w, " (%s)", st.Verification.Reason)
				}
				_, err = fmt.Fprintln(w)
				return err
			})
		},
	}
}

func newEsignCmd(opts *options) *cobra.Command {
	var meaning, reason string

	cmd := &cobra.Command{
		Use:   "esign TYPE ID",
		Short: "Apply a password-confirmed electronic signature",
		Long:  "The signature drives the record to the state its meaning implies. The password is re-checked by the server.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), true, func(d *deps) error {
				password, err := promptPassword(cmd, "Password to sign "+strings.ToUpper(meaning))
				if err != nil {
					return err
				}
				defer common.WipeByteArray(password)

				res, err := d.api.Esign(cmd.Context(), args[0], args[1], client.EsignRequest{
					Meaning:  strings.ToUpper(meaning),
					Password: string(password),
					Reason:   reason,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s signature %s: %s -> %s (record %s version %d)\n",
					res.Signature.Meaning, res.Signature.ID, res.Signature.PriorState, res.Signature.TargetState,
					res.Record.RecordNumber, res.Record.RecordVersion)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&meaning, "meaning", "m", "", "signature meaning, e.g. APPROVAL or CLOSURE")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "free-text reason recorded with the signature")
	_ = cmd.MarkFlagRequired("meaning")
	return cmd
}

func newAttachCmd(opts *options) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "attach TYPE ID FILE",
		Short: "Attach a file to a record and upload its content",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd.Context(), true, func(d *deps) error {
				a, uploaded, err := d.evidence.Attach(cmd.Context(), args[0], args[1], strings.ToUpper(kind), args[2])
				if err != nil {
					return err
				}
				state := "metadata only, object storage is disabled on the server"
				if uploaded {
					state = "uploaded to " + a.StorageKey
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "attachment %s (%s): %s\n", a.ID, a.Kind, state)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "EVIDENCE", "attachment kind")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
