package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophqms/internal/client/client"
	"github.com/dmitrijs2005/gophqms/internal/client/config"
	"github.com/dmitrijs2005/gophqms/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophqms/internal/client/services"
	"github.com/dmitrijs2005/gophqms/internal/filex"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	serverURL  string
	journal    string
	lookup     func(string) (string, bool)
}

// NewRootCmd builds the qmsctl command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, os.LookupEnv)
}

func newRootCmd(version string, lookup func(string) (string, bool)) *cobra.Command {
	opts := &options{lookup: lookup}

	root := &cobra.Command{
		Use:           "qmsctl",
		Short:         "Sign, submit and inspect QMS record approvals",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (JSON or YAML)")
	pf.StringVar(&opts.serverURL, "server", "", "QMS server URL, overrides config and session")
	pf.StringVar(&opts.journal, "journal", "", "journal database path, overrides config")

	root.AddCommand(
		newCanonCmd(),
		newHashCmd(),
		newKeygenCmd(),
		newSignCmd(),
		newTokenCmd(lookup),
		newActorCmd(lookup),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newRecordCmd(opts),
		newSubmitCmd(opts),
		newJournalCmd(opts),
		newStatusCmd(opts),
		newEsignCmd(opts),
		newAttachCmd(opts),
	)
	return root
}

// deps is what online commands get handed. It lives for one invocation.
type deps struct {
	cfg      *config.Config
	api      *client.HTTPClient
	repos    *client.Repositories
	session  *services.SessionService
	signer   *services.SignerService
	evidence *services.EvidenceService
}

// withDeps opens the journal and builds the services. With requireSession
// the stored token is loaded first and a missing one is an error. The server
// of the stored session is used unless --server is given.
func (o *options) withDeps(ctx context.Context, requireSession bool, fn func(*deps) error) error {
	cfg, err := config.Load(o.configPath, o.lookup)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.journal != "" {
		cfg.JournalPath = o.journal
	}

	if _, err := filex.EnsureDir(filepath.Dir(cfg.JournalPath)); err != nil {
		return err
	}
	db, err := client.InitDatabase(ctx, cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer db.Close()

	repos := client.NewRepositories(db)
	if err := o.resolveServerURL(ctx, cfg, repos.Metadata, requireSession); err != nil {
		return err
	}

	api := client.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
	d := &deps{
		cfg:      cfg,
		api:      api,
		repos:    repos,
		session:  services.NewSessionService(api, repos.Metadata),
		signer:   services.NewSignerService(api, repos.Journal),
		evidence: services.NewEvidenceService(api, &http.Client{Timeout: cfg.RequestTimeout}),
	}

	if requireSession {
		if _, err := d.session.Restore(ctx); err != nil {
			if errors.Is(err, client.ErrNotLoggedIn) {
				return fmt.Errorf("%w: run 'qmsctl login' first", err)
			}
			return err
		}
	}

	err = fn(d)
	if errors.Is(err, client.ErrUnauthorized) && requireSession {
		return fmt.Errorf("%w: the session may have expired, run 'qmsctl login'", err)
	}
	return err
}

func (o *options) resolveServerURL(ctx context.Context, cfg *config.Config, meta metadata.Repository, useSession bool) error {
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
		return nil
	}
	if !useSession {
		return nil
	}
	url, ok, err := meta.Get(ctx, metadata.KeyServerURL)
	if err != nil {
		return err
	}
	if ok && url != "" {
		cfg.ServerURL = url
	}
	return nil
}
