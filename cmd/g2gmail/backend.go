package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"g2gmail/internal/config"
	"g2gmail/internal/controller"
	"g2gmail/internal/credential"
	"g2gmail/internal/gmail"
	"g2gmail/internal/imap"
	"g2gmail/internal/mbox"
	"g2gmail/internal/store"
)

type backend struct {
	mailbox controller.Mailbox
	auth    controller.Auth
	close   func() error
}

func noClose() error { return nil }

// openTokenStore returns the configured OAuth token store.
func openTokenStore(cfg *config.Config) (gmail.TokenStore, func() error, error) {
	switch cfg.Auth.TokenStore {
	case config.TokenStoreKeyring:
		ring, err := credential.Open(config.DefaultDir())
		if err != nil {
			return nil, nil, err
		}
		return credential.NewTokenStore(ring), noClose, nil
	default:
		db, err := store.NewSQLiteStore(cfg.Auth.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open token database: %w", err)
		}
		return db, db.Close, nil
	}
}

func openGmailAuth(cfg *config.Config, logger *slog.Logger) (*gmail.Authenticator, func() error, error) {
	oauthCfg, err := gmail.LoadConfig(cfg.Gmail.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}
	ts, closeStore, err := openTokenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return gmail.NewAuthenticator(oauthCfg, ts, logger.With("component", "auth")), closeStore, nil
}

func imapOptions(cfg *config.Config) imap.Options {
	return imap.Options{
		Host:               cfg.IMAP.Host,
		Port:               cfg.IMAP.Port,
		Username:           cfg.IMAP.Username,
		UseTLS:             cfg.IMAP.TLS,
		StartTLS:           cfg.IMAP.StartTLS,
		InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	log := logger.With("component", "mailbox", "source", cfg.Source)
	switch cfg.Source {
	case config.SourceIMAP:
		ring, err := credential.Open(config.DefaultDir())
		if err != nil {
			return nil, err
		}
		key := credential.IMAPKey(cfg.IMAP.Username)
		client, err := imap.New(imapOptions(cfg), func() (string, error) { return ring.Get(key) }, log)
		if err != nil {
			return nil, err
		}
		return &backend{mailbox: client, auth: client, close: noClose}, nil

	case config.SourceMbox:
		src, err := mbox.New(cfg.Mbox.Path, log)
		if err != nil {
			return nil, err
		}
		return &backend{mailbox: src, auth: src, close: noClose}, nil

	default:
		auth, closeStore, err := openGmailAuth(cfg, logger)
		if err != nil {
			return nil, err
		}
		client, err := gmail.NewClient(ctx, auth, log)
		if err != nil {
			_ = closeStore()
			return nil, err
		}
		return &backend{mailbox: client, auth: auth, close: closeStore}, nil
	}
}

func runLogin(cmd *cobra.Command) error {
	cfg, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch cfg.Source {
	case config.SourceMbox:
		fmt.Fprintln(out, "The mbox source needs no login.")
		return nil

	case config.SourceIMAP:
		var password string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("IMAP password for %s@%s", cfg.IMAP.Username, cfg.IMAP.Host)).
					EchoMode(huh.EchoModePassword).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("password is required")
						}
						return nil
					}).
					Value(&password),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("password prompt: %w", err)
		}

		client, err := imap.New(imapOptions(cfg), func() (string, error) { return password, nil }, logger)
		if err != nil {
			return err
		}
		labels, err := client.ListLabels(ctx)
		if err != nil {
			return fmt.Errorf("verify imap login: %w", err)
		}
		ring, err := credential.Open(config.DefaultDir())
		if err != nil {
			return err
		}
		if err := ring.Set(credential.IMAPKey(cfg.IMAP.Username), password); err != nil {
			return err
		}
		fmt.Fprintf(out, "Signed in to %s (%d mailboxes).\n", cfg.IMAP.Host, len(labels))
		return nil

	default:
		auth, closeStore, err := openGmailAuth(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()
		if err := auth.Login(ctx, os.Stdin, out); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		logger.Info("gmail login complete")
		return nil
	}
}

func runLogout(cmd *cobra.Command) error {
	cfg, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()
	out := cmd.OutOrStdout()

	switch cfg.Source {
	case config.SourceMbox:
		fmt.Fprintln(out, "The mbox source stores no credentials.")
		return nil

	case config.SourceIMAP:
		ring, err := credential.Open(config.DefaultDir())
		if err != nil {
			return err
		}
		if err := ring.Delete(credential.IMAPKey(cfg.IMAP.Username)); err != nil {
			return err
		}

	default:
		ts, closeStore, err := openTokenStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()
		if err := gmail.NewAuthenticator(nil, ts, logger).Logout(cmd.Context()); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
	}
	logger.Info("credentials removed", "source", cfg.Source)
	fmt.Fprintln(out, "Signed out.")
	return nil
}
