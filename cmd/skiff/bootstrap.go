package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/UnfoldDataScience/skiff/internal/config"
	"github.com/UnfoldDataScience/skiff/internal/provision"
	"github.com/UnfoldDataScience/skiff/internal/transport"
)

// bootstrapCmd provisions a deployed tree: virtualenv, dependencies, a
// placeholder .env, and optionally an app restart.
func bootstrapCmd() *cobra.Command {
	var (
		identityFile string
		sshPort      int
		pythonBin    string
		requirements string
		appEntry     string
		appPort      int
		startApp     bool
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "bootstrap [flags] <[user@]host[:path]>",
		Short: "Prepare a deployed tree for serving (venv, pip install, .env)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := transport.ParseLocation(args[0])
			if !loc.IsRemote() {
				return errors.New("bootstrap requires a remote destination")
			}

			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyBootstrapDefaults(cmd, cfg, &identityFile, &sshPort, &pythonBin, &requirements, &appEntry, &appPort)

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
			slog.SetDefault(logger)

			// Credentials resolve before anything touches the network.
			var signer ssh.Signer
			if identityFile != "" {
				s, keyErr := transport.ResolveKey(identityFile)
				if keyErr != nil {
					return fmt.Errorf("resolve identity: %w", keyErr)
				}
				signer = s
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := transport.DialSSH(loc.Host, loc.User, transport.SSHOpts{
				Port:    sshPort,
				KeyFile: identityFile,
				Signer:  signer,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			// Seed the environment file over SFTP before the app starts.
			sftpT, err := transport.NewSFTPTransport(client, loc.Path, transport.Options{})
			if err != nil {
				return err
			}
			// The deferred client.Close tears down the SFTP session too.
			created, err := provision.EnsureEnvFile(sftpT)
			if err != nil {
				return err
			}
			if created {
				logger.Info("created placeholder .env, fill in credentials before starting the app",
					"path", loc.Path+"/"+provision.EnvFileName)
			}

			script, err := provision.Script(provision.Params{
				RemotePath:   loc.Path,
				Python:       pythonBin,
				Requirements: requirements,
				AppEntry:     appEntry,
				AppPort:      appPort,
				Start:        startApp && !created,
			})
			if err != nil {
				return err
			}
			if startApp && created {
				logger.Warn("skipping app start: .env was just created and has no credentials yet")
			}

			runner := provision.NewRunner(client, logger)
			if err := runner.RunScript(ctx, script); err != nil {
				return err
			}

			logger.Info("bootstrap complete", "host", loc.Host, "path", loc.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&identityFile, "identity", "i", "", "SSH private key file (like ssh -i)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	cmd.Flags().StringVar(&pythonBin, "python", provision.DefaultPython, "python binary on the remote host")
	cmd.Flags().StringVar(&requirements, "requirements", provision.DefaultRequirements, "requirements file relative to the remote path")
	cmd.Flags().StringVar(&appEntry, "app-entry", provision.DefaultAppEntry, "streamlit entrypoint relative to the remote path")
	cmd.Flags().IntVar(&appPort, "app-port", provision.DefaultAppPort, "port the app serves on")
	cmd.Flags().BoolVar(&startApp, "start", false, "restart the app after installing dependencies")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	return cmd
}

func applyBootstrapDefaults(
	cmd *cobra.Command,
	cfg config.Config,
	identity *string,
	port *int,
	python *string,
	requirements *string,
	appEntry *string,
	appPort *int,
) {
	if !cmd.Flags().Changed("identity") && cfg.Defaults.Identity != nil {
		*identity = *cfg.Defaults.Identity
	}
	if !cmd.Flags().Changed("ssh-port") && cfg.Defaults.Port != nil {
		*port = *cfg.Defaults.Port
	}
	if !cmd.Flags().Changed("python") && cfg.Bootstrap.Python != nil {
		*python = *cfg.Bootstrap.Python
	}
	if !cmd.Flags().Changed("requirements") && cfg.Bootstrap.Requirements != nil {
		*requirements = *cfg.Bootstrap.Requirements
	}
	if !cmd.Flags().Changed("app-entry") && cfg.Bootstrap.AppEntry != nil {
		*appEntry = *cfg.Bootstrap.AppEntry
	}
	if !cmd.Flags().Changed("app-port") && cfg.Bootstrap.AppPort != nil {
		*appPort = *cfg.Bootstrap.AppPort
	}
}
