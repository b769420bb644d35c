package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh"

	"github.com/UnfoldDataScience/skiff/internal/config"
	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/filter"
	"github.com/UnfoldDataScience/skiff/internal/stage"
	"github.com/UnfoldDataScience/skiff/internal/stats"
	"github.com/UnfoldDataScience/skiff/internal/syncer"
	"github.com/UnfoldDataScience/skiff/internal/transport"
	"github.com/UnfoldDataScience/skiff/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: main CLI entry point orchestrates all flag parsing and mode selection
func run() int {
	var (
		verbose           bool
		quiet             bool
		dryRun            bool
		cleanFlag         bool
		verifyFlag        bool
		useIOURing        bool
		noProgress        bool
		showVersion       bool
		noDefaultExcludes bool
		filterFile        string
		gitignoreFlag     bool
		minSizeStr        string
		maxSizeStr        string
		identityFile      string
		sshPort           int
		remotePath        string
		bwLimitStr        string
		logFile           string
	)

	chain := filter.NewChain()

	rootCmd := &cobra.Command{
		Use:   "skiff [flags] <source-dir> <[user@]host[:path] | local-dir>",
		Short: "Deploy a local application tree to a remote host over SFTP",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "skiff %s\n", version)
				return nil
			}

			srcRoot := args[0]
			dstLoc := transport.ParseLocation(args[1])

			// Load optional config file.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults, &verifyFlag, &cleanFlag, &useIOURing,
				&identityFile, &sshPort, &remotePath, &bwLimitStr)
			// CLI rules were appended during flag parsing, so config and
			// default excludes land after them and lose ties.
			for _, pat := range cfg.Defaults.Excludes {
				if err := chain.AddExclude(pat); err != nil {
					return fmt.Errorf("config exclude %q: %w", pat, err)
				}
			}
			if !noDefaultExcludes {
				for _, pat := range filter.DefaultExcludes {
					if err := chain.AddExclude(pat); err != nil {
						return fmt.Errorf("default exclude %q: %w", pat, err)
					}
				}
			}

			// An explicit --remote-path always wins; a config default only
			// fills in when the destination argument carried no path.
			if cmd.Flags().Changed("remote-path") && dstLoc.IsRemote() {
				dstLoc.Path = remotePath
			} else {
				dstLoc.ApplyDefaultPath(remotePath)
			}

			if dstLoc.IsRemote() && identityFile == "" {
				return errors.New("remote destination requires an identity file (-i or defaults.identity in config)")
			}

			// Configure logging.
			logger, closeLog, err := buildLogger(verbose, quiet, logFile)
			if err != nil {
				return err
			}
			defer closeLog()
			slog.SetDefault(logger)

			if dryRun {
				slog.Info("dry run mode")
			}

			// Load filter file if specified.
			if filterFile != "" {
				if err := chain.LoadFile(filterFile); err != nil {
					return fmt.Errorf("load filter file: %w", err)
				}
			}

			// Honor the project's .gitignore when asked.
			if gitignoreFlag {
				ig, igErr := ignore.CompileIgnoreFile(srcRoot + "/.gitignore")
				if igErr != nil {
					slog.Warn("no usable .gitignore", "error", igErr)
				} else {
					chain.SetGitignore(ig)
				}
			}

			// Parse size filters.
			if minSizeStr != "" {
				n, err := filter.ParseSize(minSizeStr)
				if err != nil {
					return fmt.Errorf("invalid --min-size: %w", err)
				}
				chain.SetMinSize(n)
			}
			if maxSizeStr != "" {
				n, err := filter.ParseSize(maxSizeStr)
				if err != nil {
					return fmt.Errorf("invalid --max-size: %w", err)
				}
				chain.SetMaxSize(n)
			}

			// Parse bandwidth limit.
			var bwLimit int64
			if bwLimitStr != "" {
				bwLimit, err = filter.ParseSize(bwLimitStr)
				if err != nil {
					return fmt.Errorf("invalid --bwlimit: %w", err)
				}
			}

			// Set up context with signal handling. A second signal after
			// cancellation still sweeps scratch dirs on the way out.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			defer stage.CleanupScratchDirs()

			collector := stats.NewCollector()
			events := make(chan event.Event, 256)
			presenterEvents := teeEventLog(events, logFile != "")

			isTTY := ui.IsTTY(os.Stderr.Fd())
			presenter := ui.NewPresenter(ui.Config{
				Writer:     os.Stdout,
				ErrWriter:  os.Stderr,
				IsTTY:      isTTY,
				Quiet:      quiet,
				Verbose:    verbose,
				NoProgress: noProgress,
				Stats:      collector,
			})

			// Fail-fast credential resolution for remote destinations.
			var signer ssh.Signer
			var auth func() error
			if dstLoc.IsRemote() && identityFile != "" {
				auth = func() error {
					var keyErr error
					signer, keyErr = transport.ResolveKey(identityFile)
					return keyErr
				}
			}

			tOpts := transport.Options{Events: events, Stats: collector}
			if bwLimit > 0 {
				tOpts.Limiter = transport.NewBWLimiter(bwLimit)
			}
			dial := func(context.Context) (transport.Transport, error) {
				return dialTransport(dstLoc, transport.SSHOpts{
					Port:    sshPort,
					KeyFile: identityFile,
					Signer:  signer,
				}, tOpts)
			}

			syncCfg := syncer.Config{
				Root:    srcRoot,
				Auth:    auth,
				Dial:    dial,
				DryRun:  dryRun,
				Clean:   cleanFlag,
				Verify:  verifyFlag,
				IOURing: useIOURing,
				Events:  events,
				Stats:   collector,
				Logger:  logger,
			}
			if !chain.Empty() {
				syncCfg.Matcher = chain
			}

			slog.Debug("starting deploy",
				"source", srcRoot,
				"destination", dstLoc.String(),
				"clean", cleanFlag,
				"verify", verifyFlag,
				"iouring", useIOURing,
			)

			var presenterWg sync.WaitGroup
			presenterWg.Add(1)
			go func() {
				defer presenterWg.Done()
				presenter.Run(presenterEvents)
			}()

			summary, runErr := syncer.Run(ctx, syncCfg)
			stop()
			close(events)
			presenterWg.Wait()

			if !quiet {
				if s := presenter.Summary(); s != "" {
					fmt.Fprintln(os.Stderr, s)
				}
			}

			if runErr != nil {
				slog.Error("deploy failed", "error", runErr)
				if collector.Snapshot().FilesTransferred > 0 {
					return &exitError{code: 1} // partial failure
				}
				return &exitError{code: 2} // total failure
			}

			if summary.DryRun {
				fmt.Fprintf(os.Stderr, "dry run: %s files, %s would be sent to %s\n",
					ui.FormatCount(summary.Files), ui.FormatBytes(summary.Bytes), dstLoc.String())
			}

			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deployed without sending")
	rootCmd.Flags().BoolVar(&cleanFlag, "clean", false, "remove the destination tree before deploying")
	rootCmd.Flags().BoolVar(&verifyFlag, "verify", false, "verify checksums after transfer (BLAKE3)")
	rootCmd.Flags().BoolVar(&useIOURing, "iouring", false, "use io_uring for staging copies (Linux only)")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress display")
	rootCmd.Flags().
		BoolVar(&noDefaultExcludes, "no-default-excludes", false, "start with an empty exclusion list")

	// Filter flags use a custom pflag.Value to preserve CLI ordering.
	rootCmd.Flags().
		VarP(&filterFlag{chain: chain, include: false}, "exclude", "", "exclude files matching PATTERN (repeatable)")
	rootCmd.Flags().
		VarP(&filterFlag{chain: chain, include: true}, "include", "", "include files matching PATTERN (repeatable)")
	rootCmd.Flags().StringVar(&filterFile, "filter", "", "read filter rules from FILE")
	rootCmd.Flags().BoolVar(&gitignoreFlag, "gitignore", false, "also exclude paths matched by the source .gitignore")
	rootCmd.Flags().
		StringVar(&minSizeStr, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	rootCmd.Flags().
		StringVar(&maxSizeStr, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")

	rootCmd.Flags().
		StringVarP(&identityFile, "identity", "i", "", "SSH private key file (like ssh -i)")
	rootCmd.Flags().IntVar(&sshPort, "ssh-port", 22, "SSH port")
	rootCmd.Flags().
		StringVar(&remotePath, "remote-path", "", "destination path on the remote host (default "+transport.DefaultRemotePath+")")
	rootCmd.Flags().
		StringVar(&bwLimitStr, "bwlimit", "", "bandwidth limit (e.g. 10M, 1G)")
	rootCmd.Flags().
		StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(bootstrapCmd())
	rootCmd.AddCommand(docsCmd)

	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "exclude" || f.Name == "include" {
			f.NoOptDefVal = ""
		}
	})

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	return 0
}

// dialTransport opens the transport matching the destination.
//
//nolint:ireturn // factory returns interface by design
func dialTransport(loc transport.Location, sshOpts transport.SSHOpts, opts transport.Options) (transport.Transport, error) {
	if !loc.IsRemote() {
		return transport.NewLocalTransport(loc.Path, opts), nil
	}
	client, err := transport.DialSSH(loc.Host, loc.User, sshOpts)
	if err != nil {
		return nil, err
	}
	t, err := transport.NewSFTPTransport(client, loc.Path, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return t, nil
}

// buildLogger sets up console logging, optionally teed to a JSON log file.
func buildLogger(verbose, quiet bool, logFile string) (*slog.Logger, func(), error) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	} else if !quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})

	var logHandler slog.Handler = textHandler
	closeLog := func() {}
	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	return slog.New(logHandler), closeLog, nil
}

// teeEventLog optionally routes events through a goroutine that writes
// structured records before forwarding to the presenter.
func teeEventLog(events chan event.Event, enabled bool) <-chan event.Event {
	if !enabled {
		return events
	}
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
				slog.Int64("size", ev.Size),
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelInfo, "skiff.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	verify *bool,
	clean *bool,
	iouring *bool,
	identity *string,
	port *int,
	remotePath *string,
	bwLimit *string,
) {
	if !cmd.Flags().Changed("verify") && defaults.Verify != nil {
		*verify = *defaults.Verify
	}
	if !cmd.Flags().Changed("clean") && defaults.Clean != nil {
		*clean = *defaults.Clean
	}
	if !cmd.Flags().Changed("iouring") && defaults.IOURing != nil {
		*iouring = *defaults.IOURing
	}
	if !cmd.Flags().Changed("identity") && defaults.Identity != nil {
		*identity = *defaults.Identity
	}
	if !cmd.Flags().Changed("ssh-port") && defaults.Port != nil {
		*port = *defaults.Port
	}
	if !cmd.Flags().Changed("remote-path") && defaults.RemotePath != nil {
		*remotePath = *defaults.RemotePath
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		*bwLimit = *defaults.BWLimit
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
