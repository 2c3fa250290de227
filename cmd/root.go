// Package cmd provides the sitewright command line.
//
// Settings come from, highest priority first: command line flags,
// SITEWRIGHT_ environment variables (SITEWRIGHT_SERVER_PORT and so on), the
// settings file named by --settings or sitewright.yaml in the working
// directory, and built-in defaults.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/sitewright/internal/commands"
	"github.com/conneroisu/sitewright/internal/config"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/services"
	"github.com/conneroisu/sitewright/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrErrorsLogged is returned when the run logged at least one error. The
// errors themselves were already printed.
var ErrErrorsLogged = errors.New("errors were logged")

type rootOptions struct {
	clean    bool
	build    stepsValue
	rebuild  bool
	serve    bool
	watch    bool
	port     int
	viewdop  int
	log      string
	settings string
	gen      string
}

// NewRootCommand creates the sitewright command.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sitewright [flags] [-- files...]",
		Short: "Build a static website from views, partials and assets",
		Long: `sitewright builds a static website. Views are run through the processors
their directory configuration maps them to, wrapped in layouts from the
partials directory and written to the website directory. Content, scripts
and images are copied as they are.

Examples:
  sitewright --rebuild                  Clean and build everything
  sitewright --build=content,views      Build some steps
  sitewright --build=npm:build          Run an npm script
  sitewright --serve --watch            Serve with live reload
  sitewright -- views/index.md          Build single files
  sitewright --gen=sitewright.yaml      Write a starter settings file`,
		Version:      version.GetShortVersion(),
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.clean, "clean", false, "Empty the website directory")
	flags.Var(&opts.build, "build", "Build steps: npm, npm:<script>, node:<file>, content, scripts, images, views (bare --build uses the configured steps)")
	flags.Lookup("build").NoOptDefVal = defaultSteps
	flags.BoolVar(&opts.rebuild, "rebuild", false, "Clean, then build every step")
	flags.BoolVar(&opts.serve, "serve", false, "Serve the website directory")
	flags.BoolVar(&opts.watch, "watch", false, "Rebuild on change (requires --serve)")
	flags.IntVar(&opts.port, "port", 0, "Port to serve on (default from settings, 8080)")
	flags.IntVar(&opts.viewdop, "viewdop", 0, "Views processed in parallel (default 2 x CPUs)")
	flags.StringVar(&opts.log, "log", "normal", "Log verbosity: quiet, normal or verbose")
	flags.StringVar(&opts.settings, "settings", "", "Settings file (default sitewright.yaml)")
	flags.StringVar(&opts.gen, "gen", "", "Write a starter settings file and exit")

	AddFlagValidation(cmd, "port", ValidatePort)
	AddFlagValidation(cmd, "viewdop", ValidateViewDOP)
	AddFlagValidation(cmd, "log", ValidateLogLevel)

	// Bad flag values print help, then fail.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintf(c.ErrOrStderr(), "%v\n\n", err)
		_ = c.Usage()
		c.SilenceErrors = true
		return err
	})

	cmd.AddCommand(newVersionCommand())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func run(cmd *cobra.Command, opts *rootOptions, args []string) error {
	if opts.gen != "" {
		if err := config.WriteStarter(opts.gen); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.gen)
		return nil
	}

	files, err := fileArgs(cmd, args)
	if err != nil {
		return err
	}

	v, err := config.NewViper(opts.settings)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	settings, err := config.Load(v)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(settings.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:      level,
		Format:     settings.Logging.Format,
		Output:     cmd.ErrOrStderr(),
		File:       settings.Logging.File,
		MaxSizeMB:  10,
		MaxBackups: 3,
	})
	defer logger.Close()

	hostOpts := services.Options{
		Logger: logger,
		Usage: func(reason string) {
			if reason != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n\n", reason)
			}
			_ = cmd.Usage()
		},
	}
	if opts.serve {
		hostOpts.Registry = prometheus.NewRegistry()
	}
	host, err := services.New(settings, hostOpts)
	if err != nil {
		return err
	}

	req := commands.Request{
		Clean:    opts.clean,
		Rebuild:  opts.rebuild,
		Build:    opts.build.steps,
		BuildSet: opts.build.set,
		Serve:    opts.serve,
		Watch:    opts.watch,
		Port:     settings.Server.Port,
		Files:    files,
	}
	if req.BuildSet && len(req.Build) == 0 {
		req.Build = settings.Build.Steps
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := host.Run(ctx, req)
	host.Wait(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if logger.Errors().HasErrors() {
		cmd.SilenceErrors = true
		return ErrErrorsLogged
	}
	return nil
}

// fileArgs returns the literal file list, which must follow "--".
func fileArgs(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	dash := cmd.ArgsLenAtDash()
	if dash != 0 {
		return nil, fmt.Errorf("unexpected argument %q: put file names after --", args[0])
	}
	return args, nil
}

// bindFlags lets explicitly given flags override settings.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	bindings := map[string]string{
		"port":    "server.port",
		"viewdop": "build.viewdop",
		"log":     "logging.level",
	}
	for flagName, key := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
