package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitCodeError carries an exit code for cases where the output has
// already been printed (status of a stopped service exits 1).
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// StatusFlags holds status command flags.
type StatusFlags struct {
	JSON bool
}

// LogsFlags holds logs command flags.
type LogsFlags struct {
	Lines   int
	Monitor bool
}

// HistoryFlags holds history command flags.
type HistoryFlags struct {
	Limit int
	JSON  bool
}

// ServeFlags holds serve command flags.
type ServeFlags struct {
	Daemonize bool
	LogFile   string
	StopChild bool
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	wardenCommand := &command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(wardenCommand),
		createStopCommand(wardenCommand),
		createRestartCommand(wardenCommand),
		createStatusCommand(wardenCommand),
		createLogsCommand(wardenCommand),
		createHistoryCommand(wardenCommand),
		createServeCommand(wardenCommand),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "warden",
		Short: "Single-service supervisor",
		Long: `Warden supervises one long-running service: it starts it, watches it,
restarts it when it dies, and keeps dated logs.

Examples:
  warden start                       # Start the configured service
  warden status                      # Show whether it is running (exit 1 if not)
  warden serve                       # Run the supervising daemon with watchdog and API
  warden stop --api-url=http://remote:8420/api`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "warden.toml", "path to TOML config file")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default derived from config [server])")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "request timeout for daemon calls")
	return root
}

func createStartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the service",
		Long: `Start the configured service. Fails when it is already running or when
the process dies within the start grace period. Goes through the daemon
when one is reachable, otherwise operates directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(cmd.Context())
		},
	}
}

func createStopCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the service",
		Long: `Stop the service with SIGTERM, escalating to SIGKILL after the stop
grace period. Fails when nothing is running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(cmd.Context())
		},
	}
}

func createRestartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the service",
		Long:  "Stop the service if it is running, then start it again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(cmd.Context())
		},
	}
}

func createStatusCommand(c *command) *cobra.Command {
	statusFlags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		Long:  "Print the service status. Exits 0 when running, 1 when not.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), *statusFlags)
		},
	}
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print status as JSON")
	return cmd
}

func createLogsCommand(c *command) *cobra.Command {
	logsFlags := &LogsFlags{}
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent service log output",
		Long: `Print the tail of the current dated service log, or of monitor.log
with --monitor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logs(cmd.Context(), *logsFlags)
		},
	}
	cmd.Flags().IntVarP(&logsFlags.Lines, "lines", "n", 50, "number of lines to print")
	cmd.Flags().BoolVar(&logsFlags.Monitor, "monitor", false, "show the supervision activity log instead")
	return cmd
}

func createHistoryCommand(c *command) *cobra.Command {
	historyFlags := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded lifecycle events",
		Long:  "Print the newest lifecycle events from the history store, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(cmd.Context(), *historyFlags)
		},
	}
	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "maximum number of events")
	cmd.Flags().BoolVar(&historyFlags.JSON, "json", false, "print events as JSON")
	return cmd
}

func createServeCommand(c *command) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervising daemon",
		Long: `Run the daemon: starts the service, keeps it alive with the watchdog,
and serves the control API.

Examples:
  warden serve --config=warden.toml
  warden serve --daemonize          # background; daemon pidfile from [server].pidfile
  warden serve --stop-child         # also stop the service on daemon shutdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(*serveFlags)
		},
	}
	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon output to file when daemonized")
	cmd.Flags().BoolVar(&serveFlags.StopChild, "stop-child", false, "stop the supervised service when the daemon exits")
	return cmd
}
