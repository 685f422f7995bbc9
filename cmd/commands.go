package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ochronus/goseedr/internal/app"
	"github.com/ochronus/goseedr/internal/config"
	"github.com/ochronus/goseedr/internal/http"
	"github.com/ochronus/goseedr/internal/metrics"
	"github.com/ochronus/goseedr/internal/services/seedr"
	"github.com/ochronus/goseedr/internal/telemetry"
	"github.com/ochronus/goseedr/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// cli carries the state shared by all commands.
type cli struct {
	out        io.Writer
	fs         afero.Fs
	configPath string
	skipDotEnv bool
	appOpts    []app.Option
}

func newCLI(out io.Writer) *cli {
	return &cli{
		out: out,
		fs:  afero.NewOsFs(),
	}
}

func newRootCmd(c *cli) *cobra.Command {
	defaultConfigPath, err := config.DefaultConfigPath()
	if err != nil {
		defaultConfigPath = "./config.toml"
	}

	rootCmd := &cobra.Command{
		Use:           "goseedr",
		Short:         "Seedr.cc command line client",
		Long:          "Manage Seedr.cc folders, files and transfers from the command line, or expose Seedr to sonarr/radarr through a Transmission-compatible bridge.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(c.out)
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath, "Path to config file")

	rootCmd.AddCommand(
		c.userCmd(),
		c.lsCmd(),
		c.mkdirCmd(),
		c.renameFolderCmd(),
		c.rmFolderCmd(),
		c.hlsCmd(),
		c.renameFileCmd(),
		c.rmFileCmd(),
		c.addMagnetCmd(),
		c.addURLCmd(),
		c.addFileCmd(),
		c.transferCmd(),
		c.rmTransferCmd(),
		c.linkCmd(),
		c.openCmd(),
		c.serveCmd(),
		c.generateConfigCmd(),
		c.versionCmd(),
	)

	return rootCmd
}

// loadConfig reads .env, the config file and the environment, then validates.
func (c *cli) loadConfig() (*config.Config, error) {
	if !c.skipDotEnv {
		if err := config.LoadDotEnv(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg, err := config.Load(c.fs, c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *cli) container(ctx context.Context) (*app.Container, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	container, err := app.NewContainer(ctx, cfg, c.appOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build container: %w", err)
	}
	return container, nil
}

// withClient wraps a command body that talks to Seedr.
func (c *cli) withClient(fn func(ctx context.Context, client seedr.ClientAPI, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		container, err := c.container(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, container.SeedrClient, args)
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints the envelope and turns a logical failure into an error.
func (c *cli) printResult(res *seedr.APIResult, err error) error {
	if err != nil {
		return err
	}
	if err := c.printJSON(res); err != nil {
		return err
	}
	if !res.Result {
		if msg := res.ErrorText(); msg != "" {
			return fmt.Errorf("seedr rejected the request: %s", msg)
		}
		return fmt.Errorf("seedr rejected the request (code %d)", res.Code)
	}
	return nil
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func (c *cli) userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Show the Seedr account",
		Args:  cobra.NoArgs,
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, _ []string) error {
			user, err := client.GetUser(ctx)
			if err != nil {
				return err
			}
			return c.printJSON(user)
		}),
	}
}

func (c *cli) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List the root folder or a folder by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			var (
				content *seedr.FolderContent
				err     error
			)
			if len(args) == 0 {
				content, err = client.ListRootFolder(ctx)
			} else {
				id, perr := parseID("folder", args[0])
				if perr != nil {
					return perr
				}
				content, err = client.ListFolder(ctx, id)
			}
			if err != nil {
				return err
			}
			return c.printJSON(content)
		}),
	}
}

func (c *cli) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			return c.printResult(client.CreateFolder(ctx, args[0]))
		}),
	}
}

func (c *cli) renameFolderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-folder <folder-id> <new-name>",
		Short: "Rename a folder",
		Args:  cobra.ExactArgs(2),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("folder", args[0])
			if err != nil {
				return err
			}
			return c.printResult(client.RenameFolder(ctx, id, args[1]))
		}),
	}
}

func (c *cli) rmFolderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-folder <folder-id>",
		Short: "Delete a folder",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("folder", args[0])
			if err != nil {
				return err
			}
			return c.printResult(client.DeleteFolder(ctx, id))
		}),
	}
}

func (c *cli) hlsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hls <file-id>",
		Short: "Request the HLS stream of a file",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("file", args[0])
			if err != nil {
				return err
			}
			return c.printResult(client.GetFileHLS(ctx, id))
		}),
	}
}

func (c *cli) renameFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename-file <file-id> <new-name>",
		Short: "Rename a file",
		Args:  cobra.ExactArgs(2),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("file", args[0])
			if err != nil {
				return err
			}
			return c.printResult(client.RenameFile(ctx, id, args[1]))
		}),
	}
}

func (c *cli) rmFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-file <file-id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("file", args[0])
			if err != nil {
				return err
			}
			return c.printResult(client.DeleteFile(ctx, id))
		}),
	}
}

func (c *cli) addMagnetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-magnet <magnet-uri>",
		Short: "Start a transfer from a magnet link",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			return c.printResult(client.AddMagnet(ctx, args[0]))
		}),
	}
}

func (c *cli) addURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-url <url>",
		Short: "Start a transfer from a remote .torrent URL",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			return c.printResult(client.AddURL(ctx, args[0]))
		}),
	}
}

func (c *cli) addFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-file <path>",
		Short: "Upload a local .torrent file",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			return c.printResult(client.AddTorrentFile(ctx, args[0]))
		}),
	}
}

func (c *cli) transferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <transfer-id>",
		Short: "Show a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("transfer", args[0])
			if err != nil {
				return err
			}
			transfer, err := client.GetTransfer(ctx, id)
			if err != nil {
				return err
			}
			return c.printJSON(transfer)
		}),
	}
}

func (c *cli) rmTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-transfer <transfer-id>",
		Short: "Cancel a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID("transfer", args[0])
			if err != nil {
				return err
			}
			return c.printResult(client.DeleteTransfer(ctx, id))
		}),
	}
}

func (c *cli) linkCmd() *cobra.Command {
	var resolve bool

	linkCmd := &cobra.Command{
		Use:       "link <file|folder> <id>",
		Short:     "Print the download link of a file or folder archive",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"file", "folder"},
		RunE: c.withClient(func(ctx context.Context, client seedr.ClientAPI, args []string) error {
			id, err := parseID(args[0], args[1])
			if err != nil {
				return err
			}

			switch args[0] {
			case "file":
				if resolve {
					return c.printLink(client.ResolveFileLink(ctx, id))
				}
				_, err = fmt.Fprintln(c.out, client.FileLink(id))
			case "folder":
				if resolve {
					return c.printLink(client.ResolveFolderArchiveLink(ctx, id))
				}
				_, err = fmt.Fprintln(c.out, client.FolderLink(id))
			default:
				return fmt.Errorf("unknown target %q, expected file or folder", args[0])
			}
			return err
		}),
	}
	linkCmd.Flags().BoolVarP(&resolve, "resolve", "r", false, "Follow redirects and report the final URL")

	return linkCmd
}

func (c *cli) printLink(link seedr.DownloadLinkResult) error {
	if err := c.printJSON(link); err != nil {
		return err
	}
	if !link.Success {
		return fmt.Errorf("failed to resolve download link: %s", link.ErrorMessage)
	}
	return nil
}

func (c *cli) openCmd() *cobra.Command {
	var private bool

	openCmd := &cobra.Command{
		Use:       "open <file|folder> <id>",
		Short:     "Open the download of a file or folder archive in the browser",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"file", "folder"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], args[1])
			if err != nil {
				return err
			}

			container, err := c.container(ctx)
			if err != nil {
				return err
			}
			client := container.SeedrClient

			var ok bool
			switch {
			case args[0] == "file" && !private:
				ok = client.DownloadFileInBrowser(ctx, id)
			case args[0] == "folder" && !private:
				ok = client.DownloadFolderInBrowser(ctx, id)
			case args[0] == "file":
				link := client.ResolveFileLink(ctx, id)
				ok = link.Success && container.Launcher.Open(ctx, link.URL, seedr.LaunchPrivate)
			case args[0] == "folder":
				ok = container.Launcher.Open(ctx, client.FolderLink(id), seedr.LaunchPrivate)
			default:
				return fmt.Errorf("unknown target %q, expected file or folder", args[0])
			}

			if !ok {
				return fmt.Errorf("failed to open %s %d in the browser", args[0], id)
			}
			return nil
		},
	}
	openCmd.Flags().BoolVarP(&private, "private", "p", false, "Use the configured private browsing command")

	return openCmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Transmission-compatible bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateBridge(); err != nil {
				return fmt.Errorf("invalid bridge configuration: %w", err)
			}

			opts := append([]app.Option{app.WithAccountValidation(true)}, c.appOpts...)
			container, err := app.NewContainer(ctx, cfg, opts...)
			if err != nil {
				return fmt.Errorf("failed to build container: %w", err)
			}

			shutdown, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
			if err != nil {
				return fmt.Errorf("failed to init telemetry: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					container.Logger.Warnf("telemetry shutdown: %v", err)
				}
			}()

			metrics.Register(prometheus.DefaultRegisterer)

			container.Logger.Infof("Starting goseedr bridge, version %s", version)

			server := http.NewServer(container)
			return server.StartWithContext(ctx)
		},
	}
}

func (c *cli) generateConfigCmd() *cobra.Command {
	var email, password string

	generateConfigCmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = os.Getenv(config.EnvEmail)
			}
			if password == "" {
				password = os.Getenv(config.EnvPassword)
			}
			return utils.GenerateConfig(c.fs, c.out, c.configPath, email, password)
		},
	}
	generateConfigCmd.Flags().StringVar(&email, "email", "", "Seedr account email (default $"+config.EnvEmail+")")
	generateConfigCmd.Flags().StringVar(&password, "password", "", "Seedr account password (default $"+config.EnvPassword+")")

	return generateConfigCmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.out, "goseedr version %s\n", version)
		},
	}
}
