package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sdmaps/plan-map/internal/server"
)

// Options defines all CLI flags and env vars for the plan-map server.
// Flags: --host, --port, --data-dir, --web-dir, --map-config
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR,
// SERVICE_MAP_CONFIG
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir   string `doc:"Directory for cache data files" default:".data"`
	WebDir    string `doc:"Path to web/ directory" default:"web"`
	MapConfig string `doc:"Map config YAML (empty = embedded North Park default)" default:""`
	Debug     bool   `doc:"Enable debug logging" default:"false"`
}

func initLogger(debug bool) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		DataDir:    opts.DataDir,
		WebDir:     opts.WebDir,
		ConfigPath: opts.MapConfig,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		initLogger(opts.Debug)

		srv, err := newServer(opts)
		if err != nil {
			// Configuration-missing is fatal: nothing renders without it.
			zap.L().Fatal("bootstrap failed", zap.Error(err))
		}

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plan-map server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Map:     %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			// Overlay and override loading degrade per-resource; the server
			// accepts requests while features stream in.
			go func() {
				if err := srv.Load(context.Background()); err != nil {
					zap.L().Warn("initial load interrupted", zap.Error(err))
				}
			}()

			if err := http.ListenAndServe(addr, srv); err != nil {
				zap.L().Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			srv.Close()
		})
	})

	cli.Root().Use = "planmap"
	cli.Root().Short = "Community plan area map server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			initLogger(opts.Debug)

			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// fetch subcommand: load overlays and overrides once, then exit. Useful
	// for warming the attribute cache and sanity-checking remote endpoints.
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch overlays and label overrides once, then exit",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			initLogger(opts.Debug)

			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()

			if err := srv.Load(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, o := range srv.Service().OverlayInfos() {
				fmt.Printf("  %-20s %d features\n", o.ID, o.FeatureCount)
			}
		}),
	}
	cli.Root().AddCommand(fetchCmd)

	cli.Run()
}
