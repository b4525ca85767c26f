package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serverrun "github.com/rzbill/ystore/internal/cmd/server"
	cfgpkg "github.com/rzbill/ystore/internal/config"
	"github.com/rzbill/ystore/pkg/crdt/opset"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ystore",
		Short: "ystore CRDT update store CLI",
		Long:  "ystore persists CRDT document update logs and compacts them on demand. This CLI manages the server and basic document operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the ystore server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if v, _ := cmd.Flags().GetString("http"); v != "" {
				cfg.HTTPAddr = v
			}
			if v, _ := cmd.Flags().GetString("fsync"); v != "" {
				cfg.FsyncMode = v
			}
			if v, _ := cmd.Flags().GetInt("fsync-interval-ms"); v > 0 {
				cfg.FsyncIntervalMs = v
			}
			if v, _ := cmd.Flags().GetInt("coalesce-window-ms"); v > 0 {
				cfg.CoalesceWindowMs = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.LogLevel = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.LogFormat = v
			}
			if cfg.DataDir == "" {
				return fmt.Errorf("--data-dir (or YSTORE_DATA_DIR) is required")
			}

			level, err := logpkg.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger := logpkg.New(logpkg.Options{
				Level:  level,
				Format: logpkg.ParseFormat(cfg.LogFormat),
			})

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// The built-in op-set library serves the standalone server;
			// embedders wire a real CRDT engine through the Go API instead.
			if err := serverrun.Run(ctx, serverrun.Options{
				Config:  cfg,
				Library: opset.New(),
				Logger:  logger,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to JSON or YAML config file")
	serverStartCmd.Flags().String("data-dir", os.Getenv("YSTORE_DATA_DIR"), "Data directory")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8080)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	serverStartCmd.Flags().Int("coalesce-window-ms", 0, "Read-coalescing window in ms")
	serverStartCmd.Flags().String("log-level", os.Getenv("YSTORE_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("YSTORE_LOG_FORMAT"), "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// doc operations against a running server
	docCmd := &cobra.Command{Use: "doc", Short: "Document operations"}

	docListCmd := &cobra.Command{
		Use:   "list",
		Short: "List document names",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			u := apiURL() + "/v1/docs"
			if filter != "" {
				u += "?filter=" + url.QueryEscape(filter)
			}
			var out struct {
				Docs []string `json:"docs"`
			}
			if err := getJSON(u, &out); err != nil {
				return err
			}
			for _, d := range out.Docs {
				fmt.Println(d)
			}
			return nil
		},
	}
	docListCmd.Flags().String("filter", "", `CEL filter, e.g. 'name.startsWith("notes/")'`)
	docCmd.AddCommand(docListCmd)

	docClockCmd := &cobra.Command{
		Use:   "clock <name>",
		Short: "Show a document's current clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Clock int64 `json:"clock"`
			}
			if err := getJSON(apiURL()+"/v1/docs/clock?doc="+url.QueryEscape(args[0]), &out); err != nil {
				return err
			}
			fmt.Println(out.Clock)
			return nil
		},
	}
	docCmd.AddCommand(docClockCmd)

	docCompactCmd := &cobra.Command{
		Use:   "compact <name>",
		Short: "Compact a document's update log into one baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"doc": args[0]})
			resp, err := http.Post(apiURL()+"/v1/docs/flush", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("flush failed: %s: %s", resp.Status, bytes.TrimSpace(b))
			}
			var out struct {
				Clock uint32 `json:"clock"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			fmt.Printf("baseline clock: %d\n", out.Clock)
			return nil
		},
	}
	docCmd.AddCommand(docCompactCmd)
	rootCmd.AddCommand(docCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("YSTORE_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func getJSON(u string, into any) error {
	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
