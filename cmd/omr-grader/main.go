// Command omr-grader reads and grades multiple-choice bubble sheets.
//
// It runs as an MCP server over stdio, as an HTTP upload service, or as a
// one-shot command line grader.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-grader/internal/config"
	"github.com/ironsheep/omr-grader/internal/grading"
	"github.com/ironsheep/omr-grader/internal/httpapi"
	"github.com/ironsheep/omr-grader/internal/imaging"
	"github.com/ironsheep/omr-grader/internal/logger"
	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "omr-grader",
		Short: "Read and grade multiple-choice bubble sheets",
		Long: `omr-grader reads filled-in bubble sheets and grades them against an answer key
read from a sheet of the same layout.

Configuration is layered: built-in defaults, then the YAML file given with
--config, then OMR_* environment variables (e.g. OMR_KEY_PATH,
OMR_PIPELINE_COLUMNS, OMR_LOG_LEVEL).

Examples:
  omr-grader serve                                # MCP server on stdio
  omr-grader http --addr :8000                    # HTTP upload API
  omr-grader grade --key key.jpg s1.jpg s2.jpg    # grade sheets, print JSON
  omr-grader inspect s1.jpg --overlay s1_overlay.png`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	root.AddCommand(
		a.serveCmd(),
		a.httpCmd(),
		a.gradeCmd(),
		a.inspectCmd(),
		versionCmd(),
	)
	return root
}

// setup loads configuration and builds the logger. Logs always go to stderr
// because stdout carries MCP traffic and command output.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	a.log.Debug("main", "configuration loaded", logger.Fields{
		"command": cmd.Name(),
		"config":  a.configPath,
		"version": Version,
	})
	return nil
}

func (a *app) pipeline() (*omr.Pipeline, error) {
	return omr.NewPipeline(a.cfg.Pipeline, omr.WithLogger(a.log))
}

// startupKey builds the answer key named by the config. Servers start without
// a key when it cannot be read; one can be uploaded later.
func (a *app) startupKey(b grading.ResponseBuilder) *grading.AnswerKey {
	if a.cfg.KeyPath == "" {
		a.log.Warning("main", "no answer key configured", nil)
		return nil
	}
	key, err := grading.LoadAnswerKey(b, a.cfg.KeyPath)
	if err != nil {
		a.log.Warning("main", "answer key not loaded", logger.Fields{"path": a.cfg.KeyPath, "error": err.Error()})
		return nil
	}
	a.log.Info("main", "answer key loaded", logger.Fields{"path": key.Source(), "questions": key.Len()})
	return key
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Run the MCP (Model Context Protocol) server on stdin/stdout.

Configure it in your MCP client (e.g., Claude Desktop) with the command
"omr-grader serve".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			keys := grading.NewKeyStore(a.startupKey(p))

			a.log.Info("main", "MCP server starting", logger.Fields{
				"version": Version,
				"built":   BuildTime,
				"commit":  GitCommit,
			})
			srv := server.New(p, keys, a.log, Version)
			if err := srv.Serve(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func (a *app) httpCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the HTTP upload API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}

			p, err := a.pipeline()
			if err != nil {
				return err
			}

			var builder grading.ResponseBuilder = p
			if dir := a.cfg.Debug.OverlayDir; dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create overlay dir: %w", err)
				}
				builder = omr.NewOverlayRecorder(p, dir, a.log)
				a.log.Info("main", "saving overlays", logger.Fields{"dir": dir})
			}
			keys := grading.NewKeyStore(a.startupKey(p))

			srv := httpapi.New(httpapi.Config{
				MaxUploadBytes: a.cfg.MaxUploadBytes(),
				CORSOrigins:    a.cfg.HTTP.CORSOrigins,
				Version:        Version,
			}, builder, keys, a.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; overrides http.addr")
	return cmd
}

type gradeOutput struct {
	Key     string           `json:"key"`
	Results []grading.Result `json:"results"`
}

func (a *app) gradeCmd() *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "grade [flags] SHEET...",
		Short: "Grade sheets against an answer key and print JSON results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyPath == "" {
				keyPath = a.cfg.KeyPath
			}

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			key, err := grading.LoadAnswerKey(p, keyPath)
			if err != nil {
				return err
			}

			items := make([]grading.Item, len(args))
			for i, path := range args {
				items[i] = grading.Item{Filename: filepath.Base(path), Path: path}
			}
			results := grading.GradeFiles(p, key, items)

			if err := writeJSON(cmd.OutOrStdout(), gradeOutput{Key: key.Source(), Results: results}); err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if !r.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sheets could not be graded", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "answer key image; defaults to key_path from config")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	var overlayPath, maskPath string

	cmd := &cobra.Command{
		Use:   "inspect [flags] IMAGE",
		Short: "Print every detection and decision for one sheet",
		Long: `Run the pipeline on one sheet and print the detected circles, the rows with
their per-bubble coverage, and the resulting responses as JSON.

--overlay saves the sheet annotated with the grading decisions and --mask
saves the binary ink mask the detector worked on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			analysis, err := p.Analyze(args[0])
			if err != nil {
				return err
			}

			if overlayPath != "" {
				if err := imaging.SaveImage(analysis.Overlay(), overlayPath); err != nil {
					return err
				}
				a.log.Info("main", "overlay saved", logger.Fields{"path": overlayPath})
			}
			if maskPath != "" {
				if err := imaging.SaveImage(analysis.Mask, maskPath); err != nil {
					return err
				}
				a.log.Info("main", "mask saved", logger.Fields{"path": maskPath})
			}

			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "write the annotated sheet to this file (.png, .jpg)")
	cmd.Flags().StringVar(&maskPath, "mask", "", "write the binary ink mask to this file")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skips config loading so version always works.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "omr-grader %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
