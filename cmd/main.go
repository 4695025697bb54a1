package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	cfgPkg "github.com/xhad/ragmodes/pkg/config"
	"github.com/xhad/ragmodes/pkg/store"
	"github.com/xhad/ragmodes/server"
)

var (
	configPath  string
	verbose     bool
	queryJSON   bool
	saveHistory bool
	config      *cfgPkg.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragmodes",
		Short: "Compare text-chunk and page-image retrieval over your documents",
		Long: `ragmodes ingests a document into two vector collections, one of text
chunks, tables and captioned images, and one of captioned page images,
then answers questions with both and reports latency and token usage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine
			_ = godotenv.Load()
			logger.SetVerbose(verbose)

			cfg, err := cfgPkg.LoadConfig(configPath)
			if err != nil {
				return err
			}
			config = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	queryCmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question with both retrieval modes",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the comparison as JSON")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	chatCmd.Flags().BoolVar(&saveHistory, "save-history", false, "store each exchange in the chat history collection")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "ingest [file]",
			Short: "Ingest a document into the text and image collections",
			Args:  cobra.ExactArgs(1),
			RunE:  runIngest,
		},
		queryCmd,
		chatCmd,
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP and websocket server",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Empty both collections",
			Args:  cobra.NoArgs,
			RunE:  runReset,
		},
	)
	return rootCmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	bars := newProgressBars(cmd.ErrOrStderr())

	a, err := newApp(ctx, config, bars.update)
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	// Files outside the data directory are copied in first
	if abs, err := filepath.Abs(path); err == nil {
		if dir, err := filepath.Abs(config.Storage.DataDir); err == nil && filepath.Dir(abs) != dir {
			path, err = copyIntoDataDir(config.Storage.DataDir, abs)
			if err != nil {
				return err
			}
		}
	}

	color.Blue("\nIngesting %s\n", filepath.Base(path))
	report, err := a.pipeline.IngestFile(ctx, path)
	printReport(cmd.OutOrStdout(), report)
	return err
}

func copyIntoDataDir(dataDir, src string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		// Let the pipeline report the missing file
		return src, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dataDir, filepath.Base(src))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("copying into data directory: %w", err)
	}
	return dst, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, config, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := getSpinner(cmd.ErrOrStderr(), "Generating responses...")
	result, err := a.comparer.Compare(ctx, strings.Join(args, " "))
	spinner.Finish()
	if err != nil {
		return err
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printComparison(cmd.OutOrStdout(), result)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, config, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var saveExchange func(question, answer string)
	if saveHistory {
		hs, err := a.openStore(ctx, historyCollection)
		if err != nil {
			return err
		}
		defer hs.Close()
		saveExchange = func(question, answer string) {
			now := time.Now()
			if _, err := store.SaveHistory(ctx, hs, []models.HistoryItem{
				{Message: question, Timestamp: now},
				{Message: answer, Timestamp: now},
			}); err != nil {
				logger.Warn("Could not save chat history: %v", err)
			}
		}
	}

	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	userPrompt := color.New(color.FgGreen).FprintfFunc()

	for {
		userPrompt(out, "\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}

		spinner := getSpinner(cmd.ErrOrStderr(), "Generating responses...")
		result, err := a.comparer.Compare(ctx, query)
		spinner.Finish()
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		printComparison(out, result)
		if saveExchange != nil {
			saveExchange(query, result.Text.Response)
		}
	}

	return scanner.Err()
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(config.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	a, err := newApp(ctx, config, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return server.New(a.comparer, a.pipeline).ListenAndServe(ctx, ":"+config.Server.Port)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), config, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.Reset(cmd.Context()); err != nil {
		return err
	}
	color.Green("✓ Reset %s and %s\n", config.VectorDB.TextCollection, config.VectorDB.ImageCollection)
	return nil
}
