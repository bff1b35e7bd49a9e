package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/progress"
	"github.com/mikeboe/deep-research/pkg/server"
)

var (
	topic      string
	feedback   string
	outputPath string
	configFile string
	review     bool
	serverURL  string
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "Plan, research and write multi-section reports",
		Long: `deep-research plans a report on a topic, researches each section through
web search, writes the sections with a language model and prints the compiled
Markdown report.`,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a report in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", configFile, err)
				}
			}

			in := bufio.NewReader(os.Stdin)
			if !cmd.Flags().Changed("topic") {
				fmt.Fprint(os.Stderr, "Enter report topic: ")
				line, _ := in.ReadString('\n')
				topic = line
			}
			topic = strings.TrimSpace(topic)
			if topic == "" {
				return errors.New("topic cannot be empty")
			}

			return runReport(cmd.Context(), v, in)
		},
	}

	flags := runCmd.Flags()
	flags.StringVarP(&topic, "topic", "t", "", "The report topic")
	flags.StringVarP(&feedback, "feedback", "f", "", "Initial guidance for the report plan")
	flags.StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	flags.StringVarP(&configFile, "config", "c", "", "Report settings file (yaml, json or toml)")
	flags.BoolVar(&review, "review", false, "Review the plan interactively before research starts")
	flags.String("search-api", "", "Search provider: tavily, duckduckgo, arxiv or mock")
	flags.Int("number-of-queries", 0, "Search queries per section")
	flags.Int("max-search-depth", 0, "Search and write iterations per section")
	flags.Int("max-plan-iterations", 0, "Plan reviews before the plan is accepted")
	flags.String("planner-provider", "", "Planner model provider")
	flags.String("planner-model", "", "Planner model")
	flags.String("writer-provider", "", "Writer model provider")
	flags.String("writer-model", "", "Writer model")
	flags.Bool("merge-query-results", false, "Search every query, not only the last one")

	for _, name := range []string{
		"search-api", "number-of-queries", "max-search-depth", "max-plan-iterations",
		"planner-provider", "planner-model", "writer-provider", "writer-model", "merge-query-results",
	} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
			os.Exit(1)
		}
	}

	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Generate a report on a running server and follow its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				return errors.New("--topic is required")
			}
			return streamReport(cmd.Context(), serverURL, server.ReportRequest{Topic: topic, Feedback: feedback})
		},
	}
	streamCmd.Flags().StringVarP(&topic, "topic", "t", "", "The report topic")
	streamCmd.Flags().StringVarP(&feedback, "feedback", "f", "", "Initial guidance for the report plan")
	streamCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	streamCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8081", "Server base URL")

	rootCmd.AddCommand(runCmd, streamCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func runReport(ctx context.Context, v *viper.Viper, in *bufio.Reader) error {
	cfg := config.Load()
	logger := slog.Default()

	var db *database.PostgresDB
	if cfg.Archive.Enabled && cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
	}

	rt, err := server.NewRuntime(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	o := config.OverridesFromViper(v)
	o.Progress = progress.SinkFunc(printProgress)
	engine := rt.Engine(o, logger)
	if review {
		engine.Reviewer = &consoleReviewer{in: in, out: os.Stderr}
	}

	slog.Info("Starting report", "topic", topic)
	start := time.Now()
	report, err := engine.Run(ctx, topic, feedback)
	if err != nil {
		return err
	}
	slog.Info("Report finished", "duration", time.Since(start).Round(time.Second))
	return writeReport(report)
}

func streamReport(ctx context.Context, baseURL string, req server.ReportRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/deep-research", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	report, err := progress.Collect(progress.NewDecoder(resp.Body), func(ev progress.Event) {
		printProgress(progress.Update{Message: ev.Message, Percent: ev.Percent})
	})
	if err != nil {
		return err
	}
	return writeReport(report)
}

func printProgress(u progress.Update) {
	if u.Percent != nil {
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", *u.Percent, u.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "       %s\n", u.Message)
}

func writeReport(report string) error {
	if outputPath == "" {
		fmt.Println(report)
		return nil
	}
	if err := os.WriteFile(outputPath, []byte(report+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	slog.Info("Report written", "path", outputPath)
	return nil
}
