package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/imputr/internal/anomaly"
	"github.com/christopherklint97/imputr/internal/config"
	"github.com/christopherklint97/imputr/internal/export"
	"github.com/christopherklint97/imputr/internal/holiday"
	"github.com/christopherklint97/imputr/internal/render"
	"github.com/christopherklint97/imputr/internal/report"
	"github.com/christopherklint97/imputr/internal/server"
	"github.com/christopherklint97/imputr/internal/store"
	"github.com/christopherklint97/imputr/internal/timely"
)

const defaultOutputName = "imputations.xlsx"

var rootCmd = &cobra.Command{
	Use:          "imputr",
	Short:        "Monthly timesheets from Timely",
	Long:         "imputr fetches your Timely events, classifies every day of a period (worked, half day off, off, weekend, holiday) and writes the timesheet as a spreadsheet or JSON. It also flags suspicious days.",
	SilenceUsage: true,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the timesheet of a period",
	RunE:  runReport,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect anomalies in the logged time of a period",
	RunE:  runAnalyze,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reports over HTTP",
	RunE:  runServe,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Timely and cache the token",
	RunE:  runLogin,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of a report record",
	RunE:  runSchema,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	for _, cmd := range []*cobra.Command{reportCmd, analyzeCmd} {
		cmd.Flags().String("from", "", "First day (YYYY-MM-DD or e.g. \"last monday\"); defaults to the start of the current month")
		cmd.Flags().String("to", "", "Last day (YYYY-MM-DD or e.g. \"yesterday\"); defaults to the end of the current month")
		cmd.Flags().StringSlice("client", nil, "Only keep events of these clients (repeatable or comma separated)")
		cmd.Flags().String("account", "", "Timely account id (overrides config)")
	}
	reportCmd.Flags().StringP("format", "f", "excel", "Output format: excel or json")
	reportCmd.Flags().StringP("output", "o", "", "Output file (default <output_dir>/imputations.xlsx for excel, stdout for json)")
	reportCmd.Flags().Bool("notify", false, "Send a desktop notification when done (default from config)")
	analyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	loginCmd.Flags().String("account", "", "Timely account id to save in the config file")
	schemaCmd.Flags().Bool("analysis", false, "Print the schema of the analysis output instead")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func requireCredentials(cfg *config.Config) error {
	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		return fmt.Errorf("timely is not configured, missing %s: run 'imputr config' to set it up", strings.Join(missing, ", "))
	}
	return nil
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg     *config.Config
	db      *store.DB
	session *timely.Session
	client  *timely.Client
	gen     *report.Generator
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var tokens timely.TokenStore
	if dir, err := config.ConfigDir(); err == nil {
		db, err := store.Open(filepath.Join(dir, store.FileName))
		if err != nil {
			logger.Warn("token cache unavailable, tokens are kept in memory", "error", err)
		} else {
			a.db = db
			tokens = db
		}
	}

	a.session = timely.NewSession(timely.Credentials{
		Email:        cfg.Timely.Email,
		Password:     cfg.Timely.Password,
		ClientID:     cfg.Timely.ClientID,
		ClientSecret: cfg.Timely.ClientSecret,
	}, cfg.Timely.BaseURL, tokens, logger)

	a.client = timely.NewClient(a.session, cfg.Timely.BaseURL, cfg.Timely.RequestsPerSecond, logger)
	a.client.SetPerPage(cfg.Timely.PerPage)

	holidays, err := loadHolidays(ctx, cfg.Holidays, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.gen = report.NewGenerator(a.client, holidays, report.Options{
		SpecialProjects: cfg.Report.SpecialProjects,
		Policy:          cfg.HalfDayPolicy(),
		Export: export.Options{
			ClientLabel:   cfg.Report.ClientLabel,
			LocationLabel: cfg.Report.LocationLabel,
			SortNotes:     cfg.Report.SortNotes,
		},
		Sigma: cfg.Analysis.Sigma,
	}, logger)

	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func loadHolidays(ctx context.Context, cfg config.HolidayConfig, logger *slog.Logger) (*holiday.Calendar, error) {
	cal, err := holiday.New(cfg.Country)
	if err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	for _, src := range cfg.ExtraSources {
		days, err := holiday.LoadICS(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("loading extra days off from %s: %w", src, err)
		}
		logger.Debug("loaded extra days off", "source", src, "days", len(days))
		cal.AddDays(days)
	}
	return cal, nil
}

// requestFromFlags builds the report request from the shared flags.
func requestFromFlags(cmd *cobra.Command, cfg *config.Config, now time.Time) (report.Request, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	clients, _ := cmd.Flags().GetStringSlice("client")
	account, _ := cmd.Flags().GetString("account")

	rng, err := resolveRange(from, to, now)
	if err != nil {
		return report.Request{}, err
	}
	if account == "" {
		account = cfg.Timely.AccountID
	}
	return report.Request{AccountID: account, Range: rng, ClientFilter: clients}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runReport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(format)
	if format != "excel" && format != "json" {
		return fmt.Errorf("invalid format %q (want excel or json)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}
	req, err := requestFromFlags(cmd, cfg, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cmd)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.gen.Build(ctx, req)
	if err != nil {
		return err
	}

	if format == "json" && (output == "" || output == "-") {
		return export.WriteJSON(cmd.OutOrStdout(), a.gen.Records(res))
	}
	if output == "" {
		output = filepath.Join(cfg.Report.OutputDir, defaultOutputName)
	}

	if err := writeReport(output, format, a.gen, res); err != nil {
		return err
	}
	if err := render.Written(cmd.OutOrStdout(), output, res); err != nil {
		return err
	}

	notify := cfg.Notifications.Enabled
	if cmd.Flags().Changed("notify") {
		notify, _ = cmd.Flags().GetBool("notify")
	}
	if notify {
		msg := fmt.Sprintf("%s written (%s)", filepath.Base(output), req.Range)
		if err := beeep.Notify("imputr", msg, ""); err != nil {
			logger.Debug("desktop notification failed", "error", err)
		}
	}
	return nil
}

func writeReport(path, format string, gen *report.Generator, res *report.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if format == "json" {
		err = export.WriteJSON(f, gen.Records(res))
	} else {
		err = export.WriteXLSX(f, gen.Rows(res))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}
	req, err := requestFromFlags(cmd, cfg, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, newLogger(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.gen.Analyze(ctx, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return render.Analysis(cmd.OutOrStdout(), res)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cmd)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}, a.gen, a.client, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "imputr listening on %s\n", cfg.Server.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	account, _ := cmd.Flags().GetString("account")
	if account != "" {
		if err := config.SaveAccountID(account); err != nil {
			return fmt.Errorf("saving account id: %w", err)
		}
		cfg.Timely.AccountID = account
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, newLogger(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Authenticate(ctx); err != nil {
		return err
	}
	if a.db == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Authenticated with Timely (token cache unavailable, nothing saved).")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Authenticated with Timely as %s.\n", cfg.Timely.Email)
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	analysis, _ := cmd.Flags().GetBool("analysis")
	return writeSchema(cmd.OutOrStdout(), analysis)
}

func writeSchema(w io.Writer, analysis bool) error {
	r := new(jsonschema.Reflector)
	var s *jsonschema.Schema
	if analysis {
		s = r.Reflect(&anomaly.Result{})
	} else {
		s = r.Reflect(&export.Record{})
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigFile(config.DefaultConfig())), 0600); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(editor, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func defaultConfigFile(cfg config.Config) string {
	return fmt.Sprintf(`[timely]
account_id = ""
email = ""
password = ""
client_id = ""
client_secret = ""
requests_per_second = %s
per_page = %d

[report]
client_label = ""
location_label = %q
special_projects = [%s]
half_day_policy = %q  # "per_client" or "whole_day"
sort_notes = %t
output_dir = %q

[holidays]
country = %q  # %s, or "" for none
extra_sources = []  # ICS files or URLs with extra days off

[analysis]
sigma = %s

[server]
addr = %q
read_timeout_seconds = %d
write_timeout_seconds = %d

[notifications]
enabled = %t
`,
		tomlFloat(cfg.Timely.RequestsPerSecond),
		cfg.Timely.PerPage,
		cfg.Report.LocationLabel,
		quoteList(cfg.Report.SpecialProjects),
		cfg.Report.HalfDayPolicy,
		cfg.Report.SortNotes,
		cfg.Report.OutputDir,
		cfg.Holidays.Country,
		strings.Join(holiday.Countries(), ", "),
		tomlFloat(cfg.Analysis.Sigma),
		cfg.Server.Addr,
		cfg.Server.ReadTimeoutSeconds,
		cfg.Server.WriteTimeoutSeconds,
		cfg.Notifications.Enabled,
	)
}

func tomlFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
