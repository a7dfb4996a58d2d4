// Package main is the entry point for benchaudit, a benchmark compliance
// auditor for local and remote hosts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ancients-collective/benchaudit/internal/engine"
	"github.com/ancients-collective/benchaudit/internal/evaluator"
	"github.com/ancients-collective/benchaudit/internal/execution"
	"github.com/ancients-collective/benchaudit/internal/hostinfo"
	"github.com/ancients-collective/benchaudit/internal/loader"
	"github.com/ancients-collective/benchaudit/internal/logging"
	"github.com/ancients-collective/benchaudit/internal/metrics"
	"github.com/ancients-collective/benchaudit/internal/output"
	"github.com/ancients-collective/benchaudit/internal/types"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

// Exit codes.
const (
	exitClean        = 0
	exitFindings     = 1
	exitErrors       = 2
	exitSessionSetup = 3
	exitInterrupted  = 130
)

// Config holds all parsed CLI flag values.
type Config struct {
	TasksFile string

	Profiles string
	Levels   string
	Domains  string
	IDs      string

	Format      string
	LogLevel    string
	ShowAll     bool
	ScriptsDir  string
	ReportsDir  string
	LogsDir     string
	MetricsFile string
	NoColor     bool
	List        bool
	Validate    bool

	SSHHost      string
	SSHUser      string
	SSHPort      int
	AskPass      bool
	Password     string
	IdentityFile string
	KnownHosts   string
}

// Remote reports whether the run targets an SSH host.
func (c *Config) Remote() bool {
	return c.SSHHost != ""
}

// parseFlags parses command-line arguments into a Config using a dedicated
// FlagSet. The task file may be given positionally, before or after flags.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("benchaudit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.TasksFile, "tasks", "", "Benchmark task file (.csv, .yaml)")
	fs.StringVar(&cfg.TasksFile, "t", "", "Benchmark task file (shorthand)")
	fs.StringVar(&cfg.Profiles, "profile", "", "Filter by profile (comma-separated)")
	fs.StringVar(&cfg.Levels, "level", "", "Filter by level (comma-separated)")
	fs.StringVar(&cfg.Domains, "domain", "", "Filter by domain (comma-separated)")
	fs.StringVar(&cfg.IDs, "id", "", "Run only these task IDs (comma-separated)")
	fs.StringVar(&cfg.Format, "format", output.FormatText, "Report format: txt, csv, json, jsonl")
	fs.StringVar(&cfg.Format, "f", output.FormatText, "Report format (shorthand)")
	fs.StringVar(&cfg.LogLevel, "loglevel", "INFO", "Log level: DEBUG, INFO")
	fs.BoolVar(&cfg.ShowAll, "show-all", false, "Show details for all checks, including PASS")
	fs.BoolVar(&cfg.ShowAll, "A", false, "Show details for all checks (shorthand)")
	fs.StringVar(&cfg.ScriptsDir, "scripts", "./"+engine.DefaultScriptsDir, "Directory holding execute_script scripts")
	fs.StringVar(&cfg.ReportsDir, "reports", "./"+output.DefaultReportsDir, "Directory for report files")
	fs.StringVar(&cfg.LogsDir, "logs", "", "Directory for the run log file (default: no log file)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cfg.List, "list", false, "List the selected tasks and exit")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate the task file without running it")

	fs.StringVar(&cfg.SSHHost, "ssh-host", "", "Audit a remote host over SSH")
	fs.StringVar(&cfg.SSHUser, "username", "", "SSH username")
	fs.StringVar(&cfg.SSHUser, "u", "", "SSH username (shorthand)")
	fs.IntVar(&cfg.SSHPort, "port", execution.DefaultPort, "SSH port")
	fs.BoolVar(&cfg.AskPass, "ask-pass", false, "Prompt for the SSH password")
	fs.BoolVar(&cfg.AskPass, "p", false, "Prompt for the SSH password (shorthand)")
	fs.StringVar(&cfg.Password, "password", "", "SSH password (visible in process lists, prefer --ask-pass)")
	fs.StringVar(&cfg.Password, "P", "", "SSH password (shorthand)")
	fs.StringVar(&cfg.IdentityFile, "identity-file", "", "SSH private key file")
	fs.StringVar(&cfg.IdentityFile, "i", "", "SSH private key file (shorthand)")
	fs.StringVar(&cfg.KnownHosts, "known-hosts", "", "Verify the host key against this known_hosts file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "\n  benchaudit %s\n\n", version)
		fmt.Fprintf(os.Stderr, "  Usage: benchaudit [options] <benchmark.csv|tasks.yaml>\n\n")
		fmt.Fprintf(os.Stderr, "  Selection:\n")
		fmt.Fprintf(os.Stderr, "         --profile <list>         Filter by profile\n")
		fmt.Fprintf(os.Stderr, "         --level <list>           Filter by level\n")
		fmt.Fprintf(os.Stderr, "         --domain <list>          Filter by domain\n")
		fmt.Fprintf(os.Stderr, "         --id <list>              Run only these task IDs\n")
		fmt.Fprintf(os.Stderr, "         --list                   List selected tasks and exit\n")
		fmt.Fprintf(os.Stderr, "         --validate               Validate the task file and exit\n")
		fmt.Fprintf(os.Stderr, "\n  Output:\n")
		fmt.Fprintf(os.Stderr, "    -f,  --format <type>          Extra report: txt, csv, json, jsonl (default: txt)\n")
		fmt.Fprintf(os.Stderr, "    -A,  --show-all               Show all checks, not only FAIL/ERROR\n")
		fmt.Fprintf(os.Stderr, "         --loglevel <level>       DEBUG or INFO (default: INFO)\n")
		fmt.Fprintf(os.Stderr, "         --reports <dir>          Report directory (default: ./reports)\n")
		fmt.Fprintf(os.Stderr, "         --logs <dir>             Write a run log file to <dir>\n")
		fmt.Fprintf(os.Stderr, "         --metrics-file <path>    Write Prometheus textfile metrics\n")
		fmt.Fprintf(os.Stderr, "         --no-color               Disable colored output\n")
		fmt.Fprintf(os.Stderr, "         --scripts <dir>          Script directory (default: ./functions)\n")
		fmt.Fprintf(os.Stderr, "\n  Remote:\n")
		fmt.Fprintf(os.Stderr, "         --ssh-host <host>        Audit a remote host over SSH\n")
		fmt.Fprintf(os.Stderr, "    -u,  --username <user>        SSH username\n")
		fmt.Fprintf(os.Stderr, "         --port <port>            SSH port (default: 22)\n")
		fmt.Fprintf(os.Stderr, "    -p,  --ask-pass               Prompt for the SSH password\n")
		fmt.Fprintf(os.Stderr, "    -P,  --password <pass>        SSH password\n")
		fmt.Fprintf(os.Stderr, "    -i,  --identity-file <key>    SSH private key\n")
		fmt.Fprintf(os.Stderr, "         --known-hosts <file>     Verify the host key\n")
		fmt.Fprintf(os.Stderr, "\n  Examples:\n")
		fmt.Fprintf(os.Stderr, "    benchaudit cis_ubuntu.csv                          Audit this host\n")
		fmt.Fprintf(os.Stderr, "    benchaudit cis_ubuntu.csv --level 1 -A             Level 1, show all results\n")
		fmt.Fprintf(os.Stderr, "    benchaudit cis_ubuntu.csv --id 1.1.1,1.1.2         Two controls only\n")
		fmt.Fprintf(os.Stderr, "    benchaudit cis_ubuntu.csv --format csv             Also write a CSV report\n")
		fmt.Fprintf(os.Stderr, "    benchaudit cis_ubuntu.csv --ssh-host db1 -u ops -p Audit db1 over SSH\n")
		fmt.Fprintf(os.Stderr, "\n  Exit codes: 0 clean, 1 failures, 2 errors only, 3 SSH setup failed, 130 interrupted\n\n")
	}

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		rest = fs.Args()[1:]
	}

	switch {
	case len(positional) > 1:
		return nil, fmt.Errorf("expected one task file, got %d: %s", len(positional), strings.Join(positional, " "))
	case len(positional) == 1 && cfg.TasksFile != "":
		return nil, fmt.Errorf("task file given twice: %q and --tasks %q", positional[0], cfg.TasksFile)
	case len(positional) == 1:
		cfg.TasksFile = positional[0]
	}
	return cfg, nil
}

// validateConfig checks flag values and combinations.
func validateConfig(cfg *Config) error {
	if cfg.TasksFile == "" {
		return errors.New("no task file given")
	}
	if _, err := output.ForFormat(cfg.Format); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	authFlags := 0
	for _, set := range []bool{cfg.AskPass, cfg.Password != "", cfg.IdentityFile != ""} {
		if set {
			authFlags++
		}
	}
	if !cfg.Remote() {
		if authFlags > 0 || cfg.SSHUser != "" || cfg.KnownHosts != "" {
			return errors.New("SSH options require --ssh-host")
		}
		return nil
	}
	if cfg.SSHUser == "" {
		return errors.New("--ssh-host requires --username")
	}
	if authFlags != 1 {
		return errors.New("--ssh-host requires exactly one of --ask-pass, --password or --identity-file")
	}
	if cfg.SSHPort < 1 || cfg.SSHPort > 65535 {
		return fmt.Errorf("invalid --port %d", cfg.SSHPort)
	}
	return nil
}

// readPassword prompts on stderr and reads a password without echo.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitClean)
		}
		fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
		os.Exit(exitFindings)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
		os.Exit(exitFindings)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdout)
	stop()
	os.Exit(code)
}

// run executes the audit with the given configuration and returns an exit code.
func run(ctx context.Context, cfg *Config, stdout io.Writer) int {
	start := time.Now()
	sessionID := newSessionID(start)

	if cfg.NoColor || output.IsDumbTerm() {
		color.NoColor = true
	}

	logger, logPath, closeLog, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogsDir,
		NoColor: color.NoColor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
		return exitFindings
	}
	defer closeLog()
	logger = logger.With(zap.String("session", sessionID))

	backend := execution.NewBackend(logger)
	registry := engine.DefaultRegistry(backend, cfg.ScriptsDir, logger)
	algorithms := evaluator.NewAlgorithms()
	ldr := loader.New(registry.CheckTypes(), algorithms.Names())

	if cfg.Validate {
		return handleValidate(ldr, cfg.TasksFile, stdout)
	}

	tasks, code := loadAndFilterTasks(ldr, cfg)
	if code >= 0 {
		return code
	}
	if cfg.List {
		printTaskList(stdout, tasks)
		return exitClean
	}

	if usesScripts(tasks) {
		for _, w := range engine.VerifyScriptsDirectory(cfg.ScriptsDir) {
			logger.Warn("Scripts directory check", zap.String("warning", w))
		}
	}

	recorder := metrics.NewRecorder()
	auditor := engine.NewAuditor(registry, backend,
		engine.WithLogger(logger),
		engine.WithMetrics(recorder),
		engine.WithEvaluator(evaluator.New(algorithms)))

	target := "local"
	var runErr error
	if cfg.Remote() {
		session, err := newSession(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
			return exitSessionSetup
		}
		target = session.Host()
		runErr = auditor.RunRemote(ctx, session, tasks)
		if errors.Is(runErr, engine.ErrSessionSetup) {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", runErr)
			writeMetrics(cfg, recorder, logger)
			return exitSessionSetup
		}
	} else {
		runErr = auditor.Run(ctx, tasks)
	}
	interrupted := errors.Is(runErr, context.Canceled)
	if interrupted {
		fmt.Fprintf(os.Stderr, "\n  Audit interrupted by user.\n")
	}

	report := buildReport(cfg, sessionID, target, tasks, start)
	writeReports(cfg, report, stdout, logger)
	writeMetrics(cfg, recorder, logger)
	if logPath != "" {
		fmt.Fprintf(os.Stderr, "  Log file: %s\n", logPath)
	}

	if interrupted {
		return exitInterrupted
	}
	return exitCode(report.Summary.Failed, report.Summary.Errors)
}

// newSessionID returns <YYYYMMDD_HHMMSS>_<8 hex>.
func newSessionID(t time.Time) string {
	return t.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// newSession builds the SSH session, prompting for a password if asked to.
func newSession(cfg *Config, logger *zap.Logger) (*execution.SSHSession, error) {
	sshCfg := execution.SSHConfig{
		Host:           cfg.SSHHost,
		Port:           cfg.SSHPort,
		Username:       cfg.SSHUser,
		Password:       cfg.Password,
		KeyPath:        cfg.IdentityFile,
		KnownHostsPath: cfg.KnownHosts,
	}
	if cfg.AskPass {
		pw, err := readPassword(fmt.Sprintf("Password for %s@%s: ", cfg.SSHUser, cfg.SSHHost))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		sshCfg.Password = pw
	}
	return execution.NewSSHSession(sshCfg, logger)
}

// loadAndFilterTasks loads the task file and applies the selection flags.
// Returns -1 as code if successful, or an exit code on early exit.
func loadAndFilterTasks(ldr *loader.Loader, cfg *Config) ([]*types.AuditTask, int) {
	all, errs := ldr.Load(cfg.TasksFile)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "    ⚠ Load error: %v\n", e)
	}
	if len(all) == 0 {
		fmt.Fprintf(os.Stderr, "  ✗ No tasks loaded from %s\n", cfg.TasksFile)
		return nil, exitFindings
	}

	filter := buildFilter(cfg)
	tasks := filter.Apply(all)

	if missing := missingIDs(filter.IDs, all); len(missing) > 0 {
		for _, id := range missing {
			fmt.Fprintf(os.Stderr, "  ✗ No task found with ID %q\n", id)
			if suggestions := suggestIDs(id, all); len(suggestions) > 0 {
				fmt.Fprintf(os.Stderr, "\n  Did you mean:\n")
				for _, s := range suggestions {
					fmt.Fprintf(os.Stderr, "    • %s\n", s)
				}
			}
		}
		fmt.Fprintf(os.Stderr, "\n  Use --list to see the available task IDs.\n")
		if len(tasks) == 0 {
			return nil, exitFindings
		}
	}

	if len(tasks) == 0 {
		fmt.Fprintf(os.Stderr, "  ✗ No tasks match the selected filters\n")
		return nil, exitFindings
	}
	return tasks, -1
}

func buildFilter(cfg *Config) loader.Filter {
	return loader.Filter{
		Levels:   splitList(cfg.Levels),
		Profiles: splitList(cfg.Profiles),
		Domains:  splitList(cfg.Domains),
		IDs:      splitList(cfg.IDs),
	}
}

// missingIDs returns the requested IDs that no loaded task has.
func missingIDs(ids []string, tasks []*types.AuditTask) []string {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func usesScripts(tasks []*types.AuditTask) bool {
	for _, t := range tasks {
		if t.CheckType == engine.CheckExecuteScript {
			return true
		}
	}
	return false
}

// buildReport assembles the audit report from the completed run.
func buildReport(cfg *Config, sessionID, target string, tasks []*types.AuditTask, start time.Time) *types.AuditReport {
	sys, warnings := hostinfo.NewDetector().Detect()
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ %s\n", w)
	}
	sys.Target = target
	sys.Remote = cfg.Remote()

	filter := buildFilter(cfg)
	summary := types.Summarize(tasks)
	summary.DurationMS = time.Since(start).Milliseconds()

	return &types.AuditReport{
		Version:   version,
		SessionID: sessionID,
		Timestamp: start,
		System:    sys,
		Filters: types.ReportFilters{
			Levels:   filter.Levels,
			Profiles: filter.Profiles,
			Domains:  filter.Domains,
			IDs:      filter.IDs,
			ShowAll:  cfg.ShowAll,
		},
		Summary: summary,
		Tasks:   tasks,
	}
}

// writeReports prints the console report and writes the report files.
// File failures are reported but do not change the exit code.
func writeReports(cfg *Config, report *types.AuditReport, stdout io.Writer, logger *zap.Logger) {
	termWidth := 0
	if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			termWidth = tw
		}
	}
	text := &output.TextFormatter{
		ShowAll: cfg.ShowAll,
		Debug:   strings.EqualFold(cfg.LogLevel, "DEBUG"),
		Width:   termWidth,
		Dumb:    output.IsDumbTerm(),
	}
	if err := text.Write(stdout, report); err != nil {
		logger.Error("Failed to write console report", zap.Error(err))
	}

	files := output.ReportFiles{Dir: cfg.ReportsDir}
	if paths, err := files.WriteDetails(report); err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Could not write detailed reports: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "  ✓ Detailed reports saved under %s\n", paths[0])
	}
	if path, err := files.WriteSummary(report); err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Could not write summary report: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "  ✓ Summary report saved to %s\n", path)
	}

	formatter, _ := output.ForFormat(cfg.Format)
	if formatter == nil {
		return
	}
	if path, err := files.WriteReport(report, cfg.Format, formatter); err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Could not write %s report: %v\n", cfg.Format, err)
	} else {
		fmt.Fprintf(os.Stderr, "  ✓ %s report saved to %s\n", strings.ToUpper(cfg.Format), path)
	}
}

func writeMetrics(cfg *Config, recorder *metrics.Recorder, logger *zap.Logger) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Error("Failed to write metrics file", zap.String("path", cfg.MetricsFile), zap.Error(err))
	}
}

// exitCode returns the benchaudit exit code: 0 = clean, 1 = failures, 2 = errors only.
func exitCode(fail, errCount int) int {
	if fail > 0 {
		return exitFindings
	}
	if errCount > 0 {
		return exitErrors
	}
	return exitClean
}

// handleValidate loads the task file without running it and reports load
// errors and lint warnings. Returns 0 when the file is clean, 1 otherwise.
func handleValidate(ldr *loader.Loader, path string, stdout io.Writer) int {
	tasks, errs := ldr.Load(path)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  ✗ %v\n", e)
	}
	warnings := ldr.Lint(tasks)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ %s\n", w)
	}
	if len(errs) > 0 || len(warnings) > 0 {
		fmt.Fprintf(os.Stderr, "\n  Validation failed: %d error(s), %d warning(s)\n", len(errs), len(warnings))
		return exitFindings
	}
	fmt.Fprintf(stdout, "  ✓ %s is valid (%d tasks)\n", path, len(tasks))
	return exitClean
}

// printTaskList prints a table of the selected tasks sorted by ID.
func printTaskList(w io.Writer, tasks []*types.AuditTask) {
	sorted := make([]*types.AuditTask, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	maxID, maxType := 2, 4
	for _, t := range sorted {
		maxID = max(maxID, len(t.ID))
		maxType = max(maxType, len(t.CheckType))
	}

	fmt.Fprintf(w, "\n  Selected tasks (%d):\n\n", len(sorted))
	for _, t := range sorted {
		fmt.Fprintf(w, "    %-*s  L%-3s %-*s  %s\n", maxID, t.ID, t.Level, maxType, t.CheckType, t.Title)
	}
	fmt.Fprintln(w)
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
