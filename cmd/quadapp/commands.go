package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/artpar/quadapp/internal/core/appdir"
	"github.com/artpar/quadapp/internal/core/crypto"
	"github.com/artpar/quadapp/internal/core/plan"
	"github.com/artpar/quadapp/internal/core/render"
	"github.com/artpar/quadapp/internal/core/report"
	"github.com/artpar/quadapp/internal/core/vars"
	"github.com/artpar/quadapp/internal/shell/deploy"
	"github.com/artpar/quadapp/internal/shell/engine"
	"github.com/artpar/quadapp/internal/shell/ledger"
	"github.com/artpar/quadapp/internal/shell/systemd"
)

// dispatch routes the command to the appropriate handler.
func dispatch(cmd string, args []string) int {
	switch cmd {
	case "deploy":
		return deployCmd(args)
	case "render":
		return renderCmd(args)
	case "seal":
		return sealCmd(args)
	case "version":
		return versionCmd()
	default:
		outputError(cmd, report.ErrCodeConfig, "unknown command: "+cmd)
		return ExitConfigError
	}
}

// varList collects repeated -var KEY=VALUE flags.
type varList []string

func (v *varList) String() string { return strings.Join(*v, ",") }

func (v *varList) Set(s string) error {
	*v = append(*v, s)
	return nil
}

// =============================================================================
// deploy
// =============================================================================

// deployCmd handles the "deploy" command: render, preprocess and write one
// application directory, then converge its services.
func deployCmd(args []string) int {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Path to config file")
	name := fs.String("name", "", "Application name (default: source directory basename)")
	state := fs.String("state", string(plan.StateStarted), "Requested state: installed, started or restarted")
	force := fs.Bool("force", false, "Redeploy all files regardless of recorded digests")
	var varFlags varList
	fs.Var(&varFlags, "var", "Template variable KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		outputError("deploy", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}
	if fs.NArg() != 1 {
		outputError("deploy", report.ErrCodeConfig, "usage: quadapp deploy [flags] <source-dir>")
		return ExitConfigError
	}
	sourceDir := fs.Arg(0)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		outputError("deploy", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}
	logger := SetupLogger(cfg)

	requested, err := plan.ParseState(*state)
	if err != nil {
		outputError("deploy", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}

	variables, err := loadVariables(cfg, resolveAppName(*name, sourceDir), varFlags)
	if err != nil {
		return fail("deploy", err)
	}

	eng, led, err := newEngine(cfg, logger)
	if err != nil {
		return fail("deploy", err)
	}
	defer led.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Deploy(ctx, engine.Request{
		SourceDir: sourceDir,
		Name:      *name,
		State:     requested,
		Force:     *force,
		Vars:      variables,
	})
	if err != nil {
		logger.Error("deployment failed", "source", sourceDir, "error", err)
		return fail("deploy", err)
	}

	outputSuccess(result)
	return ExitSuccess
}

// =============================================================================
// render
// =============================================================================

// renderCmd handles the "render" command: emit what a deploy would write,
// without touching the host.
func renderCmd(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Path to config file")
	name := fs.String("name", "", "Application name (default: source directory basename)")
	var varFlags varList
	fs.Var(&varFlags, "var", "Template variable KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		outputError("render", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}
	if fs.NArg() != 1 {
		outputError("render", report.ErrCodeConfig, "usage: quadapp render [flags] <source-dir>")
		return ExitConfigError
	}
	sourceDir := fs.Arg(0)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		outputError("render", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}
	logger := SetupLogger(cfg)

	variables, err := loadVariables(cfg, resolveAppName(*name, sourceDir), varFlags)
	if err != nil {
		return fail("render", err)
	}

	// The preview touches neither the ledger, the deployer nor systemd.
	eng := engine.New(engineConfig(cfg), render.NewComposeRenderer(), nil, nil, nil, logger)

	result, err := eng.Render(context.Background(), engine.Request{
		SourceDir: sourceDir,
		Name:      *name,
		Vars:      variables,
	})
	if err != nil {
		return fail("render", err)
	}

	outputSuccess(result)
	return ExitSuccess
}

// =============================================================================
// seal
// =============================================================================

// sealCmd handles the "seal" command. The plaintext is read from stdin so it
// never shows up in the process list.
func sealCmd(args []string) int {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		outputError("seal", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		outputError("seal", report.ErrCodeConfig, err.Error())
		return ExitConfigError
	}
	if cfg.SealPassphrase == "" {
		outputError("seal", report.ErrCodeConfig, "seal_passphrase is not configured")
		return ExitConfigError
	}

	plaintext, err := io.ReadAll(os.Stdin)
	if err != nil {
		outputError("seal", report.ErrCodeInternal, "reading stdin: "+err.Error())
		return ExitConfigError
	}

	sealed, err := crypto.Seal(strings.TrimSuffix(string(plaintext), "\n"), crypto.DeriveKey(cfg.SealPassphrase))
	if err != nil {
		return fail("seal", err)
	}

	outputSuccess(report.SealResult{Sealed: sealed})
	return ExitSuccess
}

// =============================================================================
// Wiring
// =============================================================================

// resolveAppName mirrors the engine's name resolution, needed up front to
// select the per-application secrets section.
func resolveAppName(name, sourceDir string) string {
	if name != "" {
		return name
	}
	return appdir.DeriveName(sourceDir)
}

// loadVariables merges the template variable sources, later wins: variables
// file, secrets document (global then per-application), -var flags.
func loadVariables(cfg *Config, app string, flags []string) (map[string]string, error) {
	var sealKey []byte
	if cfg.SealPassphrase != "" {
		sealKey = crypto.DeriveKey(cfg.SealPassphrase)
	}

	var fileVars map[string]string
	if cfg.VarsFile != "" {
		data, err := os.ReadFile(cfg.VarsFile)
		if err != nil {
			return nil, fmt.Errorf("reading variables file: %w", err)
		}
		fileVars, err = vars.ParseVarsFile(cfg.VarsFile, data, sealKey)
		if err != nil {
			return nil, err
		}
	}

	var global, perApp map[string]string
	if cfg.SecretsFile != "" {
		data, err := os.ReadFile(cfg.SecretsFile)
		if err != nil {
			return nil, fmt.Errorf("reading secrets file: %w", err)
		}
		doc, err := vars.ParseSecrets(cfg.SecretsFile, data, sealKey)
		if err != nil {
			return nil, err
		}
		global = doc.Global()
		perApp = doc.ForApp(app)
	}

	flagVars := make(map[string]string, len(flags))
	for _, f := range flags {
		k, v, err := vars.ParseAssignment(f)
		if err != nil {
			return nil, err
		}
		flagVars[k] = v
	}

	return vars.Merge(fileVars, global, perApp, flagVars), nil
}

// newEngine builds the full pipeline: ledger, deployer and systemctl client.
func newEngine(cfg *Config, logger *slog.Logger) (*engine.Engine, *ledger.SQLiteLedger, error) {
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating state directory: %w", err)
	}
	led, err := ledger.NewSQLiteLedger(cfg.LedgerDSN())
	if err != nil {
		return nil, nil, err
	}

	client := systemd.NewClient(systemd.ExecRunner{}, cfg.SystemctlTimeout, logger)
	eng := engine.New(engineConfig(cfg), render.NewComposeRenderer(), led, deploy.NewDeployer(logger), client, logger)
	return eng, led, nil
}

func engineConfig(cfg *Config) engine.Config {
	return engine.Config{
		UnitsRoot:     cfg.UnitsRoot,
		DataRoot:      cfg.DataRoot,
		StateDir:      cfg.StateDir,
		GeneratorPath: cfg.GeneratorPath,
	}
}
