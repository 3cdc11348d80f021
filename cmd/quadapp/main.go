// Package main provides the quadapp binary that deploys application source
// directories as systemd-managed container workloads.
//
// An application directory carries quadlet descriptors under quadlets/ plus
// optional init.d/ and config.d/ payloads. Deploying renders the sources,
// rewrites names and paths so applications stay isolated on a shared host,
// writes the results out and converges the generated services onto the
// requested state.
//
// Every command writes one JSON envelope to stdout; logs go to stderr.
//
// Usage:
//
//	quadapp <command> [flags] [args]
//
// Commands:
//
//	deploy [flags] <source-dir>  - Deploy an application directory
//	render [flags] <source-dir>  - Show what a deploy would write, without deploying
//	seal [flags]                 - Seal a secret value read from stdin
//	version                      - Show version information
package main

import (
	"encoding/json"
	"errors"
	"os"
	"runtime"

	"github.com/artpar/quadapp/internal/core/appdir"
	"github.com/artpar/quadapp/internal/core/graph"
	"github.com/artpar/quadapp/internal/core/plan"
	"github.com/artpar/quadapp/internal/core/quadlet"
	"github.com/artpar/quadapp/internal/core/render"
	"github.com/artpar/quadapp/internal/core/report"
	"github.com/artpar/quadapp/internal/core/vars"
	"github.com/artpar/quadapp/internal/shell/ledger"
	"github.com/artpar/quadapp/internal/shell/systemd"
)

// Version information (set by build flags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

// One exit code per failure class, so callers can branch without parsing the
// envelope. The envelope error code carries the same class as a string.
const (
	ExitSuccess         = 0
	ExitConfigError     = 1 // configuration, usage, internal
	ExitLayoutError     = 2
	ExitTemplateError   = 3
	ExitPreprocessError = 4
	ExitDependencyError = 5
	ExitServiceError    = 6
	ExitStoreError      = 7
)

func main() {
	if len(os.Args) < 2 {
		outputError("usage", report.ErrCodeConfig, "usage: quadapp <command> [flags] [args]")
		os.Exit(ExitConfigError)
	}
	os.Exit(dispatch(os.Args[1], os.Args[2:]))
}

// =============================================================================
// Envelope Output
// =============================================================================

// outputSuccess writes a success response to stdout.
func outputSuccess(data interface{}) {
	resp, err := report.NewSuccessResponse(data)
	if err != nil {
		outputError("internal", report.ErrCodeInternal, err.Error())
		return
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// outputError writes an error response to stdout.
func outputError(command, code, message string) {
	json.NewEncoder(os.Stdout).Encode(report.NewErrorResponse(command, code, message))
}

// =============================================================================
// Failure Classes
// =============================================================================

// classify maps an error onto its exit code and envelope error code.
func classify(err error) (int, string) {
	var (
		layoutErr *appdir.LayoutError
		tmplErr   *render.TemplateError
		preErr    *quadlet.PreprocessError
		depErr    *graph.DependencyError
		svcErr    *systemd.ServiceError
		storeErr  *ledger.StoreError
		varsErr   *vars.VarsError
	)
	switch {
	case errors.Is(err, appdir.ErrInvalidAppName), errors.As(err, &layoutErr):
		return ExitLayoutError, report.ErrCodeLayout
	case errors.As(err, &tmplErr):
		return ExitTemplateError, report.ErrCodeTemplate
	case errors.As(err, &preErr):
		return ExitPreprocessError, report.ErrCodePreprocess
	case errors.As(err, &depErr):
		return ExitDependencyError, report.ErrCodeDependency
	case errors.As(err, &svcErr):
		return ExitServiceError, report.ErrCodeService
	case errors.As(err, &storeErr):
		return ExitStoreError, report.ErrCodeStore
	case errors.As(err, &varsErr), errors.Is(err, plan.ErrUnknownState):
		return ExitConfigError, report.ErrCodeConfig
	}
	return ExitConfigError, report.ErrCodeInternal
}

// fail emits the error envelope for a failed command and returns its exit code.
func fail(command string, err error) int {
	exit, code := classify(err)
	outputError(command, code, err.Error())
	return exit
}

// versionCmd handles the "version" command.
func versionCmd() int {
	outputSuccess(report.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	})
	return ExitSuccess
}
