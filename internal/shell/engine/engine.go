// Package engine runs the deployment pipeline end to end: layout validation,
// rendering, preprocessing, change detection, file deployment and service
// convergence.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"

	"github.com/artpar/quadapp/internal/core/appdir"
	"github.com/artpar/quadapp/internal/core/plan"
	"github.com/artpar/quadapp/internal/core/quadlet"
	"github.com/artpar/quadapp/internal/core/render"
	"github.com/artpar/quadapp/internal/core/report"
	"github.com/artpar/quadapp/internal/core/vars"
	"github.com/artpar/quadapp/internal/shell/deploy"
	"github.com/artpar/quadapp/internal/shell/ledger"
	"github.com/artpar/quadapp/internal/shell/systemd"
)

// =============================================================================
// Engine & Configuration
// =============================================================================

// Config carries the host paths the engine deploys into.
type Config struct {
	UnitsRoot     string // quadlet descriptor root, e.g. /etc/containers/systemd
	DataRoot      string // auxiliary payload root, e.g. /srv
	StateDir      string // ledger database and lock files
	GeneratorPath string // quadlet generator binary; empty disables the dry-run check
}

// Engine wires the pipeline stages together.
type Engine struct {
	cfg      Config
	renderer render.Renderer
	ledger   ledger.Ledger
	deployer *deploy.Deployer
	client   *systemd.Client
	logger   *slog.Logger
}

// New creates an Engine.
func New(cfg Config, renderer render.Renderer, led ledger.Ledger, deployer *deploy.Deployer, client *systemd.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		renderer: renderer,
		ledger:   led,
		deployer: deployer,
		client:   client,
		logger:   logger,
	}
}

// Request describes one invocation against an application source directory.
type Request struct {
	SourceDir string
	Name      string // empty: derived from the source directory basename
	State     plan.State
	Force     bool
	Vars      map[string]string // merged variable sources, synthetic name added here
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy runs the full pipeline for one application. The deployment record is
// committed after files are deployed and verified; service failures after that
// point leave files and record in place.
func (e *Engine) Deploy(ctx context.Context, req Request) (*report.DeployResult, error) {
	runID := uuid.New().String()

	// 1. Resolve the application name.
	name, err := resolveName(req)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With("app", name, "run_id", runID)
	logger.Info("starting deployment", "source", req.SourceDir, "state", string(req.State), "force", req.Force)

	// 2. Serialize runs against the same application.
	lock, err := deploy.AcquireLock(ctx, e.cfg.StateDir, name)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// 3. Validate, render and preprocess the source tree.
	p, err := e.prepare(name, req)
	if err != nil {
		return nil, err
	}
	logger.Debug("prepared artifacts", "units", len(p.units), "data_files", len(p.data))

	// 4. Diff the artifact set against the deployment record.
	changes, err := e.ledger.Diff(ctx, name, p.artifacts, req.Force)
	if err != nil {
		return nil, err
	}

	// 5. Deploy the changed artifacts.
	var changedArtifacts []plan.Artifact
	var changedPaths []string
	for _, a := range p.artifacts {
		if changes.Changed[a.Path] {
			changedArtifacts = append(changedArtifacts, a)
			changedPaths = append(changedPaths, a.Path)
		}
	}
	if err := e.deployer.Apply(ctx, changedArtifacts); err != nil {
		return nil, err
	}
	logger.Info("deployed files", "changed", len(changedArtifacts), "total", len(p.artifacts), "first_deploy", changes.FirstDeploy)

	// 6. Let the quadlet generator verify what was written.
	if changes.AnyChanged {
		if err := e.client.VerifyGenerator(ctx, e.cfg.GeneratorPath); err != nil {
			return nil, err
		}
	}

	// 7. Commit the deployment record. From here on the run counts as
	// deployed even if service convergence fails.
	if err := e.ledger.Commit(ctx, name, runID, p.artifacts); err != nil {
		return nil, err
	}

	// 8. Reload the supervisor so deployed units become visible.
	if err := e.client.DaemonReload(ctx); err != nil {
		return nil, err
	}

	// 9. Converge services onto the requested state.
	mainUnit := plan.MainServiceUnit(name)
	active, err := e.client.IsActive(ctx, mainUnit)
	if err != nil {
		return nil, err
	}
	decision := plan.Decide(req.State, changes.AnyChanged, active)

	var restarted, started []string
	if decision.RestartCascade {
		order, err := systemd.ResolveRestartOrder(ctx, e.client, name)
		if err != nil {
			return nil, err
		}
		for _, unit := range order {
			if err := e.client.Restart(ctx, unit); err != nil {
				return nil, err
			}
			restarted = append(restarted, unit)
		}
	}
	if decision.StartMain {
		if err := e.client.Start(ctx, mainUnit); err != nil {
			return nil, err
		}
		started = append(started, mainUnit)
	}

	logger.Info("deployment complete", "changed", changes.AnyChanged, "restarted", len(restarted), "started", len(started))

	result := &report.DeployResult{
		Application:  name,
		ServiceName:  mainUnit,
		State:        string(req.State),
		RunID:        runID,
		Changed:      changes.AnyChanged,
		FirstDeploy:  changes.FirstDeploy,
		QuadletFiles: p.unitNames(),
		DataFiles:    p.dataPaths(),
		ChangedFiles: changedPaths,
		Restarted:    restarted,
		Started:      started,
		Message:      resultMessage(len(changedArtifacts), restarted, started),
	}
	return result, nil
}

// =============================================================================
// Render Preview
// =============================================================================

// Render runs validation, rendering and preprocessing only, and reports what a
// deploy would write. It touches neither the host paths, the ledger, nor the
// supervisor.
func (e *Engine) Render(ctx context.Context, req Request) (*report.RenderResult, error) {
	name, err := resolveName(req)
	if err != nil {
		return nil, err
	}

	p, err := e.prepare(name, req)
	if err != nil {
		return nil, err
	}

	files := make([]report.RenderedFile, 0, len(p.artifacts))
	for _, a := range p.artifacts {
		files = append(files, report.RenderedFile{
			Path:    a.Path,
			Mode:    fmt.Sprintf("%04o", uint32(a.Mode)),
			Content: string(a.Content),
		})
	}

	return &report.RenderResult{
		Application: name,
		ServiceName: plan.MainServiceUnit(name),
		Files:       files,
		Variables:   p.placeholders,
	}, nil
}

// =============================================================================
// Pipeline
// =============================================================================

// prepared is the pipeline output before any host mutation.
type prepared struct {
	units        []*quadlet.Unit
	data         []plan.DataFile
	artifacts    []plan.Artifact
	placeholders []string
}

func (p *prepared) unitNames() []string {
	var out []string
	for _, a := range p.artifacts {
		if a.Class == plan.ClassUnit {
			out = append(out, a.Rel)
		}
	}
	return out
}

func (p *prepared) dataPaths() []string {
	var out []string
	for _, a := range p.artifacts {
		if a.Class != plan.ClassUnit {
			out = append(out, a.Rel)
		}
	}
	return out
}

// prepare scans, renders and preprocesses the source tree into the artifact
// set. Pure with respect to the host: the only I/O is reading the sources.
func (e *Engine) prepare(name string, req Request) (*prepared, error) {
	if _, err := os.Stat(req.SourceDir); err != nil {
		return nil, appdir.NewLayoutError(req.SourceDir, "source directory not found", err)
	}

	layout, err := appdir.Scan(os.DirFS(req.SourceDir))
	if err != nil {
		return nil, err
	}

	variables := vars.Merge(req.Vars, map[string]string{vars.AppNameVar: name})
	siblings := layout.BaseNames()
	// The synthetic application-name variable is always supplied, so it does
	// not count as a placeholder the caller must provide.
	seen := map[string]bool{vars.AppNameVar: true}
	var placeholders []string

	p := &prepared{}
	for _, uf := range layout.Units {
		for _, v := range render.ExtractVariables(uf.Raw) {
			if !seen[v] {
				seen[v] = true
				placeholders = append(placeholders, v)
			}
		}
		rendered, err := e.renderer.Render(uf.FileName, uf.Raw, variables)
		if err != nil {
			return nil, err
		}
		u, err := quadlet.Parse(uf.FileName, rendered)
		if err != nil {
			return nil, err
		}
		quadlet.Preprocess(u, name, siblings, e.cfg.DataRoot)
		p.units = append(p.units, u)
	}

	for _, af := range layout.Aux {
		for _, v := range render.ExtractVariables(af.Raw) {
			if !seen[v] {
				seen[v] = true
				placeholders = append(placeholders, v)
			}
		}
		rendered, err := e.renderer.Render(af.SourcePath(), af.Raw, variables)
		if err != nil {
			return nil, err
		}
		p.data = append(p.data, plan.DataFile{
			Class:   af.Class,
			Unit:    af.Unit,
			RelPath: af.RelPath,
			Content: rendered,
		})
	}

	p.artifacts = plan.BuildArtifacts(name, p.units, p.data, plan.Paths{
		UnitsRoot: e.cfg.UnitsRoot,
		DataRoot:  e.cfg.DataRoot,
	})
	sort.Strings(placeholders)
	p.placeholders = placeholders
	return p, nil
}

// =============================================================================
// Helpers
// =============================================================================

func resolveName(req Request) (string, error) {
	name := req.Name
	if name == "" {
		name = appdir.DeriveName(req.SourceDir)
	}
	if err := appdir.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func resultMessage(changed int, restarted, started []string) string {
	switch {
	case len(restarted) > 0:
		return fmt.Sprintf("%d files changed, %d services restarted", changed, len(restarted))
	case len(started) > 0:
		return fmt.Sprintf("%d files changed, main service started", changed)
	case changed > 0:
		return fmt.Sprintf("%d files changed", changed)
	}
	return "no changes"
}
