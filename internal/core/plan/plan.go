// Package plan turns validated application layouts into concrete deployment
// artifacts and decides which service transitions follow a deploy pass.
// Part of the Functional Core - no I/O.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/artpar/quadapp/internal/core/appdir"
	"github.com/artpar/quadapp/internal/core/quadlet"
)

// =============================================================================
// Naming
// =============================================================================

// UnitFileName returns the deployed quadlet file name for one unit:
// the application prefix applied to the source file name.
func UnitFileName(app string, u *quadlet.Unit) string {
	return quadlet.ApplyPrefix(app, u.FileName())
}

// ServiceUnit returns the systemd service generated for a unit base name,
// e.g. app "shop", base "main" -> "shop--main.service".
func ServiceUnit(app, base string) string {
	return quadlet.ApplyPrefix(app, base) + ".service"
}

// MainServiceUnit returns the service generated for the main container.
func MainServiceUnit(app string) string {
	return ServiceUnit(app, appdir.MainBaseName)
}

// =============================================================================
// Artifacts
// =============================================================================

// FileMode is the mode every deployed file gets. Directories use DirMode.
const (
	FileMode fs.FileMode = 0o644
	DirMode  fs.FileMode = 0o755
)

// ArtifactClass says which root an artifact deploys under.
type ArtifactClass string

const (
	ClassUnit   ArtifactClass = "unit"
	ClassInit   ArtifactClass = "init"
	ClassConfig ArtifactClass = "config"
)

// Artifact is one file the deployer will write.
type Artifact struct {
	Class   ArtifactClass
	Path    string // absolute destination
	Rel     string // destination relative to its root, for reporting
	Content []byte
	Mode    fs.FileMode
}

// Digest returns the hex SHA-256 digest of the artifact content. The ledger
// compares this against the recorded digest to detect changes.
func (a Artifact) Digest() string {
	sum := sha256.Sum256(a.Content)
	return hex.EncodeToString(sum[:])
}

// DataFile is one rendered auxiliary payload awaiting artifact placement.
type DataFile struct {
	Class   appdir.AuxClass
	Unit    string
	RelPath string
	Content string
}

// Paths are the deployment roots.
type Paths struct {
	UnitsRoot string // quadlet descriptors, default /etc/containers/systemd
	DataRoot  string // auxiliary payloads, default /srv
}

// BuildArtifacts places preprocessed units and rendered auxiliary files at
// their destination paths. Units land at
// {unitsRoot}/{app}--{base}.{suffix}; auxiliary files land below
// {dataRoot}/{app}/{init|config}/{unit}/. Order is stable: units in input
// order, then auxiliary files in input order.
func BuildArtifacts(app string, units []*quadlet.Unit, data []DataFile, paths Paths) []Artifact {
	out := make([]Artifact, 0, len(units)+len(data))

	for _, u := range units {
		name := UnitFileName(app, u)
		out = append(out, Artifact{
			Class:   ClassUnit,
			Path:    filepath.Join(paths.UnitsRoot, name),
			Rel:     name,
			Content: []byte(u.String()),
			Mode:    FileMode,
		})
	}

	for _, d := range data {
		rel := filepath.Join(app, string(d.Class), d.Unit, d.RelPath)
		out = append(out, Artifact{
			Class:   ArtifactClass(d.Class),
			Path:    filepath.Join(paths.DataRoot, rel),
			Rel:     rel,
			Content: []byte(d.Content),
			Mode:    FileMode,
		})
	}

	return out
}

// =============================================================================
// Requested State
// =============================================================================

// State is the caller-requested service state after deployment.
type State string

const (
	StateInstalled State = "installed"
	StateStarted   State = "started"
	StateRestarted State = "restarted"
)

// ErrUnknownState means the requested state is not one of the three.
var ErrUnknownState = errors.New("unknown requested state")

// ParseState validates a requested state string.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateInstalled, StateStarted, StateRestarted:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: %q (want installed, started or restarted)", ErrUnknownState, s)
}

// =============================================================================
// Transition Decision
// =============================================================================

// Decision is the service work that follows a deploy pass. The supervisor
// reload is unconditional and not part of the decision.
type Decision struct {
	// RestartCascade resolves the dependency graph and restarts every
	// intra-application service in order, the main service last.
	RestartCascade bool
	// StartMain starts the main service without touching dependencies.
	StartMain bool
}

// Decide maps requested state and observed facts onto service actions:
//
//	installed              -> files only
//	started, unchanged     -> start main only when inactive
//	started, changed       -> active: restart cascade; inactive: start main
//	restarted              -> restart cascade, unconditionally
func Decide(state State, changed, mainActive bool) Decision {
	switch state {
	case StateRestarted:
		return Decision{RestartCascade: true}
	case StateStarted:
		if changed && mainActive {
			return Decision{RestartCascade: true}
		}
		if !mainActive {
			return Decision{StartMain: true}
		}
	}
	return Decision{}
}
