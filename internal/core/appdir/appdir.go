package appdir

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/artpar/quadapp/internal/core/quadlet"
)

// =============================================================================
// Source Tree Constants
// =============================================================================

const (
	// QuadletsDir holds the unit descriptor files of an application.
	QuadletsDir = "quadlets"

	// InitDirName and ConfigDirName hold per-unit auxiliary payloads.
	InitDirName   = "init.d"
	ConfigDirName = "config.d"

	// MainBaseName is the unit every application must provide as a container.
	MainBaseName = "main"
)

// AuxClass distinguishes the two auxiliary payload trees.
type AuxClass string

const (
	AuxInit   AuxClass = "init"
	AuxConfig AuxClass = "config"
)

// auxDirs maps source directory names to their class.
var auxDirs = []struct {
	Dir   string
	Class AuxClass
}{
	{InitDirName, AuxInit},
	{ConfigDirName, AuxConfig},
}

// auxMountableKinds are the unit kinds an auxiliary directory may belong to.
var auxMountableKinds = map[quadlet.Kind]bool{
	quadlet.KindContainer: true,
	quadlet.KindPod:       true,
}

// =============================================================================
// Layout Types
// =============================================================================

// UnitFile is one quadlet descriptor found under quadlets/, pre-render.
type UnitFile struct {
	FileName string // e.g. "main.container"
	BaseName string // e.g. "main"
	Kind     quadlet.Kind
	Raw      string
}

// AuxFile is one auxiliary payload file, pre-render.
type AuxFile struct {
	Class   AuxClass
	Unit    string // owning unit base name
	RelPath string // path below the unit directory, e.g. "10-schema.sql"
	Raw     string
}

// SourcePath returns the app-relative source path of the auxiliary file.
func (a AuxFile) SourcePath() string {
	dir := InitDirName
	if a.Class == AuxConfig {
		dir = ConfigDirName
	}
	return path.Join(dir, a.Unit, a.RelPath)
}

// Layout is the validated inventory of an application source directory.
type Layout struct {
	Units []UnitFile
	Aux   []AuxFile
}

// Main returns the application's main container unit.
func (l *Layout) Main() *UnitFile {
	for i := range l.Units {
		if l.Units[i].BaseName == MainBaseName && l.Units[i].Kind == quadlet.KindContainer {
			return &l.Units[i]
		}
	}
	return nil
}

// BaseNames returns the set of unit base names, used to resolve bare resource
// references during preprocessing.
func (l *Layout) BaseNames() map[string]bool {
	out := make(map[string]bool, len(l.Units))
	for _, u := range l.Units {
		out[u.BaseName] = true
	}
	return out
}

// =============================================================================
// Application Names
// =============================================================================

var (
	appNameSingle = regexp.MustCompile(`^[a-z]$`)
	appNameMulti  = regexp.MustCompile(`^[a-z][a-z0-9_-]*[a-z0-9]$`)
)

// DeriveName derives the application name from the source directory path:
// its basename, lowercased. The result still needs ValidateName.
func DeriveName(sourceDir string) string {
	return strings.ToLower(filepath.Base(filepath.Clean(sourceDir)))
}

// ValidateName checks the application name grammar: lowercase alphanumerics
// with interior hyphens/underscores, starting with a letter, not ending with
// a separator. Single-letter names are allowed.
func ValidateName(name string) error {
	if appNameSingle.MatchString(name) || appNameMulti.MatchString(name) {
		return nil
	}
	return NewLayoutError("", fmt.Sprintf("invalid application name %q", name), ErrInvalidAppName)
}

// =============================================================================
// Scanner
// =============================================================================

// Scan inventories and validates an application source directory. Rules:
// quadlets/ must exist and hold exactly one main unit of kind container;
// every subdirectory of init.d/ and config.d/ must unambiguously name a
// container or pod unit by bare base name. File contents are read raw, to be
// rendered later.
func Scan(fsys fs.FS) (*Layout, error) {
	entries, err := fs.ReadDir(fsys, QuadletsDir)
	if err != nil {
		return nil, NewLayoutError(QuadletsDir, "quadlets directory not found", ErrMissingQuadletsDir)
	}

	layout := &Layout{}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		base, kind, ok := quadlet.ParseFileName(ent.Name())
		if !ok {
			// Unrelated files (README, editor droppings) are not ours.
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(QuadletsDir, ent.Name()))
		if err != nil {
			return nil, NewLayoutError(path.Join(QuadletsDir, ent.Name()), "read quadlet file", err)
		}
		layout.Units = append(layout.Units, UnitFile{
			FileName: ent.Name(),
			BaseName: base,
			Kind:     kind,
			Raw:      string(raw),
		})
	}

	if err := validateMain(layout); err != nil {
		return nil, err
	}

	for _, aux := range auxDirs {
		if err := scanAuxDir(fsys, layout, aux.Dir, aux.Class); err != nil {
			return nil, err
		}
	}

	return layout, nil
}

// validateMain enforces the exactly-one-main-container rule.
func validateMain(layout *Layout) error {
	var mains []UnitFile
	for _, u := range layout.Units {
		if u.BaseName == MainBaseName {
			mains = append(mains, u)
		}
	}
	switch {
	case len(mains) == 0:
		return NewLayoutError(QuadletsDir, "main.container unit not found", ErrMissingMainUnit)
	case len(mains) > 1:
		return NewLayoutError(QuadletsDir, "main must be a single container unit", ErrDuplicateMainUnit)
	case mains[0].Kind != quadlet.KindContainer:
		return NewLayoutError(path.Join(QuadletsDir, mains[0].FileName), "main unit must be a container", ErrMissingMainUnit)
	}
	return nil
}

// scanAuxDir validates one of init.d/ or config.d/ and collects its files.
func scanAuxDir(fsys fs.FS, layout *Layout, dirName string, class AuxClass) error {
	entries, err := fs.ReadDir(fsys, dirName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return NewLayoutError(dirName, "read auxiliary directory", err)
	}

	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		subPath := path.Join(dirName, name)

		if _, ok := quadlet.KindForSuffix(path.Ext(name)); ok {
			return NewLayoutError(subPath, "auxiliary directory must use the bare unit base name", ErrSuffixedAuxDir)
		}

		matches := 0
		for _, u := range layout.Units {
			if u.BaseName == name && auxMountableKinds[u.Kind] {
				matches++
			}
		}
		switch {
		case matches == 0:
			return NewLayoutError(subPath, "orphan auxiliary directory: no container or pod unit named "+name, ErrOrphanAuxDir)
		case matches > 1:
			return NewLayoutError(subPath, "auxiliary directory matches more than one unit", ErrAmbiguousAuxDir)
		}

		err := fs.WalkDir(fsys, subPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			raw, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			layout.Aux = append(layout.Aux, AuxFile{
				Class:   class,
				Unit:    name,
				RelPath: strings.TrimPrefix(p, subPath+"/"),
				Raw:     string(raw),
			})
			return nil
		})
		if err != nil {
			return NewLayoutError(subPath, "read auxiliary files", err)
		}
	}
	return nil
}
