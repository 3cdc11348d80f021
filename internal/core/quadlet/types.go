package quadlet

import (
	"sort"
	"strings"
)

// =============================================================================
// Unit Kinds
// =============================================================================

// Kind identifies the quadlet unit type, derived from the file suffix.
type Kind string

const (
	KindContainer Kind = "container"
	KindVolume    Kind = "volume"
	KindNetwork   Kind = "network"
	KindPod       Kind = "pod"
	KindKube      Kind = "kube"
)

// kindsBySuffix maps file suffixes to unit kinds.
var kindsBySuffix = map[string]Kind{
	".container": KindContainer,
	".volume":    KindVolume,
	".network":   KindNetwork,
	".pod":       KindPod,
	".kube":      KindKube,
}

// KindForSuffix returns the unit kind for a file suffix like ".container".
func KindForSuffix(suffix string) (Kind, bool) {
	k, ok := kindsBySuffix[suffix]
	return k, ok
}

// Suffix returns the file suffix for the kind, including the dot.
func (k Kind) Suffix() string {
	return "." + string(k)
}

// Suffixes returns all quadlet file suffixes in sorted order.
func Suffixes() []string {
	out := make([]string, 0, len(kindsBySuffix))
	for s := range kindsBySuffix {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// namingKeys maps a kind to its primary section and the name directive the
// generator consults for the runtime object name. Kube units have neither: the
// pod spec inside the referenced YAML names its objects.
var namingKeys = map[Kind]struct {
	Section string
	Key     string
}{
	KindContainer: {Section: "Container", Key: "ContainerName"},
	KindPod:       {Section: "Pod", Key: "PodName"},
	KindVolume:    {Section: "Volume", Key: "VolumeName"},
	KindNetwork:   {Section: "Network", Key: "NetworkName"},
}

// =============================================================================
// Unit Model
// =============================================================================

// Unit is one parsed quadlet descriptor. Sections keep insertion order, keys
// may repeat, and comment/blank lines are preserved so the deployed file stays
// human-diffable against the source.
type Unit struct {
	Kind     Kind
	BaseName string // file name without the kind suffix

	// Preamble holds comment/blank lines before the first section header.
	Preamble []string

	Sections []*Section
}

// Section is one [Name] block of a unit file.
type Section struct {
	Name    string
	Entries []Entry
}

// Entry is one line of a section: either a Key=Value directive or a preserved
// raw line (comment or blank), in which case Key is empty and Raw holds the
// original text.
type Entry struct {
	Key   string
	Value string
	Raw   string
}

// IsDirective reports whether the entry is a Key=Value directive.
func (e Entry) IsDirective() bool {
	return e.Key != ""
}

// FileName returns the quadlet file name, e.g. "main.container".
func (u *Unit) FileName() string {
	return u.BaseName + u.Kind.Suffix()
}

// Section returns the named section, or nil. Section names are matched
// case-sensitively, per systemd unit syntax.
func (u *Unit) Section(name string) *Section {
	for _, s := range u.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// HasKey reports whether the section carries at least one directive with the key.
func (s *Section) HasKey(key string) bool {
	for _, e := range s.Entries {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Values returns the values of every directive with the key, in order.
func (s *Section) Values(key string) []string {
	var out []string
	for _, e := range s.Entries {
		if e.Key == key {
			out = append(out, e.Value)
		}
	}
	return out
}

// InsertFirst places a directive before all existing entries of the section.
func (s *Section) InsertFirst(key, value string) {
	s.Entries = append([]Entry{{Key: key, Value: value}}, s.Entries...)
}

// =============================================================================
// Serialization
// =============================================================================

// String renders the unit back to file form. Directives print as Key=Value,
// preserved lines verbatim, section headers as [Name]. Output ends with a
// newline.
func (u *Unit) String() string {
	var b strings.Builder
	for _, line := range u.Preamble {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, s := range u.Sections {
		b.WriteByte('[')
		b.WriteString(s.Name)
		b.WriteByte(']')
		b.WriteByte('\n')
		for _, e := range s.Entries {
			if e.IsDirective() {
				b.WriteString(e.Key)
				b.WriteByte('=')
				b.WriteString(e.Value)
			} else {
				b.WriteString(e.Raw)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
