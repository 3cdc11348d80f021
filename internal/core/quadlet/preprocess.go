package quadlet

import (
	"path"
	"strings"
)

// PrefixSeparator joins the application name and a resource base name.
// App "myapp" + unit "db" owns the runtime objects named "myapp--db".
const PrefixSeparator = "--"

// ApplyPrefix namespaces a resource name with the application prefix.
// Already-prefixed names pass through unchanged.
func ApplyPrefix(app, name string) string {
	if strings.HasPrefix(name, app+PrefixSeparator) {
		return name
	}
	return app + PrefixSeparator + name
}

// =============================================================================
// Directive Tables
// =============================================================================

// auxMountDirs maps the source-tree directory names to their deployed segment
// under {dataRoot}/{app}/.
var auxMountDirs = map[string]string{
	"init.d":   "init",
	"config.d": "config",
}

// unitRefSuffixes are the token suffixes admitted for the unit-dependency
// directives: any of them may appear in a [Unit] requirement/ordering value.
var unitRefSuffixes = []string{".service", ".container", ".volume", ".network", ".pod", ".kube"}

// directiveSuffixes maps each prefixable directive to the token suffixes that
// mark a token as a resource or unit reference. Volume sources admit the
// resource kinds a mount can name; Network/Pod admit only their own kind.
var directiveSuffixes = map[string][]string{
	"Volume":    {".volume", ".network", ".pod"},
	"Network":   {".network"},
	"Pod":       {".pod"},
	"Wants":     unitRefSuffixes,
	"Requires":  unitRefSuffixes,
	"Requisite": unitRefSuffixes,
	"BindsTo":   unitRefSuffixes,
	"PartOf":    unitRefSuffixes,
	"Upholds":   unitRefSuffixes,
	"Conflicts": unitRefSuffixes,
	"Before":    unitRefSuffixes,
	"After":     unitRefSuffixes,
}

// =============================================================================
// Preprocessor
// =============================================================================

// Preprocess rewrites a parsed unit for namespaced deployment. The passes run
// in a fixed order: auxiliary mount-path substitution, then resource-reference
// prefixing, then default-name injection. The unit is mutated in place.
//
// siblings holds the base names of every unit in the application; a bare
// token is treated as a resource reference only when it names a sibling.
func Preprocess(u *Unit, app string, siblings map[string]bool, dataRoot string) {
	substituteMountPaths(u, app, dataRoot)
	prefixResourceReferences(u, app, siblings)
	injectDefaultName(u, app)
}

// substituteMountPaths rewrites Volume= sources of init.d/config.d (plus
// optional subpath) to the deployed auxiliary directory of this unit. Target
// and option components after the first colon are preserved verbatim. Values
// without a colon carry no host-source component and pass through.
func substituteMountPaths(u *Unit, app, dataRoot string) {
	for _, sec := range u.Sections {
		for i, e := range sec.Entries {
			if e.Key != "Volume" {
				continue
			}
			colon := strings.Index(e.Value, ":")
			if colon < 0 {
				continue
			}
			src, rest := e.Value[:colon], e.Value[colon:]

			dir, sub := src, ""
			if slash := strings.Index(src, "/"); slash >= 0 {
				dir, sub = src[:slash], src[slash+1:]
			}
			segment, ok := auxMountDirs[dir]
			if !ok {
				continue
			}
			deployed := path.Join(dataRoot, app, segment, u.BaseName)
			if sub != "" {
				deployed = path.Join(deployed, sub)
			}
			sec.Entries[i].Value = deployed + rest
		}
	}
}

// prefixResourceReferences applies the application prefix to every token of
// the enumerated directives that names a resource or unit of this
// application. Tokens are space-separated; a colon- or semicolon-delimited
// tail within a token is preserved verbatim.
func prefixResourceReferences(u *Unit, app string, siblings map[string]bool) {
	for _, sec := range u.Sections {
		for i, e := range sec.Entries {
			suffixes, ok := directiveSuffixes[e.Key]
			if !ok {
				continue
			}
			tokens := strings.Fields(e.Value)
			if len(tokens) == 0 {
				continue
			}
			changed := false
			for j, tok := range tokens {
				head, rest := tok, ""
				if cut := strings.IndexAny(tok, ":;"); cut >= 0 {
					head, rest = tok[:cut], tok[cut:]
				}
				if !refersToResource(head, app, suffixes, siblings) {
					continue
				}
				tokens[j] = app + PrefixSeparator + head + rest
				changed = true
			}
			if changed {
				sec.Entries[i].Value = strings.Join(tokens, " ")
			}
		}
	}
}

// refersToResource reports whether a token head should receive the
// application prefix: not empty, not an absolute path, not already prefixed,
// and either carrying an admitted suffix or naming a sibling unit.
func refersToResource(head, app string, suffixes []string, siblings map[string]bool) bool {
	if head == "" || strings.HasPrefix(head, "/") {
		return false
	}
	if strings.HasPrefix(head, app+PrefixSeparator) {
		return false
	}
	for _, s := range suffixes {
		if strings.HasSuffix(head, s) {
			return true
		}
	}
	return siblings[head]
}

// injectDefaultName inserts ContainerName/PodName/VolumeName/NetworkName =
// {app}--{base} as the first entry of the unit's primary section when the key
// is absent. An explicit name always wins. Kube units get no injection, and
// a missing primary section is left alone.
func injectDefaultName(u *Unit, app string) {
	nk, ok := namingKeys[u.Kind]
	if !ok {
		return
	}
	sec := u.Section(nk.Section)
	if sec == nil || sec.HasKey(nk.Key) {
		return
	}
	sec.InsertFirst(nk.Key, app+PrefixSeparator+u.BaseName)
}
