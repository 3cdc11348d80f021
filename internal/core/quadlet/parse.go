package quadlet

import (
	"path"
	"strings"
)

// =============================================================================
// File Names
// =============================================================================

// ParseFileName splits a quadlet file name into base name and kind.
// Returns false for names without a recognized quadlet suffix.
func ParseFileName(fileName string) (string, Kind, bool) {
	ext := path.Ext(fileName)
	kind, ok := KindForSuffix(ext)
	if !ok {
		return "", "", false
	}
	return strings.TrimSuffix(fileName, ext), kind, true
}

// =============================================================================
// Parser
// =============================================================================

// Parse parses a rendered quadlet descriptor into a Unit.
//
// The syntax is the systemd unit subset the generator consumes: [Section]
// headers, Key=Value directives, comments starting with # or ;. Directive
// keys and values are trimmed; comment and blank lines are preserved
// verbatim. Malformed input (unterminated section header, a directive before
// any section, a non-comment line without =) is a PreprocessError.
func Parse(fileName, content string) (*Unit, error) {
	base, kind, ok := ParseFileName(fileName)
	if !ok {
		return nil, NewPreprocessError(fileName, 0, "unknown quadlet file suffix", ErrUnknownSuffix)
	}

	unit := &Unit{Kind: kind, BaseName: base}
	var current *Section

	lines := strings.Split(content, "\n")
	// A trailing newline yields one empty final element; drop it so blank
	// lines inside the file are still preserved.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";"):
			if current == nil {
				unit.Preamble = append(unit.Preamble, line)
			} else {
				current.Entries = append(current.Entries, Entry{Raw: line})
			}

		case strings.HasPrefix(trimmed, "["):
			if !strings.HasSuffix(trimmed, "]") {
				return nil, NewPreprocessError(fileName, lineNo, "unterminated section header", ErrUnterminatedSection)
			}
			name := trimmed[1 : len(trimmed)-1]
			if name == "" {
				return nil, NewPreprocessError(fileName, lineNo, "empty section name", ErrMalformedDirective)
			}
			current = &Section{Name: name}
			unit.Sections = append(unit.Sections, current)

		default:
			eq := strings.Index(line, "=")
			if eq < 0 {
				if current == nil {
					return nil, NewPreprocessError(fileName, lineNo, "directive outside any section", ErrDirectiveOutsideSection)
				}
				return nil, NewPreprocessError(fileName, lineNo, "line is not a Key=Value directive", ErrMalformedDirective)
			}
			if current == nil {
				return nil, NewPreprocessError(fileName, lineNo, "directive outside any section", ErrDirectiveOutsideSection)
			}
			key := strings.TrimSpace(line[:eq])
			if key == "" {
				return nil, NewPreprocessError(fileName, lineNo, "directive has an empty key", ErrMalformedDirective)
			}
			current.Entries = append(current.Entries, Entry{
				Key:   key,
				Value: strings.TrimSpace(line[eq+1:]),
			})
		}
	}

	return unit, nil
}
