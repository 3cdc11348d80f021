// Package vars loads template variables from YAML documents and merges the
// configured sources into the final substitution map. Pure functions - callers
// read the files and pass bytes in.
package vars

import (
	"errors"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/quadapp/internal/core/crypto"
)

// AppNameVar is the synthetic variable carrying the resolved application name.
// It is always injected last and cannot be overridden.
const AppNameVar = "QUADLET_APP_NAME"

// =============================================================================
// Variables File
// =============================================================================

// ParseVarsFile parses a flat YAML mapping of variable names to scalar values.
// Sealed values (enc:...) are decrypted with sealKey; passing a nil key while
// the file contains sealed values is an error.
func ParseVarsFile(fileName string, data []byte, sealKey []byte) (map[string]string, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, NewVarsError(fileName, "", "document root is not a mapping", ErrNotMapping)
		}
		return nil, NewVarsError(fileName, "", "invalid YAML syntax", err)
	}
	return coerceMapping(fileName, "", raw, sealKey)
}

// =============================================================================
// Secrets Document
// =============================================================================

// SecretsDoc is the parsed secrets document: one global section plus one
// section per application. Values are already unsealed.
type SecretsDoc struct {
	global map[string]string
	apps   map[string]map[string]string
}

// Global returns the variables shared by every application.
func (d *SecretsDoc) Global() map[string]string {
	if d == nil {
		return nil
	}
	return d.global
}

// ForApp returns the variables of one application section, or nil when the
// document has no section for it.
func (d *SecretsDoc) ForApp(name string) map[string]string {
	if d == nil {
		return nil
	}
	return d.apps[name]
}

// ParseSecrets parses the secrets document:
//
//	global:
//	  SMTP_PASSWORD: enc:...
//	apps:
//	  shop:
//	    DB_PASSWORD: enc:...
//
// Sealed values are decrypted with sealKey during parsing.
func ParseSecrets(fileName string, data []byte, sealKey []byte) (*SecretsDoc, error) {
	var raw struct {
		Global map[string]interface{}            `yaml:"global"`
		Apps   map[string]map[string]interface{} `yaml:"apps"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewVarsError(fileName, "", "invalid YAML syntax", err)
	}

	doc := &SecretsDoc{apps: make(map[string]map[string]string, len(raw.Apps))}

	global, err := coerceMapping(fileName, "global", raw.Global, sealKey)
	if err != nil {
		return nil, err
	}
	doc.global = global

	for app, section := range raw.Apps {
		vars, err := coerceMapping(fileName, "apps."+app, section, sealKey)
		if err != nil {
			return nil, err
		}
		doc.apps[app] = vars
	}
	return doc, nil
}

// =============================================================================
// Merging
// =============================================================================

// Merge flattens the sources into one map, later sources winning. Nil sources
// are skipped.
func Merge(sources ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			out[k] = v
		}
	}
	return out
}

// ParseAssignment splits a KEY=VALUE command-line argument.
func ParseAssignment(arg string) (string, string, error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return "", "", NewVarsError("", "", "expected KEY=VALUE, got "+strconv.Quote(arg), nil)
	}
	return key, value, nil
}

// =============================================================================
// Scalar Coercion
// =============================================================================

func coerceMapping(fileName, prefix string, raw map[string]interface{}, sealKey []byte) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for key, val := range raw {
		ctxKey := key
		if prefix != "" {
			ctxKey = prefix + "." + key
		}
		s, err := coerceScalar(fileName, ctxKey, val)
		if err != nil {
			return nil, err
		}
		s, err = unsealValue(fileName, ctxKey, s, sealKey)
		if err != nil {
			return nil, err
		}
		out[key] = s
	}
	return out, nil
}

func coerceScalar(fileName, key string, val interface{}) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", NewVarsError(fileName, key, "value must be a scalar", ErrNotScalar)
	}
}

func unsealValue(fileName, key, value string, sealKey []byte) (string, error) {
	if !crypto.IsSealed(value) {
		return value, nil
	}
	if len(sealKey) == 0 {
		return "", NewVarsError(fileName, key, "sealed value but no passphrase configured", ErrSealedNoKey)
	}
	plain, err := crypto.Unseal(value, sealKey)
	if err != nil {
		return "", NewVarsError(fileName, key, "unseal failed", err)
	}
	return plain, nil
}
