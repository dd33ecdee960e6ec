// Package secrets resolves externally provided secret values at process
// startup. Each logical secret is looked up in an ordered list of sources,
// first match wins:
//
//  1. an orchestrator-injected file under the runtime secrets dir
//     (e.g. /run/secrets/<name>),
//  2. a local development file (<dir>/<name>.txt),
//  3. an environment variable (<NAME>, upper-cased).
//
// A secret that resolves nowhere is a startup failure; the server must not
// begin serving with missing key material.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
)

const (
	DefaultRuntimeDir = "/run/secrets"
	DefaultLocalDir   = "/app/secrets"
)

// Logical secret names resolved by the server.
const (
	NameDBPassword    = "db_password"
	NameMFAKey        = "mfa_encryption_key"
	NameCredentialKey = "credential_encryption_key"
)

// Resolver locates secret values by logical name.
type Resolver struct {
	// RuntimeDir is the orchestrator-injected secrets directory.
	RuntimeDir string
	// LocalDir is the local development fallback directory.
	LocalDir string
	// lookupEnv is a seam for tests; defaults to os.LookupEnv.
	lookupEnv func(string) (string, bool)
}

// NewResolver returns a Resolver over the given directories. Empty arguments
// fall back to the defaults.
func NewResolver(runtimeDir, localDir string) *Resolver {
	if runtimeDir == "" {
		runtimeDir = DefaultRuntimeDir
	}
	if localDir == "" {
		localDir = DefaultLocalDir
	}
	return &Resolver{RuntimeDir: runtimeDir, LocalDir: localDir, lookupEnv: os.LookupEnv}
}

// EnvName converts a logical secret name into its environment variable form:
// upper-cased, with every non-alphanumeric rune replaced by '_'.
func EnvName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return mapped
}

// Resolve returns the trimmed value of the named secret, consulting the
// runtime file, the local file, and the environment in that order. If no
// source yields a non-empty value, it returns an error wrapping
// common.ErrorSecretUnresolved.
func (r *Resolver) Resolve(name string) (string, error) {
	paths := []string{
		filepath.Join(r.RuntimeDir, name),
		filepath.Join(r.LocalDir, name+".txt"),
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("reading secret %s from %s: %w", name, p, err)
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}

	lookup := r.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvName(name)); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("secret %q not found in %s, %s or $%s: %w",
		name, paths[0], paths[1], EnvName(name), common.ErrorSecretUnresolved)
}
