package subexec

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
)

const (
	langKey     = "LANG"
	defaultLang = "C"
)

// composeEnv builds the child's environment from the parent's, with overrides
// applied on top. LANG is C unless the overrides name it. The parent's own
// environment is never modified.
func composeEnv(overrides map[string]string) []string {
	return mergeEnv(os.Environ(), overrides, runtime.GOOS == "windows")
}

// mergeEnv applies overrides to parent. With fold set, keys match regardless of
// case, as Windows treats Path and PATH as the same variable.
func mergeEnv(parent []string, overrides map[string]string, fold bool) []string {
	norm := func(k string) string { return k }
	if fold {
		norm = strings.ToUpper
	}

	merged := make(map[string]string, len(overrides)+1)
	maps.Copy(merged, overrides)
	named := make(map[string]bool, len(merged))
	for k := range merged {
		named[norm(k)] = true
	}
	if !named[norm(langKey)] {
		merged[langKey] = defaultLang
		named[norm(langKey)] = true
	}

	env := make([]string, 0, len(parent)+len(merged))
	for _, kv := range parent {
		k, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if named[norm(k)] {
			continue
		}
		env = append(env, kv)
	}
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		env = append(env, k+"="+merged[k])
	}
	return env
}
