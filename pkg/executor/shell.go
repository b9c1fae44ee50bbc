package executor

import (
	"fmt"
	"sort"
	"strings"
)

// Quote wraps s in single quotes for /bin/sh, escaping embedded quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// script assembles the final shell line for a Command. Environment exports
// come first so they survive the sudo wrapping, then the directory change,
// then the command itself.
func script(cmd Command) string {
	line := cmd.Line

	if len(cmd.Dir) > 0 {
		line = fmt.Sprintf("cd %s && %s", Quote(cmd.Dir), line)
	}

	if len(cmd.Env) > 0 {
		keys := make([]string, 0, len(cmd.Env))
		for k := range cmd.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		exports := make([]string, 0, len(keys))
		for _, k := range keys {
			exports = append(exports, fmt.Sprintf("export %s=%s", k, Quote(cmd.Env[k])))
		}
		line = strings.Join(exports, "; ") + "; " + line
	}

	if cmd.Privileged {
		line = "sudo -n sh -c " + Quote(line)
	}

	return line
}

// redacted assembles the same line as script with every environment value
// masked. Secrets travel through Env, so this is the only form that may be
// logged.
func redacted(cmd Command) string {
	if len(cmd.Env) == 0 {
		return script(cmd)
	}
	masked := cmd
	masked.Env = make(map[string]string, len(cmd.Env))
	for k := range cmd.Env {
		masked.Env[k] = "***REDACTED***"
	}
	return script(masked)
}
