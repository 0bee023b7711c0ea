// Package shell implements the built-in execute_command tool and the
// detection of the user's shell flavour.
package shell

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Kind is the family of shell the user runs ask from.
type Kind string

const (
	PowerShell Kind = "Powershell"
	POSIX      Kind = "POSIX"
)

var (
	powerShellMarkers = []string{"POWERSHELL_DISTRIBUTION_CHANNEL", "PSModulePath", "PSExecutionPolicyPreference"}
	posixMarkers      = []string{"SHELL", "BASH_VERSION", "ZSH_VERSION", "FISH_VERSION"}
)

type detector struct {
	lookupEnv  func(string) (string, bool)
	goos       string
	parentName func() string
}

// DetectKind guesses the shell family from the environment, falling back
// to the name of the parent process.
func DetectKind() Kind {
	return detector{
		lookupEnv:  os.LookupEnv,
		goos:       runtime.GOOS,
		parentName: parentProcessName,
	}.detect()
}

func (d detector) detect() Kind {
	if d.anySet(powerShellMarkers) {
		return PowerShell
	}
	if d.anySet(posixMarkers) {
		return POSIX
	}

	if d.goos == "windows" {
		if comspec, ok := d.lookupEnv("ComSpec"); ok && strings.EqualFold(baseName(comspec), "cmd.exe") {
			return PowerShell
		}
	}

	switch strings.TrimSuffix(strings.ToLower(d.parentName()), ".exe") {
	case "pwsh", "powershell":
		return PowerShell
	default:
		return POSIX
	}
}

func (d detector) anySet(keys []string) bool {
	for _, key := range keys {
		if _, ok := d.lookupEnv(key); ok {
			return true
		}
	}
	return false
}

// baseName handles both separators so Windows paths parse on any host.
func baseName(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return filepath.Base(path)
}
