package linker

import (
	"os"
	"path/filepath"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// DefaultPackageManager is used when nothing better can be detected.
const DefaultPackageManager = "yarn"

// maxAncestors bounds the walk up the process tree.
const maxAncestors = 8

var packageManagers = map[string]bool{
	"npm":  true,
	"pnpm": true,
	"yarn": true,
}

// processFinder looks a process up by pid; nil without error means it is gone.
type processFinder func(pid int) (ps.Process, error)

func findProcess(pid int) (ps.Process, error) {
	return ps.FindProcess(pid)
}

// DetectPackageManager picks the tool that is running the install.
// npm_config_user_agent wins, then the nearest package manager among the
// ancestor processes, then DefaultPackageManager.
func DetectPackageManager(getenv func(string) string, find processFinder) string {
	if agent, _, _ := strings.Cut(getenv("npm_config_user_agent"), "/"); packageManagers[agent] {
		return agent
	}

	proc, err := find(os.Getppid())

	for range maxAncestors {
		if err != nil || proc == nil {
			break
		}

		if name := processName(proc.Executable()); packageManagers[name] {
			return name
		}

		if proc.PPid() == proc.Pid() || proc.PPid() <= 0 {
			break
		}

		proc, err = find(proc.PPid())
	}

	return DefaultPackageManager
}

// processName drops the directory and the Windows launcher suffixes.
func processName(executable string) string {
	name := strings.ToLower(filepath.Base(executable))

	for _, suffix := range []string{".exe", ".cmd", ".js", ".cjs"} {
		name = strings.TrimSuffix(name, suffix)
	}

	return name
}
