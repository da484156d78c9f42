package games

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// steamClientNames are the executable names of the Steam client
var steamClientNames = map[string]bool{
	"steam":     true,
	"steam.exe": true,
	"steam.sh":  true,
}

// normalizeWinePath converts Wine/Proton paths to Linux format
// Handles paths like "Z:\home\user\..." -> "/home/user/..."
func normalizeWinePath(path string) string {
	// Handle Wine/Proton paths with drive letter (e.g., "Z:\home\user\...")
	if len(path) > 2 && path[1] == ':' {
		path = path[2:]
	}
	return strings.ReplaceAll(path, `\`, `/`)
}

// processInfo is the part of a running process the library looks at
type processInfo struct {
	name    string
	exe     string
	cmdline string
}

// listProcesses snapshots the running processes. Fields the OS refuses to
// reveal are left empty.
func listProcesses(ctx context.Context) ([]processInfo, error) {
	processes, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]processInfo, 0, len(processes))
	for _, p := range processes {
		var info processInfo
		info.name, _ = p.NameWithContext(ctx)
		info.exe, _ = p.ExeWithContext(ctx)
		info.cmdline, _ = p.CmdlineWithContext(ctx)
		infos = append(infos, info)
	}
	return infos, nil
}

// steamRunning reports whether any process is the Steam client
func steamRunning(procs []processInfo) bool {
	for _, p := range procs {
		if steamClientNames[strings.ToLower(p.name)] {
			return true
		}
		if p.exe != "" && steamClientNames[strings.ToLower(filepath.Base(p.exe))] {
			return true
		}
	}
	return false
}

// runningInPath reports whether any process executable is within the install path
func runningInPath(procs []processInfo, installPath string) bool {
	if installPath == "" {
		return false
	}
	for _, p := range procs {
		// Check exe first (native Linux format)
		if p.exe != "" && strings.HasPrefix(p.exe, installPath) {
			return true
		}
		// Check cmdline for Wine/Proton paths
		if p.cmdline != "" && strings.Contains(normalizeWinePath(p.cmdline), installPath) {
			return true
		}
	}
	return false
}
