// Package tools locates the external binaries the system shells out to.
// Sync must degrade gracefully: prefer the incremental tool (rsync) but
// never block the user entirely when only the basic copy tool (scp) exists.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

// Names of the external tools the core invokes.
const (
	Rsync  = "rsync"
	Scp    = "scp"
	SSH    = "ssh"
	Keygen = "ssh-keygen"
)

// Info describes one resolved tool.
type Info struct {
	Available bool
	// Path is the local invocation path. When UsesCompatLayer is set it is
	// the wrapper binary (wsl.exe) and the tool name is passed through it.
	Path            string
	UsesCompatLayer bool
}

// Resolver memoizes tool lookups for the process lifetime. The probing seams
// are swappable so tests can simulate any installation layout.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]Info

	lookPath    func(string) (string, error)
	fileExists  func(string) bool
	compatProbe func(tool string) bool
	goos        string
}

func NewResolver() *Resolver {
	return &Resolver{
		cache:       map[string]Info{},
		lookPath:    exec.LookPath,
		fileExists:  fileExists,
		compatProbe: wslHasTool,
		goos:        runtime.GOOS,
	}
}

// Resolve locates a tool. rsync gets the three-strategy search (PATH, then a
// bundled install on Windows, then the WSL compatibility layer); everything
// else is a plain PATH check. Results are memoized; first success wins.
func (r *Resolver) Resolve(name string) Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.cache[name]; ok {
		return info
	}

	var info Info
	if name == Rsync {
		info = r.resolveSyncTool(name)
	} else if path, err := r.lookPath(name); err == nil {
		info = Info{Available: true, Path: path}
	}

	r.cache[name] = info
	return info
}

// ClearCache drops all memoized results. Test isolation only.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]Info{}
}

func (r *Resolver) resolveSyncTool(name string) Info {
	// 1) directly on PATH
	if path, err := r.lookPath(name); err == nil {
		return Info{Available: true, Path: path}
	}

	// 2) bundled install locations, only meaningful where no native POSIX
	// toolchain exists
	if r.goos == "windows" {
		for _, candidate := range bundledLocations(name) {
			if r.fileExists(candidate) {
				return Info{Available: true, Path: candidate}
			}
		}
		// 3) WSL compatibility layer
		if wsl, err := r.lookPath("wsl.exe"); err == nil && r.compatProbe(name) {
			return Info{Available: true, Path: wsl, UsesCompatLayer: true}
		}
	}

	return Info{}
}

// bundledLocations lists known install paths for tools shipped alongside
// other Windows software (Git for Windows, cwRsync dropped next to the
// executable).
func bundledLocations(name string) []string {
	exe := name + ".exe"
	locations := []string{
		filepath.Join(os.Getenv("ProgramFiles"), "Git", "usr", "bin", exe),
		filepath.Join(os.Getenv("ProgramFiles(x86)"), "Git", "usr", "bin", exe),
	}
	if self, err := os.Executable(); err == nil {
		locations = append(locations, filepath.Join(filepath.Dir(self), "bin", exe))
	}
	return locations
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// wslHasTool asks the WSL layer whether the tool is executable inside it.
func wslHasTool(tool string) bool {
	return exec.Command("wsl.exe", "-e", "sh", "-c", "command -v "+tool).Run() == nil
}
