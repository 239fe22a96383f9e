// Package config owns the sync profile: the yaml file describing one remote
// target plus the directories and options for synchronization. The core
// only ever reads profiles; persistence stays here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"remote-sync/internal/sshx"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "remote-sync.yaml"

// Profile is one remote synchronization target. Read-only input to the sync
// engine and the remote session.
type Profile struct {
	ProjectName string `yaml:"project_name"`
	Username    string `yaml:"username"`
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	PrivateKey  string `yaml:"privateKey"`
	LocalPath   string `yaml:"localPath"`
	RemotePath  string `yaml:"remotePath"`
	// Editable gates writes through the filesystem façade; the remote
	// session itself does not enforce permissions.
	Editable bool        `yaml:"editable"`
	Sync     SyncOptions `yaml:"sync"`
}

type SyncOptions struct {
	Excludes     []string `yaml:"excludes,omitempty"`
	DeleteOnSync bool     `yaml:"delete_on_sync"`
}

// Target maps the profile onto a connection target for the command channel.
func (p *Profile) Target() sshx.Target {
	return sshx.Target{
		Host:         p.Host,
		User:         p.Username,
		Port:         p.Port,
		IdentityFile: expandHome(p.PrivateKey),
	}
}

// Validate checks the profile before any remote operation uses it.
func (p *Profile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Host) == "" {
		problems = append(problems, "host is required")
	}
	if p.Port != "" {
		if n, err := strconv.Atoi(p.Port); err != nil || n < 1 || n > 65535 {
			problems = append(problems, fmt.Sprintf("port %q is not a valid port number", p.Port))
		}
	}
	if strings.TrimSpace(p.LocalPath) == "" {
		problems = append(problems, "localPath is required")
	}
	if len(problems) > 0 {
		return errors.New("invalid profile: " + strings.Join(problems, "; "))
	}
	return nil
}

// ConfigExists reports whether a profile file is present in the working
// directory.
func ConfigExists() bool {
	_, err := os.Stat(ConfigFileName)
	return err == nil
}

// LoadConfig reads and validates the profile from the working directory.
func LoadConfig() (*Profile, error) {
	return LoadConfigFrom(ConfigFileName)
}

func LoadConfigFrom(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(p.LocalPath) {
		if abs, err := filepath.Abs(p.LocalPath); err == nil {
			p.LocalPath = abs
		}
	}
	p.PrivateKey = expandHome(p.PrivateKey)
	return &p, nil
}

const template = `# remote-sync profile
project_name: my-project
username: deploy
host: example.com
port: "22"
privateKey: ~/.ssh/id_ed25519
localPath: ./
remotePath: /home/deploy/my-project
# allow editing remote files through the explorer
editable: false
sync:
  excludes:
    - .git
    - node_modules
  delete_on_sync: false
`

// Save persists the profile back to the working directory. Comments from a
// hand-edited file are not preserved.
func Save(p *Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigFileName, data, 0o644)
}

// WriteTemplate creates a commented starter profile in the working
// directory. Refuses to overwrite an existing one.
func WriteTemplate() error {
	if ConfigExists() {
		return fmt.Errorf("%s already exists", ConfigFileName)
	}
	return os.WriteFile(ConfigFileName, []byte(template), 0o644)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
