package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoConfig = errors.New("no config selected")

const DefaultLabel = "Default"

func ConfigRoot() string {
	// Windows
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "readmanga")
	}

	// Linux/macOS XDG
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "readmanga")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "readmanga")
}

// Store is a directory of labeled YAML profiles plus a pointer file naming
// the active one.
type Store struct {
	Root string
}

func DefaultStore() *Store {
	return &Store{Root: ConfigRoot()}
}

func (s *Store) ConfigsDir() string {
	return filepath.Join(s.Root, "configs")
}

func (s *Store) currentLabelFile() string {
	return filepath.Join(s.Root, "current_config")
}

func (s *Store) pathFor(label string) string {
	return filepath.Join(s.ConfigsDir(), label+".yaml")
}

func (s *Store) ensureDirs() error {
	return os.MkdirAll(s.ConfigsDir(), 0755)
}

func (s *Store) setCurrent(label string) error {
	return os.WriteFile(s.currentLabelFile(), []byte(label), 0644)
}

func (s *Store) CurrentLabel() (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	b, err := os.ReadFile(s.currentLabelFile())
	if os.IsNotExist(err) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func (s *Store) ActiveConfigPath() (string, error) {
	label, err := s.CurrentLabel()
	if err != nil {
		return "", err
	}
	if label == "" {
		return "", ErrNoConfig
	}

	return s.pathFor(label), nil
}

// ConfigPathByLabel resolves a profile label to its file, failing when the
// profile does not exist.
func (s *Store) ConfigPathByLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", errors.New("label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.pathFor(label)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("config %q does not exist", label)
	}

	return path, nil
}

type ConfigInfo struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

func (s *Store) ListConfigs() ([]ConfigInfo, error) {
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.ConfigsDir())
	if err != nil {
		return nil, err
	}

	activeLabel, _ := s.CurrentLabel()
	var out []ConfigInfo

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		label := strings.TrimSuffix(name, ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(s.ConfigsDir(), name),
			Active: label == activeLabel,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Store) SwitchConfig(label string) error {
	path, err := s.ConfigPathByLabel(label)
	if err != nil {
		return err
	}
	if _, err := loadYAML(path); err != nil {
		return fmt.Errorf("config %q is not valid YAML: %w", label, err)
	}

	return s.setCurrent(strings.TrimSpace(label))
}

// CreateConfig writes cfg under a new label. Existing profiles are never
// overwritten.
func (s *Store) CreateConfig(label string, cfg *Config) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", errors.New("label cannot be empty")
	}
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.pathFor(label)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config %q already exists", label)
	}

	if err := SaveYAML(cfg, path); err != nil {
		return "", err
	}

	return path, nil
}

func (s *Store) RenameConfig(oldLabel, newLabel string) error {
	if strings.TrimSpace(newLabel) == "" {
		return errors.New("new label cannot be empty")
	}

	oldPath, err := s.ConfigPathByLabel(oldLabel)
	if err != nil {
		return err
	}

	newPath := s.pathFor(newLabel)
	if _, err := os.Stat(newPath); err == nil {
		return fmt.Errorf("config %q already exists", newLabel)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}

	if active, _ := s.CurrentLabel(); active == oldLabel {
		return s.setCurrent(newLabel)
	}

	return nil
}

// RemoveConfig deletes a profile. Removing the active profile makes Default
// active again; switched reports that.
func (s *Store) RemoveConfig(label string) (switched bool, err error) {
	if strings.TrimSpace(label) == "" {
		return false, errors.New("label cannot be empty")
	}
	if label == DefaultLabel {
		return false, errors.New("cannot remove the Default config")
	}

	path, err := s.ConfigPathByLabel(label)
	if err != nil {
		return false, err
	}

	if active, _ := s.CurrentLabel(); active == label {
		if err := s.SwitchConfig(DefaultLabel); err != nil {
			return false, fmt.Errorf("failed switching to Default: %w", err)
		}
		switched = true
	}

	return switched, os.Remove(path)
}

// InitDefaultConfig creates Default.yaml and activates it. If the file is
// already there it is only activated and os.ErrExist is returned.
func (s *Store) InitDefaultConfig() (string, error) {
	if err := s.ensureDirs(); err != nil {
		return "", err
	}

	path := s.pathFor(DefaultLabel)
	if _, err := os.Stat(path); err == nil {
		return path, errors.Join(os.ErrExist, s.setCurrent(DefaultLabel))
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, s.setCurrent(DefaultLabel)
}

// ResetActive overwrites the active profile with the defaults.
func (s *Store) ResetActive() (string, error) {
	path, err := s.ActiveConfigPath()
	if err != nil {
		return "", err
	}

	return path, SaveYAML(DefaultConfig(), path)
}
