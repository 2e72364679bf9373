package internal

import (
	"clip-queue/domain"
	"clip-queue/errors"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultQueuePort = 21991
	DefaultQueueName = "default"
)

// Settings are the persisted queue preferences. Role tells `clipqueue run`
// whether to host, join or stay off.
type Settings struct {
	Role       domain.Role `toml:"role"`
	Host       string      `toml:"host"`
	Port       int         `toml:"port"`
	Password   string      `toml:"password"`
	QueueName  string      `toml:"queue_name"`
	MemberName string      `toml:"member_name"`
}

func DefaultSettings() Settings {
	return Settings{Role: domain.RoleOff, Port: DefaultQueuePort, QueueName: DefaultQueueName}
}

// LoadSettings reads the TOML file at path. A missing file yields the
// defaults and exists=false.
func LoadSettings(path string) (Settings, bool, error) {
	settings := DefaultSettings()
	file, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return settings, false, nil
		}
		return Settings{}, false, fmt.Errorf("open settings: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(&settings); err != nil {
		return Settings{}, true, fmt.Errorf("parse settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, true, err
	}
	return settings, true, nil
}

// SaveSettings writes the file atomically and readable by the owner only, as it holds the password.
func SaveSettings(path string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory %q: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func (s Settings) Validate() error {
	switch s.Role {
	case domain.RoleOff, domain.RoleHosting, domain.RoleConnected:
	default:
		return fmt.Errorf("%w: role must be off, hosting or connected, got %q", errors.ErrInvalidRequest, s.Role)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", errors.ErrInvalidRequest, s.Port)
	}
	if s.Role == domain.RoleConnected && strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("%w: a host is required to join", errors.ErrInvalidRequest)
	}
	return nil
}
