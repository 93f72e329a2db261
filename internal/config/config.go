package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
)

// DefaultDashboardPort is the dashboard listen port when the config does
// not set one.
const DefaultDashboardPort = 8745

// Config represents the application configuration.
type Config struct {
	WorkspacePath string  `json:"workspace_path"`
	BoardDBPath   string  `json:"board_db_path,omitempty"`
	DashboardPort int     `json:"dashboard_port,omitempty"`
	Repos         []Repo  `json:"repos"`
	Agents        []Agent `json:"agents"`
	// AuthTokenHash is a bcrypt hash of the dashboard bearer token.
	// Empty disables auth.
	AuthTokenHash string `json:"auth_token_hash,omitempty"`

	path string
	mu   sync.RWMutex
}

// Repo represents a git repository configuration.
type Repo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	// MainBranch overrides default-branch detection when set.
	MainBranch string `json:"main_branch,omitempty"`
}

// Agent represents a coding agent configuration.
type Agent struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	// ResumeFlag is appended with a stored session reference to resume a
	// previous agent session (e.g. "--resume").
	ResumeFlag string `json:"resume_flag,omitempty"`
}

// DefaultPath returns the standard config location, ~/.taskdeck/config.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".taskdeck", "config.json"), nil
}

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads and validates the configuration at path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.path = path

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Expand workspace path (handle ~)
	if cfg.WorkspacePath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.WorkspacePath = filepath.Join(homeDir, cfg.WorkspacePath[1:])
	}

	if cfg.DashboardPort == 0 {
		cfg.DashboardPort = DefaultDashboardPort
	}
	if cfg.BoardDBPath == "" {
		cfg.BoardDBPath = filepath.Join(filepath.Dir(path), "board.db")
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WorkspacePath == "" {
		return fmt.Errorf("%w: workspace_path is required", ErrInvalidConfig)
	}
	for _, repo := range c.Repos {
		if repo.Name == "" {
			return fmt.Errorf("%w: repo name is required", ErrInvalidConfig)
		}
		if repo.URL == "" {
			return fmt.Errorf("%w: repo URL is required for %s", ErrInvalidConfig, repo.Name)
		}
	}
	for _, agent := range c.Agents {
		if agent.Name == "" {
			return fmt.Errorf("%w: agent name is required", ErrInvalidConfig)
		}
		if agent.Command == "" {
			return fmt.Errorf("%w: agent command is required for %s", ErrInvalidConfig, agent.Name)
		}
	}
	return nil
}

// CreateDefault returns a config pre-filled with sensible defaults,
// rooted next to the given config path. It does not write the file.
func CreateDefault(path string) *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		WorkspacePath: filepath.Join(homeDir, "taskdeck-workspaces"),
		BoardDBPath:   filepath.Join(filepath.Dir(path), "board.db"),
		DashboardPort: DefaultDashboardPort,
		Agents: []Agent{
			{Name: "claude", Command: "claude", ResumeFlag: "--resume"},
		},
		path: path,
	}
}

// Save writes the config back to the path it was loaded from.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.path == "" {
		return fmt.Errorf("config has no backing path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(c.path, data, 0644)
}

// GetWorkspacePath returns the workspace directory path.
func (c *Config) GetWorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.WorkspacePath
}

// GetBoardDBPath returns the SQLite board database path.
func (c *Config) GetBoardDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BoardDBPath
}

// GetDashboardPort returns the dashboard listen port.
func (c *Config) GetDashboardPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.DashboardPort == 0 {
		return DefaultDashboardPort
	}
	return c.DashboardPort
}

// GetAuthTokenHash returns the bcrypt hash of the dashboard token, or ""
// when auth is disabled.
func (c *Config) GetAuthTokenHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AuthTokenHash
}

// GetRepos returns the list of repositories.
func (c *Config) GetRepos() []Repo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Repos
}

// GetAgents returns the list of agents.
func (c *Config) GetAgents() []Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Agents
}

// FindRepo finds a repository by name.
func (c *Config) FindRepo(name string) (Repo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, repo := range c.Repos {
		if repo.Name == name {
			return repo, true
		}
	}
	return Repo{}, false
}

// FindAgent finds an agent by name.
func (c *Config) FindAgent(name string) (Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, agent := range c.Agents {
		if agent.Name == name {
			return agent, true
		}
	}
	return Agent{}, false
}
