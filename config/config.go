package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dbcopy/dynamodb"
)

const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"

	envPrefix    = "DBCOPY"
	keyDelimiter = "::"
)

type Connection struct {
	Engine   string `json:"engine" mapstructure:"engine"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DefaultPort returns the server port used when a connection leaves it unset.
func DefaultPort(engine string) int {
	if engine == EnginePostgres {
		return 5432
	}
	return 3306
}

func (c *Connection) applyDefaults() {
	if c.Engine == "" {
		c.Engine = EngineMySQL
	}
	c.Engine = strings.ToLower(c.Engine)
	if c.Port == 0 {
		c.Port = DefaultPort(c.Engine)
	}
}

func (c Connection) Validate() error {
	switch c.Engine {
	case EngineMySQL, EnginePostgres:
	default:
		return fmt.Errorf("unsupported engine: %s", c.Engine)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// Defaults holds the copy options used when no flag overrides them.
type Defaults struct {
	Threads      int    `json:"threads" mapstructure:"threads"`
	RowLimit     int64  `json:"rowLimit" mapstructure:"rowLimit"`
	CopyTriggers bool   `json:"copyTriggers" mapstructure:"copyTriggers"`
	Timeout      string `json:"timeout" mapstructure:"timeout"`
}

// TimeoutDuration parses Timeout. An empty timeout means no time budget.
func (d Defaults) TimeoutDuration() (time.Duration, error) {
	if d.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(d.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", d.Timeout, err)
	}
	return timeout, nil
}

type Config struct {
	Connections map[string]Connection      `json:"connections" mapstructure:"connections"`
	History     map[string]dynamodb.Config `json:"history" mapstructure:"history"`
	Defaults    Defaults                   `json:"defaults" mapstructure:"defaults"`

	path string
}

type ConnectionString struct {
	Client string
	Env    string
}

func ParseConnectionString(connStr string) (*ConnectionString, error) {
	parts := strings.Split(connStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid connection string format: %s (expected client/env)", connStr)
	}

	return &ConnectionString{
		Client: parts[0],
		Env:    parts[1],
	}, nil
}

func (cs ConnectionString) String() string {
	return connectionKey(cs.Client, cs.Env)
}

// Config keys are case insensitive.
func connectionKey(client, env string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s", client, env))
}

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	v.SetDefault("defaults"+keyDelimiter+"threads", 1)
	v.SetDefault("defaults"+keyDelimiter+"rowLimit", 0)
	v.SetDefault("defaults"+keyDelimiter+"copyTriggers", true)
	v.SetDefault("defaults"+keyDelimiter+"timeout", "")
	return v
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(getConfigPath())
}

// LoadConfigFrom reads the config file at path, creating a default one when
// it does not exist. DBCOPY_DEFAULTS_* environment variables override the
// file defaults.
func LoadConfigFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if _, err := createDefaultConfig(path); err != nil {
			return nil, err
		}
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.path = path

	if config.Defaults.Threads < 1 {
		config.Defaults.Threads = 1
	}
	for key, conn := range config.Connections {
		conn.applyDefaults()
		config.Connections[key] = conn
	}

	return &config, nil
}

func (c *Config) SaveConfig() error {
	configPath := c.path
	if configPath == "" {
		configPath = getConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) GetConnection(client, env string) (*Connection, error) {
	key := connectionKey(client, env)
	conn, exists := c.Connections[key]
	if !exists {
		return nil, fmt.Errorf("connection config not found for %s", key)
	}
	conn.applyDefaults()
	return &conn, nil
}

func (c *Config) SetConnection(client, env string, conn Connection) {
	if c.Connections == nil {
		c.Connections = make(map[string]Connection)
	}
	conn.applyDefaults()
	c.Connections[connectionKey(client, env)] = conn
}

func (c *Config) GetHistoryConfig(client, env string) (*dynamodb.Config, error) {
	key := connectionKey(client, env)
	config, exists := c.History[key]
	if !exists {
		return nil, fmt.Errorf("history config not found for %s", key)
	}
	return &config, nil
}

func (c *Config) SetHistoryConfig(client, env string, config dynamodb.Config) {
	if c.History == nil {
		c.History = make(map[string]dynamodb.Config)
	}
	c.History[connectionKey(client, env)] = config
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

func getConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".dbcopy/config.json"
	}
	return filepath.Join(homeDir, ".dbcopy", "config.json")
}

func createDefaultConfig(configPath string) (*Config, error) {
	config := &Config{
		Connections: map[string]Connection{
			"example/local": {
				Engine:   EngineMySQL,
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "password",
				Database: "testdb",
			},
			"example/copy": {
				Engine:   EngineMySQL,
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "password",
				Database: "testdb_copy",
			},
		},
		History: map[string]dynamodb.Config{
			"example/local": {
				Region:    "us-east-1",
				TableName: "dbcopy-runs",
				Endpoint:  "http://localhost:8000",
			},
		},
		Defaults: Defaults{
			Threads:      1,
			CopyTriggers: true,
		},
		path: configPath,
	}

	if err := config.SaveConfig(); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}

	fmt.Printf("Created default config at %s\n", configPath)
	fmt.Println("Please edit the config file to add your database connections.")

	return config, nil
}

// GetConfiguredConnections returns the sorted keys of the database
// connections and of the run history tables.
func (c *Config) GetConfiguredConnections() ([]string, []string) {
	var connections, history []string

	for key := range c.Connections {
		connections = append(connections, key)
	}

	for key := range c.History {
		history = append(history, key)
	}

	sort.Strings(connections)
	sort.Strings(history)
	return connections, history
}
