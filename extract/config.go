package extract

import (
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/verbatim/core"
)

// Supported source drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config is the extraction source configuration file.
type Config struct {
	Source SourceConfig `yaml:"source"`
}

// SourceConfig describes how to reach the CRM database.
type SourceConfig struct {
	Driver   string `yaml:"driver"` // mysql (default) or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// PasswordSecretARN names an AWS Secrets Manager secret holding
	// {"password": "..."}. It takes precedence over Password.
	PasswordSecretARN string `yaml:"password_secret_arn"`

	Database string `yaml:"database"`

	// DSN is a complete data source name (a file path for sqlite) that
	// overrides the connection fields above.
	DSN string `yaml:"dsn"`

	Params         map[string]string `yaml:"params"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	Tables         TableConfig       `yaml:"tables"`

	// RaiseOnWarnings runs MySQL sessions in TRADITIONAL sql_mode, which
	// turns warnings into errors. Ignored when Params sets sql_mode.
	RaiseOnWarnings bool `yaml:"raise_on_warnings"`

	// StripHTML removes markup from descriptions before normalization.
	StripHTML bool `yaml:"strip_html"`
}

// TableConfig maps each provenance to its CRM table.
type TableConfig struct {
	Meetings string `yaml:"meetings"`
	Calls    string `yaml:"calls"`
	Notes    string `yaml:"notes"`
}

// Table returns the table holding rows of provenance p.
func (t TableConfig) Table(p core.Provenance) string {
	switch p {
	case core.ProvenanceMeetings:
		return t.Meetings
	case core.ProvenanceCalls:
		return t.Calls
	case core.ProvenanceNotes:
		return t.Notes
	}
	return ""
}

// DefaultConfig returns a MySQL source on localhost with the stock table names.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	s := &c.Source
	if s.Driver == "" {
		s.Driver = DriverMySQL
	}
	if s.Driver == DriverMySQL {
		if s.Host == "" && s.DSN == "" {
			s.Host = "localhost"
		}
		if s.Port == 0 {
			s.Port = 3306
		}
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = 10 * time.Second
	}
	if s.Tables.Meetings == "" {
		s.Tables.Meetings = string(core.ProvenanceMeetings)
	}
	if s.Tables.Calls == "" {
		s.Tables.Calls = string(core.ProvenanceCalls)
	}
	if s.Tables.Notes == "" {
		s.Tables.Notes = string(core.ProvenanceNotes)
	}
}

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	s := &c.Source
	switch s.Driver {
	case DriverMySQL:
		if s.DSN == "" {
			if s.Database == "" {
				return errors.Mark(errors.New("source.database is required"), ErrConfig)
			}
			if s.Host == "" || s.User == "" {
				return errors.Mark(errors.New("source.host and source.user are required for mysql"), ErrConfig)
			}
		}
		if s.Port <= 0 || s.Port > 65535 {
			return errors.Mark(errors.Newf("source.port must be between 1 and 65535, got %d", s.Port), ErrConfig)
		}
	case DriverSQLite:
		if s.DSN == "" && s.Database == "" {
			return errors.Mark(errors.New("source.dsn or source.database is required for sqlite"), ErrConfig)
		}
	default:
		return errors.Mark(errors.Newf("unknown source.driver %q", s.Driver), ErrConfig)
	}

	for _, p := range core.Provenances {
		if name := s.Tables.Table(p); !tableNameRegex.MatchString(name) {
			return errors.Mark(errors.Newf("source.tables.%s: invalid table name %q", p, name), ErrConfig)
		}
	}
	return nil
}

// DataSourceName returns the database/sql DSN for the configured driver.
func (s *SourceConfig) DataSourceName() string {
	if s.DSN != "" {
		return s.DSN
	}
	if s.Driver == DriverSQLite {
		return s.Database
	}

	mc := mysql.NewConfig()
	mc.User = s.User
	mc.Passwd = s.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	mc.DBName = s.Database
	mc.Timeout = s.ConnectTimeout
	if len(s.Params) > 0 || s.RaiseOnWarnings {
		mc.Params = make(map[string]string, len(s.Params)+1)
		for k, v := range s.Params {
			mc.Params[k] = v
		}
		if _, ok := mc.Params["sql_mode"]; !ok && s.RaiseOnWarnings {
			mc.Params["sql_mode"] = "'TRADITIONAL'"
		}
	}
	return mc.FormatDSN()
}

// LoadConfig reads a source configuration file.
//
// A .env file in the working directory or next to the configuration file is
// loaded first; variables already set in the environment win. YAML files may
// reference variables as ${VAR} or ${VAR:-default}. Files ending in .ini are
// read as legacy configuration with a [MYSQL] section.
func LoadConfig(path string) (*Config, error) {
	loadDotEnv(filepath.Dir(path))

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading config %s", path), ErrConfig)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".ini") {
		cfg, err = parseLegacyINI(data)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "parsing config %s", path), ErrConfig)
		}
	} else if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parsing config %s", path), ErrConfig)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

func loadDotEnv(configDir string) {
	seen := make(map[string]bool)
	for _, dir := range []string{".", configDir} {
		path := filepath.Join(dir, ".env")
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}

// parseLegacyINI reads the [MYSQL] section of an INI file. Key names are
// case-insensitive, indented lines continue the previous value and inline
// comments are not recognized.
func parseLegacyINI(data []byte) (Config, error) {
	var cfg Config
	cfg.Source.Driver = DriverMySQL

	file, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:            true,
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
	}, data)
	if err != nil {
		return cfg, err
	}
	if !file.HasSection("MYSQL") {
		return cfg, errors.New("missing [MYSQL] section")
	}

	sec := file.Section("MYSQL")
	cfg.Source.Host = sec.Key("host").String()
	cfg.Source.User = sec.Key("user").String()
	cfg.Source.Password = sec.Key("password").String()
	cfg.Source.Database = sec.Key("database").String()
	if sec.HasKey("port") {
		if cfg.Source.Port, err = sec.Key("port").Int(); err != nil {
			return cfg, errors.Wrap(err, "port")
		}
	}
	if sec.HasKey("raise_on_warnings") {
		if cfg.Source.RaiseOnWarnings, err = sec.Key("raise_on_warnings").Bool(); err != nil {
			return cfg, errors.Wrap(err, "raise_on_warnings")
		}
	}
	return cfg, nil
}
