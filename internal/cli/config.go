package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/relq/internal/querysql"
)

// EnvPrefix prefixes environment overrides: RELQ_DIALECT, RELQ_DATABASE.
const EnvPrefix = "RELQ"

// Config is the resolved CLI configuration.
// Precedence: flags > RELQ_* environment > relq.yaml > defaults.
type Config struct {
	Schema   string `mapstructure:"schema"`   // CUE file or directory
	Dialect  string `mapstructure:"dialect"`  // sqlite | postgres | mysql
	Database string `mapstructure:"database"` // DSN
	Format   string `mapstructure:"format"`   // text | json
}

var configKeys = []string{"schema", "dialect", "database", "format"}

// LoadConfig resolves the configuration. configFile, when set, must
// exist; otherwise relq.yaml is looked up in "." and $HOME/.config/relq.
// A .env file in the working directory seeds the environment without
// overriding variables that are already set.
func LoadConfig(fs afero.Fs, flags *pflag.FlagSet, configFile string) (*Config, error) {
	if err := loadDotEnv(fs, ".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetDefault("schema", "schema")
	v.SetDefault("dialect", "sqlite")
	v.SetDefault("database", "relq.db")
	v.SetDefault("format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("relq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "relq"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range configKeys {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if _, err := querysql.ForName(cfg.Dialect); err != nil {
		return nil, err
	}
	if !isValidFormat(cfg.Format) {
		return nil, fmt.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	return &cfg, nil
}

func loadDotEnv(fs afero.Fs, name string) error {
	f, err := fs.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for k, val := range env {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, val)
		}
	}
	return nil
}
