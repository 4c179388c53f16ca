package config

import (
	"bytes"
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvConfigDir names the directory holding application.properties.
	EnvConfigDir     = "FERN_CONFIG_DIR"
	DefaultConfigDir = "/etc/fern"
	PropertiesFile   = "application.properties"
	envPrefix        = "FERN"
)

//go:embed fallback.properties
var fallbackProperties []byte

// Properties is the layered key/value configuration: built-in fallback, then
// the properties file in the config directory, then FERN_* environment
// variables, where key "db.host" is read from FERN_DB_HOST.
type Properties struct {
	v         *viper.Viper
	configDir string
	logger    ectologger.Logger
}

// LoadProperties reads the fallback and then the properties file of the
// config directory. The directory is configDir when given, else
// FERN_CONFIG_DIR (which a .env in the working directory may set), else
// /etc/fern. A missing file is logged, not an error.
func LoadProperties(configDir string, logger ectologger.Logger) (*Properties, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if configDir == "" {
		configDir = os.Getenv(EnvConfigDir)
	}
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	// keys are flat: "cas.url" and "cas.url.login" may both hold values
	codecs := viper.NewCodecRegistry()
	if err := codecs.RegisterCodec(propertiesFormat, propertiesCodec{}); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to register the properties codec")
	}
	v := viper.NewWithOptions(viper.KeyDelimiter("::"), viper.WithCodecRegistry(codecs))
	v.SetConfigType(propertiesFormat)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(fallbackProperties)); err != nil {
		return nil, pkgerrors.Wrap(err, "fallback configuration is unavailable")
	}

	path := filepath.Join(configDir, PropertiesFile)
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.WithField("path", path).Warnf("No configuration file found at %s. Built-in defaults will be used", path)
	case err != nil:
		logger.WithError(err).WithField("path", path).Errorf("Error reading %s. Built-in defaults will be used", path)
	default:
		logger.WithField("path", path).Infof("Loading configuration from %s", path)
		if err := v.MergeConfig(bytes.NewReader(file)); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to parse %s", path)
		}
	}

	return &Properties{v: v, configDir: configDir, logger: logger}, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pkgerrors.Wrapf(err, "failed to load %s", path)
	}
	return nil
}

func (p *Properties) ConfigDir() string {
	return p.configDir
}

// Lookup returns the raw value of key and whether it is set anywhere.
func (p *Properties) Lookup(key string) (string, bool) {
	value := p.v.Get(key)
	if value == nil {
		return "", false
	}
	return p.v.GetString(key), true
}

// GetString returns key's value or def. A key with neither a value nor a
// default is logged.
func (p *Properties) GetString(key, def string) string {
	value, ok := p.Lookup(key)
	if ok {
		return value
	}
	if def == "" {
		p.logger.WithField("key", key).Warnf("Property '%s' is not specified and has no default", key)
	}
	return def
}

// GetInt returns key's value, or def when it is missing or not an integer.
func (p *Properties) GetInt(key string, def int) int {
	value, ok := p.Lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		p.logger.WithField("key", key).Warnf("Invalid integer property in configuration: %s", key)
		return def
	}
	return n
}

// GetStringList splits key's value on whitespace. A missing key is logged
// and yields def.
func (p *Properties) GetStringList(key string, def []string) []string {
	value, ok := p.Lookup(key)
	if !ok {
		p.logger.WithField("key", key).Warnf("Property not found in configuration: %s", key)
		return def
	}
	return strings.Fields(value)
}

// GetURL returns key's value with a trailing slash, or "" when unset.
func (p *Properties) GetURL(key string) string {
	value := p.GetString(key, "")
	if value == "" || strings.HasSuffix(value, "/") {
		return value
	}
	return value + "/"
}

// Stage is the deployment stage, DEVELOPMENT unless configured.
func (p *Properties) Stage() string {
	return p.GetString("fern.stage", "DEVELOPMENT")
}

// Viper exposes the underlying store for decoding into Config.
func (p *Properties) Viper() *viper.Viper {
	return p.v
}
