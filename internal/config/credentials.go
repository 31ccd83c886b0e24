package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
)

// Credentials for the generation service.
type Credentials struct {
	APIKey  string
	BaseURL string
	Model   string
	// File is the env file that was consulted.
	File string
}

// EnvFileName returns ".env", or ".env.<llm>" for a named profile.
func EnvFileName(llm string) string {
	if llm == "" {
		return ".env"
	}
	return ".env." + llm
}

// LoadCredentials reads API_KEY, BASE_URL and MODEL from the env file for
// llm in dir. Each value may be prefixed with TAGWRITING_, which takes
// precedence; the process environment takes precedence over the file. A
// missing file is not an error; missing values are reported when the
// generation client is built.
func LoadCredentials(dir, llm string) (*Credentials, error) {
	path := filepath.Join(dir, EnvFileName(llm))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, tagerrors.WrapConfig(err, tagerrors.CodeConfigRead, "cannot read env file").WithPath(path)
	}

	lookup := func(name string) string {
		for _, key := range []string{EnvPrefix + "_" + name, name} {
			if value := strings.TrimSpace(os.Getenv(key)); value != "" {
				return value
			}
		}
		for _, key := range []string{EnvPrefix + "_" + name, name} {
			if value := strings.TrimSpace(v.GetString(strings.ToLower(key))); value != "" {
				return value
			}
		}
		return ""
	}

	return &Credentials{
		APIKey:  lookup("API_KEY"),
		BaseURL: lookup("BASE_URL"),
		Model:   lookup("MODEL"),
		File:    path,
	}, nil
}
