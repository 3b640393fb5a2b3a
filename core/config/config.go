package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

type Configuration struct {
	configFs         afero.Fs
	configurationDir string

	Prompt       string `json:"prompt" validate:"required"`
	ColorPrompt  bool   `json:"color_prompt"`
	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=0"`

	// OutputMode holds octal permission bits, e.g. "0664".
	OutputMode string `json:"output_mode" validate:"required,filemode"`
	AppLog     string `json:"app_log"`

	ShutdownGrace string `json:"shutdown_grace" validate:"required,duration"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("filemode", func(fl validator.FieldLevel) bool {
		_, err := parseFileMode(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	if err := validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	return validate.Struct(c)
}

func parseFileMode(s string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	if mode&^uint64(os.ModePerm) != 0 {
		return 0, fmt.Errorf("mode %s has bits outside of 0777", s)
	}
	return os.FileMode(mode), nil
}

// FileMode returns the permission bits for files created by redirection.
func (c *Configuration) FileMode() os.FileMode {
	mode, err := parseFileMode(c.OutputMode)
	if err != nil {
		return 0664
	}
	return mode
}

// ShutdownGraceDuration returns how long to wait for jobs on exit.
func (c *Configuration) ShutdownGraceDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownGrace)
	if err != nil {
		return time.Second
	}
	return d
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// Dir returns the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

// HistoryPath returns the line-recall file, or "" to keep it in memory.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" {
		return ""
	}
	if filepath.IsAbs(c.HistoryFile) {
		return c.HistoryFile
	}
	return filepath.Join(c.configurationDir, c.HistoryFile)
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(c.AppLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Configuration {
	out := defaultConfig()
	out.configurationDir = dir
	out.configFs = afero.NewBasePathFs(afero.NewOsFs(), dir)
	return out
}
