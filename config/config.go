package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opd-ai/neteq"
	"github.com/opd-ai/neteq/simnet"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFile is wrapped by every load and validation error.
var ErrInvalidFile = errors.New("invalid configuration file")

// File is the root of a configuration file.
type File struct {
	Engine     neteq.Config    `yaml:"engine"`
	Simulation simnet.Scenario `yaml:"simulation"`
	Logging    Logging         `yaml:"logging"`
	Metrics    Metrics         `yaml:"metrics"`
}

// Logging selects the logrus level and output format.
type Logging struct {
	Level  string `yaml:"level"`  // panic, fatal, error, warn, info, debug or trace
	Format string `yaml:"format"` // text or json
}

// Metrics configures the Prometheus endpoint. An empty address disables it.
type Metrics struct {
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Engine:  neteq.DefaultConfig(),
		Logging: Logging{Level: "info", Format: "text"},
		Metrics: Metrics{Path: "/metrics"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (File, error) {
	logrus.WithFields(logrus.Fields{
		"function": "config.Load",
		"path":     path,
	}).Debug("Loading configuration file")

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (File, error) {
	f := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.Engine.Validate(); err != nil {
		return fmt.Errorf("%w: engine: %w", ErrInvalidFile, err)
	}
	if err := f.Simulation.Validate(); err != nil {
		return fmt.Errorf("%w: simulation: %w", ErrInvalidFile, err)
	}
	if _, err := parseLevel(f.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalidFile, err)
	}
	if _, err := formatter(f.Logging.Format); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalidFile, err)
	}
	if f.Metrics.Address != "" && !strings.HasPrefix(f.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics: path %q must start with /", ErrInvalidFile, f.Metrics.Path)
	}
	return nil
}

// ApplyLogging configures logger according to l. An empty level or
// format leaves that setting unchanged.
func ApplyLogging(logger *logrus.Logger, l Logging) error {
	level, err := parseLevel(l.Level)
	if err != nil {
		return err
	}
	f, err := formatter(l.Format)
	if err != nil {
		return err
	}

	if l.Level != "" {
		logger.SetLevel(level)
	}
	if f != nil {
		logger.SetFormatter(f)
	}
	return nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(s)
}

func formatter(s string) (logrus.Formatter, error) {
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "text":
		return &logrus.TextFormatter{FullTimestamp: true}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", s)
	}
}
