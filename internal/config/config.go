package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits bounds a single reduction pass. Zero values are replaced with
// the defaults by Normalize; a negative GuesserDepth disables guessing.
type Limits struct {
	// MaxSteps caps the number of worklist steps before the pass is
	// abandoned as too complex.
	MaxSteps int `yaml:"max_steps"`

	// CartesianProductLimit caps the size of the option product when a
	// union argument is distributed.
	CartesianProductLimit int `yaml:"cartesian_product_limit"`

	// GuesserDepth controls speculative result guessing for cyclic
	// instances. Negative disables it. Zero is reserved as unset and
	// Normalize replaces it with the default; the shallowest
	// configurable threshold is 1.
	GuesserDepth int `yaml:"guesser_depth"`

	// TraversalLimit bounds recursion depth for graph walks.
	TraversalLimit int `yaml:"traversal_limit"`

	// UserFuncTimeout bounds a single user-defined function invocation.
	UserFuncTimeout time.Duration `yaml:"user_func_timeout"`
}

// UnmarshalYAML accepts Go duration strings ("250ms", "2s") for the
// timeout field; bare integers would otherwise be read as nanoseconds.
func (l *Limits) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		MaxSteps              int    `yaml:"max_steps"`
		CartesianProductLimit int    `yaml:"cartesian_product_limit"`
		GuesserDepth          int    `yaml:"guesser_depth"`
		TraversalLimit        int    `yaml:"traversal_limit"`
		UserFuncTimeout       string `yaml:"user_func_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	l.MaxSteps = raw.MaxSteps
	l.CartesianProductLimit = raw.CartesianProductLimit
	l.GuesserDepth = raw.GuesserDepth
	l.TraversalLimit = raw.TraversalLimit
	if raw.UserFuncTimeout != "" {
		d, err := time.ParseDuration(raw.UserFuncTimeout)
		if err != nil {
			return fmt.Errorf("user_func_timeout: %w", err)
		}
		l.UserFuncTimeout = d
	}
	return nil
}

const (
	DefaultMaxSteps              = 1_000_000
	DefaultCartesianProductLimit = 5_000
	DefaultGuesserDepth          = -1
	DefaultTraversalLimit        = 512
	DefaultUserFuncTimeout       = 2 * time.Second
)

// DefaultLimits returns the standard production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSteps:              DefaultMaxSteps,
		CartesianProductLimit: DefaultCartesianProductLimit,
		GuesserDepth:          DefaultGuesserDepth,
		TraversalLimit:        DefaultTraversalLimit,
		UserFuncTimeout:       DefaultUserFuncTimeout,
	}
}

// Normalize fills in defaults for unset fields.
func (l Limits) Normalize() Limits {
	d := DefaultLimits()
	if l.MaxSteps == 0 {
		l.MaxSteps = d.MaxSteps
	}
	if l.CartesianProductLimit == 0 {
		l.CartesianProductLimit = d.CartesianProductLimit
	}
	if l.GuesserDepth == 0 {
		l.GuesserDepth = d.GuesserDepth
	}
	if l.TraversalLimit == 0 {
		l.TraversalLimit = d.TraversalLimit
	}
	if l.UserFuncTimeout == 0 {
		l.UserFuncTimeout = d.UserFuncTimeout
	}
	return l
}

// LoadLimits reads limits from a YAML file and applies defaults.
func LoadLimits(path string) (Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, fmt.Errorf("read limits file: %w", err)
	}
	var l Limits
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Limits{}, fmt.Errorf("parse limits file %s: %w", path, err)
	}
	return l.Normalize(), nil
}
