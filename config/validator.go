package config

import (
	"fmt"

	hxerr "hostext/internal/errors"
)

// Validate checks that the configuration is internally consistent.
// Problems are reported as *errors.ConfigError with a hint where one
// helps.
func (c *Config) Validate() error {
	for _, name := range c.Extensions {
		if !IsKnownExtension(name) {
			return &hxerr.ConfigError{
				Field:   "extensions",
				Value:   name,
				Message: "unknown extension",
				Hint:    "use --list to see the bundled extensions",
			}
		}
	}

	if c.Frames < 0 {
		return &hxerr.ConfigError{
			Field:   "frames",
			Value:   c.Frames,
			Message: "must not be negative",
			Hint:    "use 0 to disable the video pipeline",
		}
	}
	if c.FrameInterval < 0 {
		return &hxerr.ConfigError{Field: "frame-interval", Value: c.FrameInterval, Message: "must not be negative"}
	}
	if err := validateDimension("width", c.Width); err != nil {
		return err
	}
	if err := validateDimension("height", c.Height); err != nil {
		return err
	}

	if c.AgentSocket != "" && len(c.AgentKeys) > 0 {
		return &hxerr.ConfigError{
			Field:   "agent-key",
			Message: "cannot be combined with --agent-sock",
			Hint:    "load keys into the upstream agent instead",
		}
	}
	return nil
}

func validateDimension(field string, v int) error {
	switch {
	case v < 2 || v > MaxFrameDimension:
		return &hxerr.ConfigError{
			Field:   field,
			Value:   v,
			Message: fmt.Sprintf("must be between 2 and %d", MaxFrameDimension),
		}
	case v%2 != 0:
		return &hxerr.ConfigError{
			Field:   field,
			Value:   v,
			Message: "must be even",
			Hint:    "I420 frames subsample chroma by two in each direction",
		}
	}
	return nil
}
