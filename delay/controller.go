package delay

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Config defines the controller bounds and tuning.
type Config struct {
	// Bounds
	MinDelayMs        uint32 // Lower clamp on the target
	MaxDelayMs        uint32 // Upper clamp on the target
	AdditionalDelayMs uint32 // Fixed margin added after clamping

	// Target formula
	JitterMultiplier float64 // Safety factor converting jitter into a margin (default: 3)
	LossMarginMs     float64 // Extra delay at 100% loss, scaled linearly (default: 80ms)

	// Hysteresis
	IncreaseStepMs float64 // Max rise per update (default: 5ms)
	DecreaseStepMs float64 // Max fall per update (default: 1ms)
}

// DefaultConfig returns a configuration with the stock tuning and a
// 20-200ms delay window.
func DefaultConfig() *Config {
	return &Config{
		MinDelayMs:        20,
		MaxDelayMs:        200,
		AdditionalDelayMs: 0,
		JitterMultiplier:  3,
		LossMarginMs:      80,
		IncreaseStepMs:    5,
		DecreaseStepMs:    1,
	}
}

// Controller publishes the target buffer delay.
type Controller struct {
	config Config

	raw     float64 // last clamped raw target
	current float64 // rate-limited target within [min, max]
	updates uint64
}

// NewController creates a controller starting at MinDelayMs.
//
// Zero tuning fields are replaced by their defaults; the bounds are used
// as given and must satisfy MinDelayMs <= MaxDelayMs.
func NewController(config Config) (*Controller, error) {
	if config.MinDelayMs > config.MaxDelayMs {
		return nil, fmt.Errorf("min delay %dms exceeds max delay %dms", config.MinDelayMs, config.MaxDelayMs)
	}

	defaults := DefaultConfig()
	if config.JitterMultiplier <= 0 {
		config.JitterMultiplier = defaults.JitterMultiplier
	}
	if config.LossMarginMs < 0 {
		config.LossMarginMs = 0
	} else if config.LossMarginMs == 0 {
		config.LossMarginMs = defaults.LossMarginMs
	}
	if config.IncreaseStepMs <= 0 {
		config.IncreaseStepMs = defaults.IncreaseStepMs
	}
	if config.DecreaseStepMs <= 0 {
		config.DecreaseStepMs = defaults.DecreaseStepMs
	}

	c := &Controller{
		config:  config,
		raw:     float64(config.MinDelayMs),
		current: float64(config.MinDelayMs),
	}

	logrus.WithFields(logrus.Fields{
		"function":          "NewController",
		"min_delay_ms":      config.MinDelayMs,
		"max_delay_ms":      config.MaxDelayMs,
		"additional_ms":     config.AdditionalDelayMs,
		"jitter_multiplier": config.JitterMultiplier,
		"loss_margin_ms":    config.LossMarginMs,
	}).Debug("Delay controller created")

	return c, nil
}

// Update recomputes the target from the latest jitter estimate and loss
// rate and returns the new published target.
func (c *Controller) Update(jitterMs, lossRate float64) uint32 {
	before := c.TargetDelayMs()

	c.raw = c.clamp(jitterMs*c.config.JitterMultiplier + c.lossMargin(lossRate))
	diff := c.raw - c.current
	if diff > 0 {
		c.current += math.Min(diff, c.config.IncreaseStepMs)
	} else if diff < 0 {
		c.current -= math.Min(-diff, c.config.DecreaseStepMs)
	}
	c.current = c.clamp(c.current)
	c.updates++

	after := c.TargetDelayMs()
	if after != before {
		logrus.WithFields(logrus.Fields{
			"function":  "Controller.Update",
			"jitter_ms": jitterMs,
			"loss_rate": lossRate,
			"raw_ms":    c.raw,
			"old_ms":    before,
			"new_ms":    after,
		}).Debug("Target delay changed")
	}
	return after
}

// TargetDelayMs returns the published target including the additional delay.
func (c *Controller) TargetDelayMs() uint32 {
	return uint32(math.Round(c.current)) + c.config.AdditionalDelayMs
}

// RawTargetMs returns the clamped, unsmoothed target of the last update,
// excluding the additional delay.
func (c *Controller) RawTargetMs() float64 {
	return c.raw
}

// Updates returns the number of recomputations since creation.
func (c *Controller) Updates() uint64 {
	return c.updates
}

// Config returns a copy of the effective configuration.
func (c *Controller) Config() Config {
	return c.config
}

// lossMargin grows linearly with the loss rate; more buffering lowers the
// concealment frequency.
func (c *Controller) lossMargin(lossRate float64) float64 {
	if lossRate <= 0 || math.IsNaN(lossRate) {
		return 0
	}
	if lossRate > 1 {
		lossRate = 1
	}
	return lossRate * c.config.LossMarginMs
}

func (c *Controller) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return float64(c.config.MinDelayMs)
	}
	return math.Max(float64(c.config.MinDelayMs), math.Min(float64(c.config.MaxDelayMs), v))
}
