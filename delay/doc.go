// Package delay converts receive statistics into a target buffer delay.
//
// The raw target is
//
//	raw = jitter_ms * JitterMultiplier + loss_rate * LossMarginMs
//
// clamped to [MinDelayMs, MaxDelayMs]. The published target follows the raw
// value through a rate limiter: it rises by at most IncreaseStepMs and falls
// by at most DecreaseStepMs per update, reacting quickly to degradation and
// recovering slowly. AdditionalDelayMs is added after clamping, so every
// published target lies in [MinDelayMs, MaxDelayMs] + AdditionalDelayMs.
package delay
