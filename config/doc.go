// Package config loads neteq-sim configuration files.
//
// A file has four sections, all optional:
//
//	engine:
//	  sample_rate: 48000
//	  channels: 1
//	  max_packets_in_buffer: 50
//	  min_delay_ms: 20
//	  max_delay_ms: 200
//	simulation:
//	  duration: 10s
//	  jitter_ms: 30
//	  loss_rate: 0.02
//	logging:
//	  level: info
//	  format: text
//	metrics:
//	  address: ":9100"
//
// Missing keys keep the values from Default. Unknown keys are errors so
// that typos do not silently fall back to defaults.
package config
