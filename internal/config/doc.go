// Package config loads the YAML configuration shared by the carpart CLI and
// the MCP server.
//
// Files are read with environment substitution, so a value may be written
// as ${VAR} or ${VAR:-default}. Every key is optional:
//
//	log_level: info
//	radar:
//	  mode: image          # or video
//	  workers: 0           # 0 = GOMAXPROCS
//	  ideal_areas:
//	    light: 0.03
//	    wheel: 0.07
//	    glass: 0.09
//	    door: 0.04
//	    sideglass: 0.0075
//	  chart:
//	    size: 700
//	    line_color: "#1aaf6c"
//	train:
//	  input_size: 256
//	  channels: [64, 128, 256, 256]
//	  pool: 4
//	  hidden: [256, 64, 16]
//	  outputs: 2
//	  batch_size: 16
//	  epochs: 30
//	  optimizer: sgd       # or adam
//	  learning_rate: 0.01
//	  momentum: 0.9
//	  step_size: 10
//	  gamma: 0.5
//
// The CARPART_LOG_LEVEL environment variable overrides log_level.
package config
