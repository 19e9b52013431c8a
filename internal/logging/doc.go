// Package logging builds the zap loggers used by the carpart binaries.
//
// Levels are debug, info, warn and error. The level normally comes from the
// log_level config key and can be overridden with CARPART_LOG_LEVEL.
package logging
