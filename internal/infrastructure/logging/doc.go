// Package logging provides structured logging for cuebridge.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version fields:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
