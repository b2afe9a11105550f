// Package config loads and validates cuebridge configuration.
//
// Values come from built-in defaults, then the YAML file, then CUEBRIDGE_*
// environment variables. Secrets (MQTT password, InfluxDB token) are best
// supplied through the environment.
//
// Modules are configured as a list; each entry names a module type, an
// instance name (multi-instance types only) and a free-form settings map
// that the module decodes itself:
//
//	modules:
//	  - type: companion
//	    name: stage
//	    settings:
//	      host: 10.0.0.20
//	      port: 16759
//	  - type: midi
//	    settings:
//	      output: /dev/snd/midiC1D0
package config
