// Package config provides configuration structures and utilities for a11yscan.
// It defines the run options, the YAML configuration file with per-target
// overrides, and the JSONC route manifests that list the pages to audit.
package config
