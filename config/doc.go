// Copyright (c) Flowgate Authors.
// Licensed under the MIT License.

// Package config loads Flowgate configuration with a fixed precedence:
// built-in defaults, then an optional YAML file, then FLOWGATE_*
// environment variables.
package config
