// Copyright (c) Flowgate Authors.
// Licensed under the MIT License.

// Package history stores finished workflow execution results, capped
// per workflow. The in-memory store serves single-process setups and
// tests; the Redis store lets several engine processes share one
// history.
package history
