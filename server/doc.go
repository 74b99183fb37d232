// Copyright (c) Flowgate Authors.
// Licensed under the MIT License.

// Package server exposes the engine as an MCP tool surface over stdio:
// registering and executing workflows, inspecting active executions and
// history, and evaluating standalone quality gates.
package server
