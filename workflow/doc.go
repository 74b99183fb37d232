// Copyright (c) Flowgate Authors.
// Licensed under the MIT License.

// Package workflow implements the orchestration engine: workflow
// definitions, dependency graph validation, deterministic topological
// scheduling, per-step retries with backoff, and gate-validated step
// execution.
//
// Definitions are registered once and treated as immutable; executions
// snapshot the definition so concurrent re-registration never disturbs
// an in-flight run. Step work is delegated to external executors
// registered per step type, keeping the engine itself free of any
// model or tool specifics.
package workflow
