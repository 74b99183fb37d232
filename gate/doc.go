// Copyright (c) Flowgate Authors.
// Licensed under the MIT License.

// Package gate implements quality gates: named bundles of weighted,
// typed requirements evaluated against step output. A registry pairs
// each requirement kind with a deterministic evaluator and a hint
// generator, aggregates weighted verdicts with contextual leniency for
// late workflow steps, and tracks per-gate usage statistics for the
// process lifetime.
//
// Evaluators are plain heuristics over the content string. Plugins can
// replace any built-in or add custom kinds; a panicking evaluator is
// contained and reported as a failed requirement.
package gate
