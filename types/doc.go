// Copyright (c) Flowgate Authors.
// Licensed under the MIT License.

/*
Package types provides the shared type contracts of the flowgate engine.

types is the lowest-level public package and depends on no other internal
package. It defines the structured error system used across workflow,
gate, history, and server:

  - Error and ErrorCode: structured errors with Retryable and StepID markers
  - ValidationError: the all-violations registration error
  - IsRetryable and GetErrorCode: classification helpers
*/
package types
