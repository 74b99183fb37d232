package workflow

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowgate/flowgate/gate"
	"github.com/flowgate/flowgate/types"
)

// Document is the on-disk workflow definition. Durations are written as
// Go duration strings ("500ms", "2m") so documents stay readable; JSON
// documents parse through the same path since YAML is a superset.
type Document struct {
	ID       string            `yaml:"id" json:"id"`
	Name     string            `yaml:"name" json:"name"`
	Version  string            `yaml:"version,omitempty" json:"version,omitempty"`
	Metadata WorkflowMetadata  `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Retry    *RetryDocument    `yaml:"retry,omitempty" json:"retry,omitempty"`
	Steps    []StepDocument    `yaml:"steps" json:"steps"`
	Gates    []gate.Definition `yaml:"gates,omitempty" json:"gates,omitempty"`
}

// RetryDocument is the document form of a retry policy.
type RetryDocument struct {
	MaxRetries      int      `yaml:"max_retries" json:"max_retries"`
	Backoff         string   `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	BaseDelay       string   `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`
	MaxDelay        string   `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	RetryableErrors []string `yaml:"retryable_errors,omitempty" json:"retryable_errors,omitempty"`
}

// StepDocument is the document form of a workflow step.
type StepDocument struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name,omitempty" json:"name,omitempty"`
	Type         string            `yaml:"type" json:"type"`
	Config       map[string]any    `yaml:"config,omitempty" json:"config,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	InputMapping map[string]string `yaml:"input_mapping,omitempty" json:"input_mapping,omitempty"`
	Timeout      string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retry        *RetryDocument    `yaml:"retry,omitempty" json:"retry,omitempty"`
	OnError      string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// ParseDocument decodes a YAML or JSON workflow document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewError(types.ErrValidation, "workflow document is not valid YAML or JSON").WithCause(err)
	}
	return &doc, nil
}

// Workflow converts the document into a definition ready for
// registration. Malformed durations and enum values are collected into a
// single validation error.
func (d *Document) Workflow() (Workflow, error) {
	verr := types.NewValidationError("workflow document " + d.ID)

	wf := Workflow{
		ID:       d.ID,
		Name:     d.Name,
		Version:  d.Version,
		Metadata: d.Metadata,
		Gates:    d.Gates,
	}

	if d.Retry != nil {
		wf.Retry = d.Retry.policy("workflow", verr)
	} else {
		wf.Retry = DefaultRetryPolicy()
	}

	wf.Steps = make([]WorkflowStep, 0, len(d.Steps))
	for _, sd := range d.Steps {
		step := WorkflowStep{
			ID:           sd.ID,
			Name:         sd.Name,
			Type:         StepType(sd.Type),
			Config:       sd.Config,
			Dependencies: sd.Dependencies,
			InputMapping: sd.InputMapping,
			OnError:      OnErrorPolicy(sd.OnError),
		}
		step.Timeout = parseDuration(sd.Timeout, 0, fmt.Sprintf("step %q timeout", sd.ID), verr)
		if sd.Retry != nil {
			policy := sd.Retry.policy(fmt.Sprintf("step %q", sd.ID), verr)
			step.Retry = &policy
		}
		if sd.OnError != "" && step.OnError != OnErrorFail && step.OnError != OnErrorContinue {
			verr.Add("step %q has unknown on_error policy %q", sd.ID, sd.OnError)
		}
		wf.Steps = append(wf.Steps, step)
	}

	if verr.HasViolations() {
		return Workflow{}, verr
	}
	return wf, nil
}

// policy converts a retry document, reporting malformed fields on verr.
func (rd *RetryDocument) policy(subject string, verr *types.ValidationError) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = rd.MaxRetries

	if rd.Backoff != "" {
		switch BackoffStrategy(rd.Backoff) {
		case BackoffLinear, BackoffExponential:
			p.Backoff = BackoffStrategy(rd.Backoff)
		default:
			verr.Add("%s retry has unknown backoff strategy %q", subject, rd.Backoff)
		}
	}
	if rd.BaseDelay != "" {
		p.BaseDelay = parseDuration(rd.BaseDelay, p.BaseDelay, subject+" retry base_delay", verr)
	}
	if rd.MaxDelay != "" {
		p.MaxDelay = parseDuration(rd.MaxDelay, p.MaxDelay, subject+" retry max_delay", verr)
	}
	if len(rd.RetryableErrors) > 0 {
		p.RetryableErrors = make([]types.ErrorCode, 0, len(rd.RetryableErrors))
		for _, code := range rd.RetryableErrors {
			p.RetryableErrors = append(p.RetryableErrors, types.ErrorCode(code))
		}
	}
	return p
}

func parseDuration(raw string, fallback time.Duration, subject string, verr *types.ValidationError) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		verr.Add("%s %q is not a valid duration", subject, raw)
		return fallback
	}
	if d < 0 {
		verr.Add("%s %q is negative", subject, raw)
		return fallback
	}
	return d
}

// LoadWorkflow parses and converts a document in one call.
func LoadWorkflow(data []byte) (Workflow, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return Workflow{}, err
	}
	return doc.Workflow()
}

// DumpWorkflow renders a definition back into its YAML document form.
func DumpWorkflow(wf *Workflow) ([]byte, error) {
	doc := Document{
		ID:       wf.ID,
		Name:     wf.Name,
		Version:  wf.Version,
		Metadata: wf.Metadata,
		Retry:    retryDocument(wf.Retry),
		Gates:    wf.Gates,
	}

	doc.Steps = make([]StepDocument, 0, len(wf.Steps))
	for i := range wf.Steps {
		step := &wf.Steps[i]
		sd := StepDocument{
			ID:           step.ID,
			Name:         step.Name,
			Type:         string(step.Type),
			Config:       step.Config,
			Dependencies: step.Dependencies,
			InputMapping: step.InputMapping,
			OnError:      string(step.OnError),
		}
		if step.Timeout > 0 {
			sd.Timeout = step.Timeout.String()
		}
		if step.Retry != nil {
			sd.Retry = retryDocument(*step.Retry)
		}
		doc.Steps = append(doc.Steps, sd)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to render workflow document").WithCause(err)
	}
	return out, nil
}

func retryDocument(p RetryPolicy) *RetryDocument {
	rd := &RetryDocument{
		MaxRetries: p.MaxRetries,
		Backoff:    string(p.Backoff),
	}
	if p.BaseDelay > 0 {
		rd.BaseDelay = p.BaseDelay.String()
	}
	if p.MaxDelay > 0 {
		rd.MaxDelay = p.MaxDelay.String()
	}
	for _, code := range p.RetryableErrors {
		rd.RetryableErrors = append(rd.RetryableErrors, string(code))
	}
	return rd
}
