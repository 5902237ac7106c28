// Package plugin implements the Plugin Orchestrator (C8): a registry of
// named plugins matched against operations by a four-tuple descriptor, and
// a phase executor that runs BEFORE/AFTER/ON_ERROR hooks with priority
// ordering, sync/async separation, and ambient context propagation across
// the async worker pool, per spec section 4.3.
package plugin

import (
	"context"
	"encoding/json"
)

// OperationType is the kind of FHIR interaction a descriptor or context
// names, per spec section 3's Operation Descriptor four-tuple.
type OperationType string

const (
	OpCreate    OperationType = "CREATE"
	OpRead      OperationType = "READ"
	OpVRead     OperationType = "VREAD"
	OpUpdate    OperationType = "UPDATE"
	OpPatch     OperationType = "PATCH"
	OpDelete    OperationType = "DELETE"
	OpSearch    OperationType = "SEARCH"
	OpHistory   OperationType = "HISTORY"
	OpOperation OperationType = "OPERATION"
)

// Phase is one of the three points in the request lifecycle at which
// plugins run, per spec section 4.3.
type Phase string

const (
	PhaseBefore  Phase = "BEFORE"
	PhaseAfter   Phase = "AFTER"
	PhaseOnError Phase = "ON_ERROR"
)

// Mode is a plugin's declared execution mode.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// Descriptor is the four-tuple operation matcher from spec section 3. Any
// field left as its zero value (empty string) acts as a wildcard; a
// Descriptor matches a request's descriptor when every non-wildcard field
// equals the corresponding request field. OperationCode is compared only
// when OperationType is OpOperation (spec section 4.3).
type Descriptor struct {
	ResourceType  string
	OperationType OperationType
	OperationCode string
	Version       string
}

// Matches reports whether d matches the concrete request descriptor req.
func (d Descriptor) Matches(req Descriptor) bool {
	if d.ResourceType != "" && d.ResourceType != req.ResourceType {
		return false
	}
	if d.OperationType != "" && d.OperationType != req.OperationType {
		return false
	}
	if d.Version != "" && d.Version != req.Version {
		return false
	}
	if d.OperationType == OpOperation && d.OperationCode != "" && d.OperationCode != req.OperationCode {
		return false
	}
	return true
}

// Specificity is the diagnostics-only score from spec section 3:
// 4·nonNull(type) + 2·nonNull(opType) + 2·nonNull(opCode) + 1·nonNull(version).
// It is never used to order plugin execution — only priority is.
func (d Descriptor) Specificity() int {
	score := 0
	if d.ResourceType != "" {
		score += 4
	}
	if d.OperationType != "" {
		score += 2
	}
	if d.OperationCode != "" {
		score += 2
	}
	if d.Version != "" {
		score += 1
	}
	return score
}

// Context is the per-request Plugin Context from spec section 3: mutable
// ambient state threaded through every matching plugin during a request.
type Context struct {
	RequestID     string
	OperationType OperationType
	Version       string
	ResourceType  string
	ResourceID    string
	OperationCode string
	QueryParams   map[string][]string
	Input         json.RawMessage
	Output        json.RawMessage
	TenantID      string
	UserID        string
	ClientID      string
	Attributes    map[string]any
}

// Descriptor builds the concrete request descriptor this Context matches
// against registered plugins' Descriptors.
func (c *Context) Descriptor() Descriptor {
	return Descriptor{
		ResourceType:  c.ResourceType,
		OperationType: c.OperationType,
		OperationCode: c.OperationCode,
		Version:       c.Version,
	}
}

// DecisionKind is a BEFORE-phase sync plugin's verdict, per spec section 4.3.
type DecisionKind string

const (
	DecisionContinue              DecisionKind = "continue"
	DecisionContinueModified      DecisionKind = "continue-with-modified-resource"
	DecisionAbort                 DecisionKind = "abort"
	DecisionSkipRemaining         DecisionKind = "skip-remaining"
	DecisionSkipRemainingModified DecisionKind = "skip-remaining-with-modified-resource"
)

// Decision is returned by a sync BEFORE plugin.
type Decision struct {
	Kind             DecisionKind
	ModifiedResource json.RawMessage
	AbortStatus      int
	AbortOutcome     any
}

// Continue is the default, no-op decision.
func Continue() Decision { return Decision{Kind: DecisionContinue} }

// ContinueWithModified replaces the resource seen by later plugins and core.
func ContinueWithModified(resource json.RawMessage) Decision {
	return Decision{Kind: DecisionContinueModified, ModifiedResource: resource}
}

// Abort stops the pipeline and surfaces status/outcome as the HTTP response.
func Abort(status int, outcome any) Decision {
	return Decision{Kind: DecisionAbort, AbortStatus: status, AbortOutcome: outcome}
}

// SkipRemaining stops invoking later BEFORE plugins but still runs the core
// operation with the resource as-is.
func SkipRemaining() Decision { return Decision{Kind: DecisionSkipRemaining} }

// SkipRemainingWithModified is SkipRemaining plus a resource replacement.
func SkipRemainingWithModified(resource json.RawMessage) Decision {
	return Decision{Kind: DecisionSkipRemainingModified, ModifiedResource: resource}
}

// SyncPlugin runs inline on the request goroutine during BEFORE, sync AFTER,
// and sync ON_ERROR phases.
type SyncPlugin interface {
	Name() string
	Priority() int
	Descriptors() []Descriptor
	// HandleBefore is called only during PhaseBefore.
	HandleBefore(ctx context.Context, pc *Context) (Decision, error)
	// HandleAfter is called during PhaseAfter (after any async dispatch for
	// other plugins has been scheduled) and PhaseOnError. opErr is non-nil
	// only when invoked as part of ON_ERROR.
	HandleAfter(ctx context.Context, pc *Context, opErr error) error
}

// AsyncPlugin runs on the bounded worker pool during AFTER and ON_ERROR.
// Its return value is never observed by the response — failures are logged
// by the orchestrator and never re-raised (spec section 4.3).
type AsyncPlugin interface {
	Name() string
	Priority() int
	Descriptors() []Descriptor
	HandleAsync(ctx context.Context, pc *Context, opErr error) error
}
