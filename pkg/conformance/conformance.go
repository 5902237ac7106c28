// Package conformance defines the boundary to the standards conformance
// library spec section 1 deliberately keeps out of scope: canonical
// resource model, JSON/XML parsing, and the `$validate`/`$everything`
// extended-operation handlers. Per spec section 9's design note
// ("Reflection-heavy resource parsing: substitute tagged-variant resource
// documents ... and delegate all FHIR-specific parsing to an external
// ConformanceEngine"), this package carries only the Engine contract and a
// minimal opaque default good enough to exercise the pipeline end-to-end —
// it intentionally does not implement real FHIR structural validation,
// terminology binding, or $everything graph traversal.
package conformance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
)

// Resource is the tagged-variant structured document spec section 9
// prescribes in place of a reflection-heavy typed model: an opaque JSON
// document whose `resourceType` field is the only part the core ever
// inspects directly.
type Resource = json.RawMessage

// Meta is the subset of a resource's `meta` element the core owns:
// versionId and lastUpdated. Everything else in `meta` (profiles, tags,
// security labels) passes through untouched.
type Meta struct {
	VersionID   string    `json:"versionId"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Engine is the opaque ConformanceEngine contract: a standards library
// that can parse, reshape, and re-serialize a resource document without
// the core ever needing to know its internal model.
type Engine interface {
	// ResourceType extracts the discriminator field from a raw document.
	ResourceType(doc Resource) (string, error)

	// Validate performs the engine's own structural/shape validation —
	// distinct from profile validation (pkg/profile), which checks
	// against named StructureDefinitions. A non-empty Issues slice with
	// a severity of "error" or "fatal" should fail the operation.
	Validate(ctx context.Context, version fhirversion.Version, doc Resource) (Issues, error)

	// SetMeta stamps resource.meta.versionId/lastUpdated, returning the
	// updated document.
	SetMeta(doc Resource, meta Meta) (Resource, error)

	// ApplyPatch applies a structural patch document (JSON Patch,
	// RFC 6902) to doc and returns the result.
	ApplyPatch(doc Resource, patch json.RawMessage) (Resource, error)

	// Execute runs an extended operation (`$op`) named by code against
	// input (nil for operations with no request body), per spec section
	// 6's `${op}` route. Out of scope per spec section 1; the default
	// engine returns KindNotSupported for every code.
	Execute(ctx context.Context, version fhirversion.Version, resourceType, code string, params map[string][]string, input Resource) (Resource, error)
}

// Issue is one conformance-engine finding.
type Issue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics"`
}

// Issues is a list of Issue, convertible to fhirerr.Error details.
type Issues []Issue

// HasError reports whether any issue is error/fatal severity.
func (is Issues) HasError() bool {
	for _, i := range is {
		if i.Severity == "error" || i.Severity == "fatal" {
			return true
		}
	}
	return false
}

// Details flattens Issues into fhirerr.Error's Details strings.
func (is Issues) Details() []string {
	out := make([]string, len(is))
	for i, issue := range is {
		out[i] = issue.Diagnostics
	}
	return out
}

// docEnvelope is the minimal projection of a FHIR resource this opaque
// engine touches: resourceType plus meta, leaving every other field
// untouched via json.RawMessage round-tripping.
type docEnvelope struct {
	ResourceType string          `json:"resourceType"`
	Meta         *json.RawMessage `json:"meta,omitempty"`
	Rest         map[string]json.RawMessage `json:"-"`
}

// GenericEngine is the default Engine: it does real JSON structural work
// (resourceType presence, meta stamping, JSON Patch application) but
// treats everything FHIR-specific — profile conformance, terminology,
// FHIRPath-driven $everything — as out of scope, per spec section 1.
type GenericEngine struct{}

// NewGenericEngine builds the default opaque Engine.
func NewGenericEngine() *GenericEngine { return &GenericEngine{} }

func (GenericEngine) ResourceType(doc Resource) (string, error) {
	var env struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(doc, &env); err != nil {
		return "", fhirerr.New(fhirerr.KindStructure, "malformed resource body: "+err.Error())
	}
	if env.ResourceType == "" {
		return "", fhirerr.New(fhirerr.KindRequired, "resource is missing required field \"resourceType\"")
	}
	return env.ResourceType, nil
}

func (e GenericEngine) Validate(_ context.Context, _ fhirversion.Version, doc Resource) (Issues, error) {
	if _, err := e.ResourceType(doc); err != nil {
		fe, _ := err.(*fhirerr.Error)
		return Issues{{Severity: "error", Code: string(fe.Kind), Diagnostics: fe.Message}}, nil
	}
	var anyDoc map[string]any
	if err := json.Unmarshal(doc, &anyDoc); err != nil {
		return Issues{{Severity: "fatal", Code: "structure", Diagnostics: err.Error()}}, nil
	}
	return nil, nil
}

func (GenericEngine) SetMeta(doc Resource, meta Meta) (Resource, error) {
	var generic map[string]any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, fhirerr.New(fhirerr.KindStructure, "malformed resource body: "+err.Error())
	}

	existingMeta, _ := generic["meta"].(map[string]any)
	if existingMeta == nil {
		existingMeta = map[string]any{}
	}
	existingMeta["versionId"] = meta.VersionID
	existingMeta["lastUpdated"] = meta.LastUpdated.UTC().Format(time.RFC3339Nano)
	generic["meta"] = existingMeta

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fhirerr.New(fhirerr.KindInternal, "failed to re-encode resource: "+err.Error())
	}
	return out, nil
}

func (GenericEngine) ApplyPatch(doc Resource, patch json.RawMessage) (Resource, error) {
	var ops []jsonPatchOp
	if err := json.Unmarshal(patch, &ops); err != nil {
		return nil, fhirerr.New(fhirerr.KindStructure, "malformed JSON Patch document: "+err.Error())
	}

	var target map[string]any
	if err := json.Unmarshal(doc, &target); err != nil {
		return nil, fhirerr.New(fhirerr.KindStructure, "malformed resource body: "+err.Error())
	}

	for _, op := range ops {
		if err := applyOp(target, op); err != nil {
			return nil, fhirerr.New(fhirerr.KindInvalid, err.Error())
		}
	}

	out, err := json.Marshal(target)
	if err != nil {
		return nil, fhirerr.New(fhirerr.KindInternal, "failed to re-encode patched resource: "+err.Error())
	}
	return out, nil
}

func (GenericEngine) Execute(_ context.Context, _ fhirversion.Version, _, code string, _ map[string][]string, _ Resource) (Resource, error) {
	return nil, fhirerr.New(fhirerr.KindNotSupported, fmt.Sprintf("extended operation $%s is not implemented by the generic conformance engine", code))
}

// jsonPatchOp is one RFC 6902 operation. Only the top-level-field subset
// used by PATCH on a FHIR resource document is supported (add/replace/
// remove on a single path segment) — nested-path patching is delegated to
// a real conformance engine when one is plugged in.
type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

func applyOp(target map[string]any, op jsonPatchOp) error {
	field, ok := topLevelField(op.Path)
	if !ok {
		return fmt.Errorf("unsupported JSON Patch path %q (only top-level fields are supported)", op.Path)
	}
	switch op.Op {
	case "add", "replace":
		target[field] = op.Value
	case "remove":
		delete(target, field)
	default:
		return fmt.Errorf("unsupported JSON Patch op %q", op.Op)
	}
	return nil
}

func topLevelField(path string) (string, bool) {
	if len(path) < 2 || path[0] != '/' {
		return "", false
	}
	rest := path[1:]
	for i, r := range rest {
		if r == '/' {
			return "", false
		}
		_ = i
	}
	return rest, true
}
