package conformance_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
)

func TestGenericEngine_ResourceType(t *testing.T) {
	e := conformance.NewGenericEngine()

	rt, err := e.ResourceType([]byte(`{"resourceType":"Patient"}`))
	require.NoError(t, err)
	assert.Equal(t, "Patient", rt)

	_, err = e.ResourceType([]byte(`{"resourceType":""}`))
	require.Error(t, err)
	var fe *fhirerr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fhirerr.KindRequired, fe.Kind)

	_, err = e.ResourceType([]byte(`not json`))
	require.Error(t, err)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fhirerr.KindStructure, fe.Kind)
}

func TestGenericEngine_SetMeta(t *testing.T) {
	e := conformance.NewGenericEngine()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	out, err := e.SetMeta([]byte(`{"resourceType":"Patient"}`), conformance.Meta{VersionID: "1", LastUpdated: now})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	meta := doc["meta"].(map[string]any)
	assert.Equal(t, "1", meta["versionId"])
	assert.Equal(t, now.Format(time.RFC3339Nano), meta["lastUpdated"])
}

func TestGenericEngine_SetMeta_PreservesExistingMetaFields(t *testing.T) {
	e := conformance.NewGenericEngine()
	now := time.Now().UTC()

	out, err := e.SetMeta([]byte(`{"resourceType":"Patient","meta":{"tag":[{"code":"x"}]}}`), conformance.Meta{VersionID: "2", LastUpdated: now})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	meta := doc["meta"].(map[string]any)
	assert.Equal(t, "2", meta["versionId"])
	assert.NotNil(t, meta["tag"])
}

func TestGenericEngine_ApplyPatch(t *testing.T) {
	e := conformance.NewGenericEngine()
	doc := []byte(`{"resourceType":"Patient","active":false}`)
	patch := []byte(`[{"op":"replace","path":"/active","value":true},{"op":"add","path":"/gender","value":"female"}]`)

	out, err := e.ApplyPatch(doc, patch)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, true, result["active"])
	assert.Equal(t, "female", result["gender"])
}

func TestGenericEngine_ApplyPatch_Remove(t *testing.T) {
	e := conformance.NewGenericEngine()
	doc := []byte(`{"resourceType":"Patient","active":true}`)
	patch := []byte(`[{"op":"remove","path":"/active"}]`)

	out, err := e.ApplyPatch(doc, patch)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out, &result))
	_, ok := result["active"]
	assert.False(t, ok)
}

func TestGenericEngine_ApplyPatch_RejectsNestedPath(t *testing.T) {
	e := conformance.NewGenericEngine()
	doc := []byte(`{"resourceType":"Patient"}`)
	patch := []byte(`[{"op":"replace","path":"/name/0/family","value":"Smith"}]`)

	_, err := e.ApplyPatch(doc, patch)
	assert.Error(t, err)
}

func TestGenericEngine_Execute_NotSupported(t *testing.T) {
	e := conformance.NewGenericEngine()
	_, err := e.Execute(context.Background(), fhirversion.R5, "Patient", "everything", nil, nil)
	require.Error(t, err)
	var fe *fhirerr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fhirerr.KindNotSupported, fe.Kind)
}

func TestIssues_HasError(t *testing.T) {
	assert.False(t, conformance.Issues{{Severity: "information"}}.HasError())
	assert.True(t, conformance.Issues{{Severity: "error"}}.HasError())
	assert.True(t, conformance.Issues{{Severity: "fatal"}}.HasError())
}
