package api

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

// capabilityRest is one entry of CapabilityStatement.rest[0].resource,
// mirroring the resourceType/interaction shape a FHIR CapabilityStatement
// publishes for each configured resource type.
type capabilityRest struct {
	Type         string                `json:"type"`
	Interaction  []capabilityInteraction `json:"interaction"`
	SearchParam  []capabilitySearchParam `json:"searchParam,omitempty"`
}

type capabilityInteraction struct {
	Code string `json:"code"`
}

type capabilitySearchParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// capabilityStatement is a minimal CapabilityStatement, populated from the
// live Resource Registry rather than a static document, grounded on the
// retrieved headless-EHR server's CapabilityBuilder: build the statement
// once per request from whatever resource types are actually enabled.
type capabilityStatement struct {
	ResourceType string            `json:"resourceType"`
	Status       string            `json:"status"`
	Date         string            `json:"date"`
	Kind         string            `json:"kind"`
	FhirVersion  string            `json:"fhirVersion"`
	Format       []string          `json:"format"`
	Rest         []capabilityRestNode `json:"rest"`
}

type capabilityRestNode struct {
	Mode     string            `json:"mode"`
	Resource []capabilityRest  `json:"resource"`
}

// HandleMetadata serves GET /fhir/metadata (and /fhir/{version}/metadata),
// spec section 6's CapabilityStatement endpoint. It is intentionally not
// behind tenant resolution: capability discovery is server-wide, not
// tenant-scoped.
func (a *API) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	table := a.Registry.Current()
	resourceTypes := table.ResourceTypes()

	resources := make([]capabilityRest, 0, len(resourceTypes))
	for _, rt := range resourceTypes {
		cfg, err := table.Get(rt)
		if err != nil || !cfg.Enabled {
			continue
		}
		resources = append(resources, capabilityRest{
			Type:        rt,
			Interaction: interactionList(cfg.Interactions),
			SearchParam: searchParamList(cfg.SearchParams),
		})
	}

	statement := capabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format(time.RFC3339),
		Kind:         "instance",
		FhirVersion:  string(a.DefaultVersion),
		Format:       []string{"application/fhir+json"},
		Rest: []capabilityRestNode{
			{Mode: "server", Resource: resources},
		},
	}

	writeJSON(w, http.StatusOK, statement)
}

func interactionList(i registry.Interactions) []capabilityInteraction {
	var list []capabilityInteraction
	add := func(enabled bool, code string) {
		if enabled {
			list = append(list, capabilityInteraction{Code: code})
		}
	}
	add(i.Read, "read")
	add(i.VRead, "vread")
	add(i.Create, "create")
	add(i.Update, "update")
	add(i.Patch, "patch")
	add(i.Delete, "delete")
	add(i.Search, "search-type")
	add(i.History, "history-instance")
	return list
}

func searchParamList(policy registry.SearchParamPolicy) []capabilitySearchParam {
	if !policy.Enabled() {
		return nil
	}
	names := make([]capabilitySearchParam, 0, len(policy.Common)+len(policy.ResourceSpecific))
	for _, n := range policy.Common {
		names = append(names, capabilitySearchParam{Name: n, Type: "string"})
	}
	for _, n := range policy.ResourceSpecific {
		names = append(names, capabilitySearchParam{Name: n, Type: "string"})
	}
	return names
}
