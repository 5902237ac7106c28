package api

import (
	"strings"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/plugin"
)

// operation is the parsed shape of a FHIR request, per the path table in
// spec section 6.
type operation struct {
	Type         plugin.OperationType
	ResourceType string
	ResourceID   string
	VersionID    int64
	OpCode       string
	HasBody      bool
}

// splitPath tokenizes a request's remaining path (past any version
// segment) into non-empty segments.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// parseOperation maps an HTTP method and the path segments following the
// resource type onto one of the nine route shapes in spec section 6's HTTP
// surface table.
func parseOperation(method string, rest []string) (operation, error) {
	switch {
	case len(rest) == 0:
		return methodOnlyOperation(method)

	case len(rest) == 1 && strings.HasPrefix(rest[0], "$"):
		return operation{Type: plugin.OpOperation, OpCode: strings.TrimPrefix(rest[0], "$"), HasBody: true}, nil

	case len(rest) == 1 && rest[0] == "_search" && method == "POST":
		return operation{Type: plugin.OpSearch, HasBody: true}, nil

	case len(rest) == 1:
		return idOperation(method, rest[0])

	case len(rest) == 2 && rest[1] == "_history":
		if method != "GET" {
			break
		}
		return operation{Type: plugin.OpHistory, ResourceID: rest[0]}, nil

	case len(rest) == 2 && strings.HasPrefix(rest[1], "$"):
		if method != "POST" {
			break
		}
		return operation{Type: plugin.OpOperation, ResourceID: rest[0], OpCode: strings.TrimPrefix(rest[1], "$"), HasBody: true}, nil

	case len(rest) == 3 && rest[1] == "_history":
		if method != "GET" {
			break
		}
		vid, ok := parseVersionID(rest[2])
		if !ok {
			break
		}
		return operation{Type: plugin.OpVRead, ResourceID: rest[0], VersionID: vid}, nil
	}

	return operation{}, fhirerr.New(fhirerr.KindNotFound, "unrecognized FHIR route")
}

func methodOnlyOperation(method string) (operation, error) {
	switch method {
	case "GET":
		return operation{Type: plugin.OpSearch}, nil
	case "POST":
		return operation{Type: plugin.OpCreate, HasBody: true}, nil
	}
	return operation{}, fhirerr.New(fhirerr.KindNotSupported, "method not allowed on resource type route: "+method)
}

func idOperation(method, id string) (operation, error) {
	switch method {
	case "GET":
		return operation{Type: plugin.OpRead, ResourceID: id}, nil
	case "PUT":
		return operation{Type: plugin.OpUpdate, ResourceID: id, HasBody: true}, nil
	case "PATCH":
		return operation{Type: plugin.OpPatch, ResourceID: id, HasBody: true}, nil
	case "DELETE":
		return operation{Type: plugin.OpDelete, ResourceID: id}, nil
	}
	return operation{}, fhirerr.New(fhirerr.KindNotSupported, "method not allowed on resource instance route: "+method)
}

func parseVersionID(segment string) (int64, bool) {
	if segment == "" {
		return 0, false
	}
	var n int64
	for _, r := range segment {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}
