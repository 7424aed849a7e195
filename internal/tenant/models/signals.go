package models

// Signals carries the identifying inputs of one inbound request. The struct
// is protocol-agnostic; the HTTP layer populates it from headers.
type Signals struct {
	Host       string
	APIName    string   // X-Api-Name
	DatabaseID string   // X-Database-Id
	Schemas    []string // X-Schemata, comma-separated
	MetaSchema bool     // X-Meta-Schema

	Authorization string
	Origin        string
	RemoteIP      string

	// Preflight inputs, only set on OPTIONS requests.
	RequestedMethod  string   // Access-Control-Request-Method
	RequestedHeaders []string // Access-Control-Request-Headers
}
