package models

// Field describes one column of a dataset resource.
type Field struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ResourceData is the payload returned by the data.gov.in resource endpoint.
// The portal has shipped the field descriptors under both "field" and
// "fields" over time, so both keys are decoded.
type ResourceData struct {
	Total   int              `json:"total"`
	Count   int              `json:"count,omitempty"`
	Records []map[string]any `json:"records"`
	Field   []Field          `json:"field,omitempty"`
	Fields  []Field          `json:"fields,omitempty"`
}

// FieldList returns the field descriptors, preferring the plural key.
func (r *ResourceData) FieldList() []Field {
	if len(r.Fields) > 0 {
		return r.Fields
	}
	return r.Field
}

// SearchResult is the placeholder response of the dataset search stub.
// data.gov.in exposes no public search endpoint for the resource API.
type SearchResult struct {
	Query   string `json:"query"`
	Message string `json:"message"`
}
