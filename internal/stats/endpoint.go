package stats

// Endpoint identifies a single (method, path) combination observed by the
// capture hook. Equality and map-key hashing use both fields; no template
// normalisation is performed, so "/users/42" and "/users/43" are distinct
// endpoints. Query-string parameters are never part of path.
type Endpoint struct {
	Method string
	Path   string
}

// String renders an endpoint as "<METHOD> <PATH>", the form used for JSON
// object keys in the overview response and for log attributes.
func (e Endpoint) String() string {
	return e.Method + " " + e.Path
}
