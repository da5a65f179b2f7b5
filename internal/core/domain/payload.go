package domain

// CellUpdate is the body of a cell write.
type CellUpdate struct {
	Cell  string `json:"cell"`
	Value string `json:"value"`
}

// RowAppend is the body of a row append.
type RowAppend struct {
	Values []string `json:"values"`
}

// WriteResult is returned by every successful write.
type WriteResult struct {
	OK bool `json:"ok"`
}

// ErrorBody is the error shape shared by the gateway and the client.
type ErrorBody struct {
	Error string `json:"error"`
}

// HealthReport is returned by the health endpoint.
type HealthReport struct {
	OK     bool   `json:"ok"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}
