package model

// ListResponse wraps collection endpoints (datasources, roles, admins, API
// keys, drivers) in a "resource" array, mirroring the map shapes the
// handlers build so sensitive fields like DSNs stay out by construction.
type ListResponse struct {
	Resource []map[string]interface{} `json:"resource"`
	Meta     *ResponseMeta            `json:"meta,omitempty"`
}

// ResponseMeta carries the result count and server-side timing. List
// endpoints return full collections; there is no pagination cursor.
type ResponseMeta struct {
	Count  int     `json:"count"`
	TookMs float64 `json:"took_ms,omitempty"`
}

// ErrorResponse is the error envelope every non-2xx response uses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail holds the HTTP status code, a human-readable message, and
// optional context such as the offending datasource UID or column.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
