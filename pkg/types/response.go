package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// PageEnvelope is a cursor-paginated list. An empty Cursor means the last page.
type PageEnvelope struct {
	Data   any    `json:"data"`
	Cursor string `json:"cursor"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
