package dto

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
