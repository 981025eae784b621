package exchange

import "fmt"

// BadRequestError is returned when the token endpoint rejects the assertion with a
// structured OAuth error body.
type BadRequestError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *BadRequestError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("bad request: %s", e.Code)
	}
	return fmt.Sprintf("bad request: %s: %s", e.Code, e.Description)
}

// UnexpectedStatusError is returned for any other non-2xx answer from the token endpoint.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status code from token endpoint: %d", e.StatusCode)
}
