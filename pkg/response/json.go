package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type noContent struct{}

func (noContent) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// JSON renders body with status 200.
func JSON(body any) Response {
	return jsonResponse{status: http.StatusOK, body: body}
}

// JSONStatus renders body with the given status.
func JSONStatus(status int, body any) Response {
	return jsonResponse{status: status, body: body}
}

func NoContent() Response {
	return noContent{}
}

// JSONError renders err as an ErrorBody. An HTTPError anywhere in the chain
// decides the status and code; any other error becomes a 500 whose message
// does not leak the cause.
func JSONError(err error) Response {
	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = ErrInternalServerError
	}
	return jsonResponse{
		status: httpErr.Code,
		body: ErrorBody{Error: ErrorDetail{
			Code:    httpErr.Key,
			Message: httpErr.message(),
		}},
	}
}
