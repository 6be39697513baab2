package device

import (
	"errors"
	"net/http"

	"zkbridge/internal/errs"
)

// Result is the uniform envelope every operation returns. No operation lets
// an error or panic escape past it.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`

	status int
}

func ok(data any, warn string) Result {
	return Result{Success: true, Data: data, Warning: warn, status: http.StatusOK}
}

func fail(err error) Result {
	res := Result{Error: err.Error(), status: http.StatusInternalServerError}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		res.status = http.StatusNotFound
	case errors.Is(err, errs.ErrDuplicateName):
		res.status = http.StatusConflict
		var dup *DuplicateNameError
		if errors.As(err, &dup) {
			res.Data = dup.Existing
		}
	case errors.Is(err, errs.ErrConnection):
		res.status = http.StatusBadGateway
	case errors.Is(err, errs.ErrProtocol):
		res.status = http.StatusBadGateway
	}
	return res
}

// HTTPStatus maps the outcome to a response code for transport glue.
func (r Result) HTTPStatus() int {
	if r.status == 0 {
		return http.StatusInternalServerError
	}
	return r.status
}
