package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tornermarton/nest-api/internal/orm/crud"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// ErrorSource locates the cause of an error in the request
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// ErrorObject is one entry of an error document
type ErrorObject struct {
	Status string       `json:"status"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// ErrorDocument is a top level document carrying errors instead of data
type ErrorDocument struct {
	Errors []*ErrorObject `json:"errors"`
	Links  *Links         `json:"links,omitempty"`
	Meta   Meta           `json:"meta"`
}

// StatusFor maps an error from the resource layer to an HTTP status.
// Validation errors are 400 when they only concern query parameters and 422
// otherwise; anything unrecognised is a 500.
func StatusFor(err error) int {
	var ve *validation.ValidationErrors
	switch {
	case errors.As(err, &ve):
		if ve.OnlyParameters() {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrCardinality):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrUnknownType),
		errors.Is(err, schema.ErrUnknownRelationship),
		crud.IsNotFound(err),
		crud.IsForeignKeyViolation(err):
		return http.StatusNotFound
	case crud.IsUniqueViolation(err):
		return http.StatusConflict
	case crud.IsConstraintViolation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error document for err. Internal errors carry no
// detail so nothing about the storage leaks to clients.
func FromError(self string, err error) *ErrorDocument {
	status := StatusFor(err)
	doc := &ErrorDocument{Meta: meta(status, nil)}
	if self != "" {
		doc.Links = &Links{Self: self}
	}

	var ve *validation.ValidationErrors
	switch {
	case errors.As(err, &ve):
		for _, fe := range ve.Errors {
			doc.Errors = append(doc.Errors, &ErrorObject{
				Status: strconv.Itoa(status),
				Code:   "validation_error",
				Title:  "Invalid " + fe.Field,
				Detail: fe.Message,
				Source: &ErrorSource{
					Pointer:   fe.Source.Pointer,
					Parameter: fe.Source.Parameter,
				},
			})
		}
	case errors.Is(err, repository.ErrCardinality):
		doc.Errors = append(doc.Errors, &ErrorObject{
			Status: strconv.Itoa(status),
			Code:   "cardinality_violation",
			Title:  "Relationship cardinality violation",
			Detail: err.Error(),
			Source: &ErrorSource{Pointer: "/data"},
		})
	case errors.Is(err, crud.ErrForeignKeyViolation):
		doc.Errors = append(doc.Errors, errorObject(status, "Related resource not found", ""))
	case status == http.StatusInternalServerError:
		doc.Errors = append(doc.Errors, errorObject(status, http.StatusText(status), ""))
	default:
		doc.Errors = append(doc.Errors, errorObject(status, http.StatusText(status), err.Error()))
	}
	return doc
}

// NotFound builds the 404 document of a missing resource
func NotFound(self, detail string) *ErrorDocument {
	doc := &ErrorDocument{
		Errors: []*ErrorObject{errorObject(http.StatusNotFound, http.StatusText(http.StatusNotFound), detail)},
		Meta:   meta(http.StatusNotFound, nil),
	}
	if self != "" {
		doc.Links = &Links{Self: self}
	}
	return doc
}

func errorObject(status int, title, detail string) *ErrorObject {
	return &ErrorObject{
		Status: strconv.Itoa(status),
		Code:   errorCodeFromStatus(status),
		Title:  title,
		Detail: detail,
	}
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return "error"
	}
}
