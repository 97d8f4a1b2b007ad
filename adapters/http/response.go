package http

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ContentType is the media type of every introspection response.
const ContentType = "application/vnd.api+json"

// Document is the top-level response body. It carries data or errors,
// never both.
type Document struct {
	Data   any     `json:"data,omitempty"`
	Errors []Error `json:"errors,omitempty"`
	Meta   Meta    `json:"meta,omitempty"`
}

// Meta is free-form document metadata.
type Meta map[string]any

// Resource is one addressable object in a response.
type Resource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes,omitempty"`
}

// Error is one problem in an error response.
type Error struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

func newError(status int, code, title, detail string) Error {
	return Error{Status: strconv.Itoa(status), Code: code, Title: title, Detail: detail}
}

// WriteDocument writes doc with the given status.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(doc)
}

// WriteResource writes a single resource response.
func WriteResource(w http.ResponseWriter, r Resource) {
	WriteDocument(w, http.StatusOK, Document{Data: r})
}

// WriteCollection writes a collection response. An empty collection is
// written as [] rather than omitted.
func WriteCollection(w http.ResponseWriter, resources []Resource, meta Meta) {
	if resources == nil {
		resources = []Resource{}
	}
	WriteDocument(w, http.StatusOK, Document{Data: resources, Meta: meta})
}

// WriteNotFound is a convenience for 404 errors.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteDocument(w, http.StatusNotFound, Document{
		Errors: []Error{newError(http.StatusNotFound, "not_found", "Not Found", detail)},
	})
}

// WriteBadRequest is a convenience for 400 errors.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteDocument(w, http.StatusBadRequest, Document{
		Errors: []Error{newError(http.StatusBadRequest, "bad_request", "Bad Request", detail)},
	})
}

// WriteInternalError is a convenience for 500 errors.
func WriteInternalError(w http.ResponseWriter, detail string) {
	WriteDocument(w, http.StatusInternalServerError, Document{
		Errors: []Error{newError(http.StatusInternalServerError, "internal_error", "Internal Server Error", detail)},
	})
}
