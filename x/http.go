package x

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

type Status struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	E_ERROR           = "E_ERROR"
	E_INVALID_METHOD  = "E_INVALID_METHOD"
	E_INVALID_REQUEST = "E_INVALID_REQUEST"
	E_NOT_FOUND       = "E_NOT_FOUND"
	E_REINDEX         = "E_REINDEX"
	E_OK              = "E_OK"
)

var httpCodes = map[string]int{
	E_ERROR:           http.StatusInternalServerError,
	E_INVALID_METHOD:  http.StatusMethodNotAllowed,
	E_INVALID_REQUEST: http.StatusBadRequest,
	E_NOT_FOUND:       http.StatusNotFound,
	E_REINDEX:         http.StatusBadGateway,
	E_OK:              http.StatusOK,
}

// SetStatus writes the status as a JSON reply, with the matching http code.
func SetStatus(w http.ResponseWriter, code, msg string) {
	r := &Status{Code: code, Message: msg}
	js, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Sprintf("Unable to marshal: %+v", r))
	}
	w.Header().Set("Content-Type", "application/json")
	if hc, ok := httpCodes[code]; ok {
		w.WriteHeader(hc)
	}
	w.Write(js)
}

// ParseRequest parses a JSON based POST or PUT request into the provided
// Golang interface.
func ParseRequest(w http.ResponseWriter, r *http.Request, data interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		SetStatus(w, E_INVALID_REQUEST, fmt.Sprintf("While parsing request: %v", err))
		return false
	}
	return true
}

// ParseIdFromUrl returns what follows urlToken in the request path.
func ParseIdFromUrl(r *http.Request, urlToken string) (uid string, ok bool) {
	url := r.URL.Path
	idx := strings.LastIndex(url, urlToken)
	if idx == -1 {
		return
	}
	return url[idx+len(urlToken):], true
}

// Reply would JSON marshal the provided rep Go interface object, and
// write that to http.ResponseWriter. In case of error, call SetStatus
// with the error.
func Reply(w http.ResponseWriter, rep interface{}) {
	js, err := json.Marshal(rep)
	if err != nil {
		SetStatus(w, E_ERROR, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
