package handlers

import (
	"net/http"

	"github.com/mozilla-services/exeappend/payloadcode"
)

// ExeHandler serves an executable with a validated payload appended
type ExeHandler interface {
	ServeExe(w http.ResponseWriter, req *http.Request, code *payloadcode.Code) error
}
