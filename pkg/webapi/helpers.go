package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
)

var log = logger.NewSublogger("webapi")

var httpCodeForError = map[string]int{
	string(bork.BadRequest):        400,
	string(bork.NotFound):          404,
	string(bork.AlreadyExists):     409,
	string(bork.DBConflict):        503,
	string(bork.NotAvailable):      503,
	string(bork.InsufficientFunds): 402,
	string(bork.RPCError):          502,
	string(bork.UnknownError):      500,
}

func HttpStatusForError(code bork.ErrorCode) int {
	status, found := httpCodeForError[string(code)]
	if !found {
		status = http.StatusInternalServerError
	}
	return status
}

func sendResponse(w http.ResponseWriter, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "marshal", fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.Write(b)
}

func sendBadRequest(w http.ResponseWriter, message string) {
	sendErrorResponse(w, http.StatusBadRequest, bork.BadRequest, message)
}

func sendError(w http.ResponseWriter, where string, err error) {
	var info *bork.ErrorInfo
	if errors.As(err, &info) {
		status := HttpStatusForError(info.Code)
		message := fmt.Sprintf("%s: %s", where, info.Message)
		sendErrorResponse(w, status, info.Code, message)
	} else {
		message := fmt.Sprintf("%s: %s", where, err.Error())
		sendErrorResponse(w, http.StatusInternalServerError, bork.UnknownError, message)
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, code bork.ErrorCode, message string) {
	log.WithField("code", code).Warn(message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":{\"code\":%q,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.WriteHeader(statusCode)
	w.Write([]byte(payload))
}
