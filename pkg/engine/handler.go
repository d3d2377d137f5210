package engine

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getstubd/stubd/pkg/dispatch"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// MaxRequestBodySize caps ingress request bodies (10MB).
const MaxRequestBodySize = 10 << 20

// HeaderMessageID lets callers supply their own transport message id,
// enabling idempotent re-delivery.
const HeaderMessageID = "X-Stub-Message-Id"

// IngressHandler translates HTTP requests into inbound messages, pushes
// them through the dispatcher, and renders the outcome:
//
//	reply     -> 200 with the reply payload and headers
//	no reply  -> 200 with an empty body
//	unknown scenario -> 404
//	scenario fault   -> 502
//	contract violation or engine failure -> 500
type IngressHandler struct {
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger
}

// NewIngressHandler creates the ingress handler.
func NewIngressHandler(d *dispatch.Dispatcher, log *slog.Logger) *IngressHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &IngressHandler{dispatcher: d, log: log}
}

// ServeHTTP implements http.Handler.
func (h *IngressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}
	if len(body) > MaxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
		return
	}

	m := message.NewInbound(string(body))
	for name, values := range r.Header {
		if len(values) > 0 {
			m.SetHeader(name, values[0])
		}
	}
	m.SetHeader(message.HeaderPath, r.URL.Path)
	m.SetHeader(message.HeaderMethod, r.Method)
	m.WithID(r.Header.Get(HeaderMessageID))

	reply, err := h.dispatcher.Dispatch(r.Context(), m)
	if err != nil {
		h.renderError(w, m, err)
		return
	}

	if reply == nil {
		// The scenario produced no response within the timeout; for
		// HTTP that is an empty 200.
		w.WriteHeader(http.StatusOK)
		return
	}

	for name, value := range reply.Headers {
		if !strings.HasPrefix(name, "X-Stub-") {
			w.Header().Set(name, value)
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reply.Payload))
}

func (h *IngressHandler) renderError(w http.ResponseWriter, m *message.Message, err error) {
	var (
		notFound *scenario.NotFoundError
		fault    *dispatch.FaultError
		contract *scenario.ContractViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "scenario not found", notFound.Error())
	case errors.As(err, &fault):
		writeError(w, http.StatusBadGateway, "scenario fault", fault.Error())
	case errors.As(err, &contract):
		h.log.Error("dispatch contract violation", "messageId", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "simulator contract violation", contract.Error())
	default:
		h.log.Error("dispatch failed", "messageId", m.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "dispatch failed", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  msg,
		"detail": detail,
	})
}
