package inbound

import (
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-websub/core"
)

// maxFormBytes bounds POST callback bodies.
const maxFormBytes = 64 << 10

type HandlerOption func(*CallbackHandler)

func WithLogger(logger core.Logger) HandlerOption {
	return func(h *CallbackHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// CallbackHandler answers hub verification callbacks.
type CallbackHandler struct {
	verifier core.Verifier
	logger   core.Logger
}

func NewCallbackHandler(verifier core.Verifier, opts ...HandlerOption) (*CallbackHandler, error) {
	if verifier == nil {
		return nil, inboundInternal("inbound: verifier is required", nil)
	}
	handler := &CallbackHandler{
		verifier: verifier,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler, nil
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	values := r.URL.Query()
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			h.logger.Warn("websub callback form rejected", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		values = r.Form
	}

	req, err := ParseVerificationRequest(values)
	if err != nil {
		h.logger.Warn("websub callback parameters rejected", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result, err := h.verifier.Verify(r.Context(), req)
	if err != nil {
		h.logger.Error("websub callback failed",
			"topic", req.Topic,
			"mode", string(req.Mode),
			"error", err,
		)
		w.WriteHeader(statusFor(err))
		return
	}
	if !result.Accepted {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(result.Body))
}
