package server

import (
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/veriscan/veriscan/internal/errdefs"
)

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusFor(kind errdefs.Kind) int {
	switch kind {
	case errdefs.KindInvalidArgument:
		return http.StatusBadRequest
	case errdefs.KindNotFound:
		return http.StatusNotFound
	case errdefs.KindUnavailable:
		return http.StatusServiceUnavailable
	case errdefs.KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	kind := errdefs.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		s.log.Error("request failed", zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.Error(err))
	}

	var body errorBody
	body.Error.Kind = kind.String()
	body.Error.Message = err.Error()
	s.respond(w, status, body)
}

func decode(r *http.Request, out any) error {
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(out); err != nil {
		return errdefs.New(errdefs.KindInvalidArgument, "server.decode", err)
	}
	return nil
}
