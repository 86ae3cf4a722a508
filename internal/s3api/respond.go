package s3api

import (
	"encoding/xml"
	"net/http"

	"github.com/mailchannels/objectmail/internal/s3err"
)

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}

// writeError maps err to its s3err.Error and renders an S3 XML error
// document, logging the underlying cause at warn level since the client
// only ever sees the S3 code and message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := s3err.FromError(err)
	s.log.WithRequestID(r).WithError(err).WithField("s3_code", se.Code).Warn("request failed")
	writeXML(w, se.StatusCode, errorResponse{Code: se.Code, Message: se.Message})
}
