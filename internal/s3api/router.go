package s3api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mailchannels/objectmail/internal/objmaillog"
	"github.com/mailchannels/objectmail/internal/pipeline"
)

// Server holds the router and the Pipeline it dispatches to. Grounded on
// the teacher's guerrilla.Daemon holding a single Server per listening
// port; here there's one Server per process, fronting net/http instead of
// raw net.Conn.
type Server struct {
	pipe   *pipeline.Pipeline
	log    objmaillog.Logger
	router *mux.Router
}

// New builds a Server and wires every route in spec.md §6's operation
// table onto pipe.
func New(pipe *pipeline.Pipeline, log objmaillog.Logger) *Server {
	s := &Server{pipe: pipe, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/", s.handleListBuckets).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	bucket := r.PathPrefix("/{bucket}").Subrouter()
	bucket.HandleFunc("", s.handleCreateBucket).Methods(http.MethodPut)
	bucket.HandleFunc("", s.handleDeleteBucket).Methods(http.MethodDelete)
	bucket.HandleFunc("", s.handleListObjectsV2).Methods(http.MethodGet)

	obj := r.PathPrefix("/{bucket}/{key:.+}").Subrouter()
	obj.HandleFunc("", s.handleCreateMultipartUpload).Methods(http.MethodPost).Queries("uploads", "")
	obj.HandleFunc("", s.handleUploadPart).Methods(http.MethodPut).Queries("partNumber", "{partNumber}", "uploadId", "{uploadId}")
	obj.HandleFunc("", s.handleCompleteMultipartUpload).Methods(http.MethodPost).Queries("uploadId", "{uploadId}")
	obj.HandleFunc("", s.handleAbortMultipartUpload).Methods(http.MethodDelete).Queries("uploadId", "{uploadId}")
	obj.HandleFunc("", s.handleListParts).Methods(http.MethodGet).Queries("uploadId", "{uploadId}")

	obj.HandleFunc("", s.handlePutObject).Methods(http.MethodPut)
	obj.HandleFunc("", s.handleGetObject).Methods(http.MethodGet)
	obj.HandleFunc("", s.handleHeadObject).Methods(http.MethodHead)
	obj.HandleFunc("", s.handleDeleteObject).Methods(http.MethodDelete)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
