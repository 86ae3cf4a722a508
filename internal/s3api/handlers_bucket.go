package s3api

import (
	"net/http"

	"github.com/gorilla/mux"
)

const iso8601 = "2006-01-02T15:04:05.000Z"

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["bucket"]
	if err := s.pipe.CreateBucket(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/"+name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["bucket"]
	if err := s.pipe.DeleteBucket(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.pipe.ListBuckets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := listAllMyBucketsResult{Xmlns: xmlns}
	for _, b := range buckets {
		out.Buckets.Bucket = append(out.Buckets.Bucket, xmlBucket{
			Name:         b.Name,
			CreationDate: b.CreatedAt.UTC().Format(iso8601),
		})
	}
	writeXML(w, http.StatusOK, out)
}
