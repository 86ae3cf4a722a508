package s3api

import (
	"encoding/xml"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mailchannels/objectmail/internal/pipeline"
)

func (s *Server) handleCreateMultipartUpload(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	uploadID, err := s.pipe.CreateMultipartUpload(r.Context(), v["bucket"], v["key"], r.Header.Get("Content-Type"), userMetadataFromHeader(r.Header))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeXML(w, http.StatusOK, initiateMultipartUploadResult{
		Xmlns:    xmlns,
		Bucket:   v["bucket"],
		Key:      v["key"],
		UploadId: uploadID,
	})
}

func (s *Server) handleUploadPart(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	partNumber, err := strconv.Atoi(v["partNumber"])
	if err != nil || partNumber < 1 || partNumber > 10000 {
		s.writeError(w, r, pipeline.ErrInvalidPart)
		return
	}
	part, err := s.pipe.UploadPart(r.Context(), v["uploadId"], partNumber, r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+part.ETag+`"`)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCompleteMultipartUpload(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	var req completeMultipartUploadRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, pipeline.ErrInvalidPart)
		return
	}
	parts := make([]pipeline.CompletedPart, len(req.Parts))
	for i, p := range req.Parts {
		parts[i] = pipeline.CompletedPart{PartNumber: p.PartNumber, ETag: trimQuotes(p.ETag)}
	}

	obj, err := s.pipe.CompleteMultipartUpload(r.Context(), v["uploadId"], parts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeXML(w, http.StatusOK, completeMultipartUploadResult{
		Xmlns:  xmlns,
		Bucket: v["bucket"],
		Key:    v["key"],
		ETag:   `"` + obj.ETag + `"`,
	})
}

func (s *Server) handleAbortMultipartUpload(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := s.pipe.AbortMultipartUpload(r.Context(), v["uploadId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	u, err := s.pipe.ListParts(r.Context(), v["uploadId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := listPartsResult{
		Xmlns:    xmlns,
		Bucket:   v["bucket"],
		Key:      v["key"],
		UploadId: v["uploadId"],
	}
	numbers := make([]int, 0, len(u.Parts))
	for n := range u.Parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		p := u.Parts[n]
		out.Parts = append(out.Parts, xmlPart{PartNumber: n, ETag: `"` + p.ETag + `"`, Size: p.Size})
	}
	writeXML(w, http.StatusOK, out)
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
