package s3api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mailchannels/objectmail/internal/metadata"
	"github.com/mailchannels/objectmail/internal/pipeline"
)

const metaHeaderPrefix = "X-Amz-Meta-"

func userMetadataFromHeader(h http.Header) map[string]string {
	meta := make(map[string]string)
	for k, v := range h {
		if strings.HasPrefix(k, metaHeaderPrefix) && len(v) > 0 {
			meta[strings.ToLower(strings.TrimPrefix(k, metaHeaderPrefix))] = v[0]
		}
	}
	return meta
}

func setUserMetadataHeader(w http.ResponseWriter, meta map[string]string) {
	for k, v := range meta {
		w.Header().Set(metaHeaderPrefix+k, v)
	}
}

// parseRange parses a single-range "bytes=start-end" Range header per
// spec.md §4.5 GetObject. Multi-range requests aren't part of this repo's
// scope; a header it can't parse is ignored and the full object is served.
func parseRange(header string) *pipeline.ByteRange {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	end := int64(-1)
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil
		}
	}
	return &pipeline.ByteRange{Start: start, End: end}
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	obj, err := s.pipe.PutObject(r.Context(), v["bucket"], v["key"], r.Body, r.Header.Get("Content-Type"), userMetadataFromHeader(r.Header))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+obj.ETag+`"`)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	rng := parseRange(r.Header.Get("Range"))

	head, err := s.pipe.Meta.GetObject(r.Context(), v["bucket"], v["key"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+head.ETag+`"`)
	w.Header().Set("Content-Type", head.ContentType)
	setUserMetadataHeader(w, head.UserMetadata)
	w.Header().Set("Last-Modified", head.LastModified.UTC().Format(http.TimeFormat))
	if rng != nil {
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if _, err := s.pipe.GetObject(r.Context(), v["bucket"], v["key"], rng, w); err != nil {
		s.log.WithRequestID(r).WithError(err).Error("GetObject failed mid-stream")
	}
}

func (s *Server) handleHeadObject(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	obj, err := s.pipe.Meta.GetObject(r.Context(), v["bucket"], v["key"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+obj.ETag+`"`)
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	setUserMetadataHeader(w, obj.UserMetadata)
	w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := s.pipe.DeleteObject(r.Context(), v["bucket"], v["key"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListObjectsV2(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	q := r.URL.Query()
	maxKeys, err := strconv.Atoi(q.Get("max-keys"))
	if err != nil || maxKeys <= 0 {
		maxKeys = 1000
	}
	page, err := s.pipe.ListObjectsV2(r.Context(), v["bucket"], metadata.ListObjectsQuery{
		Prefix:            q.Get("prefix"),
		Delimiter:         q.Get("delimiter"),
		StartAfter:        q.Get("start-after"),
		ContinuationToken: q.Get("continuation-token"),
		MaxKeys:           maxKeys,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := listBucketResult{
		Xmlns:                 xmlns,
		Name:                  v["bucket"],
		Prefix:                q.Get("prefix"),
		Delimiter:             q.Get("delimiter"),
		MaxKeys:               maxKeys,
		IsTruncated:           page.IsTruncated,
		KeyCount:              len(page.Objects),
		NextContinuationToken: page.NextContinuationToken,
		StartAfter:            q.Get("start-after"),
		ContinuationToken:     q.Get("continuation-token"),
	}
	for _, o := range page.Objects {
		out.Contents = append(out.Contents, xmlObject{
			Key:          o.Key,
			LastModified: o.LastModified.UTC().Format(iso8601),
			ETag:         `"` + o.ETag + `"`,
			Size:         o.Size,
			StorageClass: "STANDARD",
		})
	}
	for _, p := range page.CommonPrefixes {
		out.CommonPrefixes = append(out.CommonPrefixes, xmlPrefix{Prefix: p})
	}
	writeXML(w, http.StatusOK, out)
}
