// Package s3api is the outermost layer: a gorilla/mux router translating
// the HTTP/S3 wire surface (spec.md §6) into typed internal/pipeline calls
// and serializing results back to S3-compatible XML. Grounded on the
// pack's S3-compatible handler layers (other_examples' geckos3 and
// mizu/localflare "storage/transport/s3" handlers, and aistore's S3
// gateway) for both the XML type shapes and the writeError convention;
// none of the pack pulls in a dedicated S3-XML templating library, so
// stdlib encoding/xml is the justified choice here.
package s3api

import "encoding/xml"

const xmlns = "http://s3.amazonaws.com/doc/2006-03-01/"

type errorResponse struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

type listAllMyBucketsResult struct {
	XMLName xml.Name   `xml:"ListAllMyBucketsResult"`
	Xmlns   string     `xml:"xmlns,attr"`
	Buckets xmlBuckets `xml:"Buckets"`
}

type xmlBuckets struct {
	Bucket []xmlBucket `xml:"Bucket"`
}

type xmlBucket struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type listBucketResult struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	Xmlns                 string         `xml:"xmlns,attr"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	Delimiter             string         `xml:"Delimiter,omitempty"`
	MaxKeys               int            `xml:"MaxKeys"`
	IsTruncated           bool           `xml:"IsTruncated"`
	KeyCount              int            `xml:"KeyCount"`
	Contents              []xmlObject    `xml:"Contents"`
	CommonPrefixes        []xmlPrefix    `xml:"CommonPrefixes,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	StartAfter            string         `xml:"StartAfter,omitempty"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
}

type xmlPrefix struct {
	Prefix string `xml:"Prefix"`
}

type xmlObject struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type initiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadId string   `xml:"UploadId"`
}

type completeMultipartUploadRequest struct {
	XMLName xml.Name           `xml:"CompleteMultipartUpload"`
	Parts   []completedPartXML `xml:"Part"`
}

type completedPartXML struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUploadResult struct {
	XMLName xml.Name `xml:"CompleteMultipartUploadResult"`
	Xmlns   string   `xml:"xmlns,attr"`
	Bucket  string   `xml:"Bucket"`
	Key     string   `xml:"Key"`
	ETag    string   `xml:"ETag"`
}

type listPartsResult struct {
	XMLName  xml.Name  `xml:"ListPartsResult"`
	Xmlns    string    `xml:"xmlns,attr"`
	Bucket   string    `xml:"Bucket"`
	Key      string    `xml:"Key"`
	UploadId string    `xml:"UploadId"`
	Parts    []xmlPart `xml:"Part"`
}

type xmlPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
	Size       int64  `xml:"Size"`
}
