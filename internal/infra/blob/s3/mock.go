package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const mockBucket = "mock-bucket"

// NewMock returns a Store whose HTTP transport is an in-memory bucket. It
// serves HEAD, GET, PUT, DELETE and ListObjectsV2 with path-style addressing.
func NewMock() *Store {
	rt := &mockBucketTransport{objects: make(map[string]mockObject), now: func() time.Time { return time.Now().UTC() }}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(DefaultRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIDMOCK", "SECRETMOCK", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, bucket: mockBucket}
}

type mockObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

func (o mockObject) etag() string {
	sum := md5.Sum(o.body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

type mockBucketTransport struct {
	mu      sync.Mutex
	objects map[string]mockObject
	now     func() time.Time
}

func (m *mockBucketTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(req.URL.Path, "/"+mockBucket), "/")
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return m.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead:
		obj, ok := m.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, obj.headers(), nil), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			body := []byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return respond(http.StatusNotFound, http.Header{"Content-Type": {"application/xml"}}, body), nil
		}
		return respond(http.StatusOK, obj.headers(), obj.body), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if decoded, ok := decodeAWSChunked(body); ok {
			body = decoded
		}
		meta := make(map[string]string)
		for name, values := range req.Header {
			if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") && len(values) > 0 {
				meta[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
			}
		}
		obj := mockObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: meta, modified: m.now()}
		m.objects[key] = obj
		h := make(http.Header)
		h.Set("ETag", obj.etag())
		return respond(http.StatusOK, h, nil), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (m *mockBucketTransport) list(prefix string) *http.Response {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>` + mockBucket + `</Name><IsTruncated>false</IsTruncated>`)
	fmt.Fprintf(&b, "<KeyCount>%d</KeyCount>", len(keys))
	for _, k := range keys {
		obj := m.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><ETag>%s</ETag><LastModified>%s</LastModified></Contents>",
			k, len(obj.body), obj.etag(), obj.modified.Format(time.RFC3339))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(b.String()))
}

func (o mockObject) headers() http.Header {
	h := make(http.Header)
	h.Set("Content-Length", strconv.Itoa(len(o.body)))
	h.Set("ETag", o.etag())
	h.Set("Last-Modified", o.modified.Format(http.TimeFormat))
	if o.contentType != "" {
		h.Set("Content-Type", o.contentType)
	}
	for k, v := range o.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func respond(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// decodeAWSChunked unwraps a single-chunk aws-chunked payload:
// "<hex size>[;ext]\r\n<data>\r\n0\r\n<trailers>".
func decodeAWSChunked(b []byte) ([]byte, bool) {
	head, rest, ok := bytes.Cut(b, []byte("\r\n"))
	if !ok {
		return nil, false
	}
	sizeField, _, _ := bytes.Cut(head, []byte(";"))
	size, err := strconv.ParseInt(string(sizeField), 16, 64)
	if err != nil || size < 0 || int64(len(rest)) < size+2 {
		return nil, false
	}
	data, tail := rest[:size], rest[size:]
	if !bytes.HasPrefix(tail, []byte("\r\n0")) {
		return nil, false
	}
	return data, true
}
