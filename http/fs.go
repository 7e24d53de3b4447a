// Package http provides an fs.FS that fetches bundle files with HTTP GET
// requests, for use with loader.New.
package http

import (
	"fmt"
	"io"
	"io/fs"
	nethttp "net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// FS serves files from a base URL. The file name is appended to the URL
// path, so "data/en.sres" under "https://host/bundles" is fetched from
// "https://host/bundles/data/en.sres".
//
// A 404 or 410 response is reported as fs.ErrNotExist.
type FS struct {
	base    *url.URL
	client  *nethttp.Client
	headers nethttp.Header
}

// Option configures an FS.
type Option func(*FS)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(f *FS) {
		f.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(f *FS) {
		if headers == nil {
			return
		}
		f.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(f *FS) {
		if f.headers == nil {
			f.headers = make(nethttp.Header)
		}
		f.headers.Set(key, value)
	}
}

// NewFS creates an FS rooted at baseURL.
func NewFS(baseURL string, opts ...Option) (*FS, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	f := &FS{
		base:   u,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = nethttp.DefaultClient
	}
	return f, nil
}

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	req, err := f.newRequest(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	switch resp.StatusCode {
	case nethttp.StatusOK:
		// ok
	case nethttp.StatusNotFound, nethttp.StatusGone:
		drain(resp.Body)
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case nethttp.StatusForbidden, nethttp.StatusUnauthorized:
		drain(resp.Body)
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	default:
		drain(resp.Body)
		return nil, &fs.PathError{Op: "open", Path: name, Err: fmt.Errorf("request failed: %s", resp.Status)}
	}

	info := fileInfo{name: path.Base(name), size: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := nethttp.ParseTime(lm); err == nil {
			info.modTime = t
		}
	}
	return &file{body: resp.Body, info: info}, nil
}

func (f *FS) newRequest(name string) (*nethttp.Request, error) {
	u := *f.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + name
	u.RawPath = ""
	req, err := nethttp.NewRequest(nethttp.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range f.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	// The loader detects stored framing itself.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

type file struct {
	body io.ReadCloser
	info fileInfo
}

func (f *file) Read(p []byte) (int, error) { return f.body.Read(p) }
func (f *file) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *file) Close() error {
	drain(f.body)
	return nil
}

// fileInfo describes a fetched file. Size is -1 when the server sent no
// Content-Length.
type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (i fileInfo) Name() string       { return i.name }
func (i fileInfo) Size() int64        { return i.size }
func (i fileInfo) Mode() fs.FileMode  { return 0o444 }
func (i fileInfo) ModTime() time.Time { return i.modTime }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }
