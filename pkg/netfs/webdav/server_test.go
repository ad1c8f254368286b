package webdav_test

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// davServer is an in-memory WebDAV server covering the methods the backend
// uses.
type davServer struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]bool
	modTime  time.Time
	requests []string
	headers  []http.Header
}

func newDAVServer() *davServer {
	return &davServer{
		files:   make(map[string][]byte),
		dirs:    map[string]bool{"/": true},
		modTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *davServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record)
	r.PathPrefix("/").Methods(http.MethodGet).HandlerFunc(s.get)
	r.PathPrefix("/").Methods(http.MethodPut).HandlerFunc(s.put)
	r.PathPrefix("/").Methods(http.MethodPost).HandlerFunc(s.post)
	r.PathPrefix("/").Methods(http.MethodDelete).HandlerFunc(s.remove)
	r.PathPrefix("/").Methods("PROPFIND").HandlerFunc(s.propfind)
	r.PathPrefix("/").Methods("MKCOL").HandlerFunc(s.mkcol)
	r.PathPrefix("/").Methods("MOVE").HandlerFunc(s.move)
	return r
}

func (s *davServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *davServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *davServer) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[len(s.headers)-1]
}

func (s *davServer) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p]
	return data, ok
}

func (s *davServer) Dir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[p]
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func (s *davServer) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.files[clean(r.URL.Path)]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

func (s *davServer) put(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[clean(r.URL.Path)] = data
	w.WriteHeader(http.StatusCreated)
}

func (s *davServer) post(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	_, _ = w.Write(append([]byte("echo:"), data...))
}

func (s *davServer) remove(w http.ResponseWriter, r *http.Request) {
	p := clean(r.URL.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.dirs[p]:
		delete(s.dirs, p)
	case s.files[p] != nil:
		delete(s.files, p)
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *davServer) mkcol(w http.ResponseWriter, r *http.Request) {
	p := clean(r.URL.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirs[p] || s.files[p] != nil {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.dirs[path.Dir(p)] {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.dirs[p] = true
	w.WriteHeader(http.StatusCreated)
}

func (s *davServer) move(w http.ResponseWriter, r *http.Request) {
	dest, err := url.Parse(r.Header.Get("Destination"))
	if err != nil || dest.Host != r.Host {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	from, to := clean(r.URL.Path), clean(dest.Path)

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[from]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, exists := s.files[to]; exists && r.Header.Get("Overwrite") == "F" {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	delete(s.files, from)
	s.files[to] = data
	w.WriteHeader(http.StatusCreated)
}

func (s *davServer) propfind(w http.ResponseWriter, r *http.Request) {
	p := clean(r.URL.Path)

	s.mu.Lock()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="utf-8"?><D:multistatus xmlns:D="DAV:">`)
	switch {
	case s.dirs[p]:
		s.writeResponse(&body, p)
		if r.Header.Get("Depth") == "1" {
			for _, child := range s.childrenLocked(p) {
				s.writeResponse(&body, child)
			}
		}
	case s.files[p] != nil:
		s.writeResponse(&body, p)
	default:
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	s.mu.Unlock()
	body.WriteString(`</D:multistatus>`)

	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = io.WriteString(w, body.String())
}

func (s *davServer) writeResponse(b *strings.Builder, p string) {
	href := (&url.URL{Path: p}).EscapedPath()
	resourceType := ""
	length := ""
	if s.dirs[p] {
		if p != "/" {
			href += "/"
		}
		resourceType = "<D:collection/>"
	} else {
		length = fmt.Sprintf("<D:getcontentlength>%d</D:getcontentlength>", len(s.files[p]))
	}
	fmt.Fprintf(b, `<D:response><D:href>%s</D:href><D:propstat><D:prop><D:resourcetype>%s</D:resourcetype>%s<D:getlastmodified>%s</D:getlastmodified></D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat>`,
		href, resourceType, length, s.modTime.Format(http.TimeFormat))
	b.WriteString(`<D:propstat><D:prop><D:quota-used-bytes/></D:prop><D:status>HTTP/1.1 404 Not Found</D:status></D:propstat></D:response>`)
}

func (s *davServer) childrenLocked(dir string) []string {
	var out []string
	for p := range s.files {
		if p != dir && path.Dir(p) == dir {
			out = append(out, p)
		}
	}
	for p := range s.dirs {
		if p != dir && path.Dir(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
