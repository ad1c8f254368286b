package webdav

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/marmos91/netfs/pkg/netfs"
)

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:resourcetype/>
    <D:getcontentlength/>
    <D:getlastmodified/>
  </D:prop>
</D:propfind>`

// PROPFIND multistatus response, RFC 4918 section 14.16.
type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []davResponse `xml:"DAV: response"`
}

type davResponse struct {
	Href     string        `xml:"DAV: href"`
	Propstat []davPropstat `xml:"DAV: propstat"`
}

type davPropstat struct {
	Prop   davProp `xml:"DAV: prop"`
	Status string  `xml:"DAV: status"`
}

type davProp struct {
	ResourceType struct {
		Collection *struct{} `xml:"DAV: collection"`
	} `xml:"DAV: resourcetype"`
	ContentLength string `xml:"DAV: getcontentlength"`
	LastModified  string `xml:"DAV: getlastmodified"`
}

type davEntry struct {
	path string
	info netfs.FileInfo
}

// propfind issues a PROPFIND on p and decodes every response.
func (b *Backend) propfind(ctx context.Context, p, depth string) ([]davEntry, error) {
	req, err := b.newRequest(ctx, "PROPFIND", p, strings.NewReader(propfindBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", depth)
	req.Header.Set("Content-Type", `application/xml; charset="utf-8"`)

	resp, err := b.do(req, http.StatusMultiStatus)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("webdav: decode multistatus for %s: %w", p, err)
	}

	entries := make([]davEntry, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		e, ok := decodeResponse(r)
		if ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func decodeResponse(r davResponse) (davEntry, bool) {
	u, err := url.Parse(strings.TrimSpace(r.Href))
	if err != nil {
		return davEntry{}, false
	}
	p := path.Clean("/" + u.Path)

	e := davEntry{path: p, info: netfs.FileInfo{Name: path.Base(p)}}
	for _, ps := range r.Propstat {
		if ps.Status != "" && !strings.Contains(ps.Status, " 200 ") {
			continue
		}
		if ps.Prop.ResourceType.Collection != nil {
			e.info.IsDir = true
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(ps.Prop.ContentLength), 10, 64); err == nil {
			e.info.Size = n
		}
		if t, err := http.ParseTime(strings.TrimSpace(ps.Prop.LastModified)); err == nil {
			e.info.ModTime = t
		}
	}
	return e, true
}

// ReadDir lists the collection p.
func (b *Backend) ReadDir(ctx context.Context, p string) ([]netfs.FileInfo, error) {
	entries, err := b.propfind(ctx, collectionPath(p), "1")
	if err != nil {
		return nil, err
	}

	self := path.Clean("/" + p)
	out := make([]netfs.FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.path == self {
			continue
		}
		out = append(out, e.info)
	}
	return out, nil
}

// Stat returns the properties of p.
func (b *Backend) Stat(ctx context.Context, p string) (netfs.FileInfo, error) {
	entries, err := b.propfind(ctx, p, "0")
	if err != nil {
		return netfs.FileInfo{}, err
	}
	if len(entries) == 0 {
		return netfs.FileInfo{}, fmt.Errorf("webdav: stat %s: %w", p, netfs.ErrNotFound)
	}
	info := entries[0].info
	info.Name = path.Base(p)
	return info, nil
}
