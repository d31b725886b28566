package straindata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
)

// maxPayloadBytes bounds a dataset read from any source.
const maxPayloadBytes = 8 << 20

// Scheme names the transport of a data source reference.
type Scheme string

const (
	SchemeHTTP Scheme = "http"
	SchemeGCS  Scheme = "gs"
	SchemeFile Scheme = "file"
)

// Reference is a parsed data source location.
type Reference struct {
	Raw    string
	Scheme Scheme
	// Location is the URL for http(s), bucket/object for gs and the resolved
	// path for files.
	Location string
	Bucket   string
	Object   string
}

// Key identifies the reference in caches.
func (r Reference) Key() string { return string(r.Scheme) + "|" + r.Location }

// ParseReference resolves ref. Bare paths and file:// paths are resolved
// against dataDir when relative.
func ParseReference(ref, dataDir string) (Reference, error) {
	raw := strings.TrimSpace(ref)
	if raw == "" {
		return Reference{}, &FetchError{Source: ref, Err: fmt.Errorf("%w: empty reference", ErrUnsupportedSource)}
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return Reference{}, &FetchError{Source: raw, Err: fmt.Errorf("%w: invalid url", ErrUnsupportedSource)}
		}
		return Reference{Raw: raw, Scheme: SchemeHTTP, Location: u.String()}, nil
	case strings.HasPrefix(lower, "gs://"):
		rest := raw[len("gs://"):]
		bucket, object, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || strings.Trim(object, "/") == "" {
			return Reference{}, &FetchError{Source: raw, Err: fmt.Errorf("%w: gs reference needs bucket and object", ErrUnsupportedSource)}
		}
		object = strings.TrimPrefix(object, "/")
		return Reference{Raw: raw, Scheme: SchemeGCS, Location: bucket + "/" + object, Bucket: bucket, Object: object}, nil
	case strings.HasPrefix(lower, "file://"):
		return fileReference(raw, raw[len("file://"):], dataDir), nil
	case strings.Contains(raw, "://"):
		return Reference{}, &FetchError{Source: raw, Err: ErrUnsupportedSource}
	default:
		return fileReference(raw, raw, dataDir), nil
	}
}

func fileReference(raw, p, dataDir string) Reference {
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) {
		if strings.TrimSpace(dataDir) == "" {
			dataDir = "."
		}
		p = filepath.Join(dataDir, p)
	}
	return Reference{Raw: raw, Scheme: SchemeFile, Location: filepath.Clean(p)}
}

// ObjectOpener reads objects from a bucket store.
type ObjectOpener interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// gcsOpener creates the Cloud Storage client on first use so deployments
// without gs:// sources never need credentials.
type gcsOpener struct {
	once   sync.Once
	client *storage.Client
	err    error
}

func (g *gcsOpener) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	g.once.Do(func() {
		g.client, g.err = storage.NewClient(context.WithoutCancel(ctx))
	})
	if g.err != nil {
		return nil, g.err
	}
	return g.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (g *gcsOpener) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

type payload struct {
	body        []byte
	contentType string
}

func (l *Loader) fetch(ctx context.Context, ref Reference) (payload, error) {
	switch ref.Scheme {
	case SchemeHTTP:
		return l.fetchHTTP(ctx, ref)
	case SchemeGCS:
		return l.fetchObject(ctx, ref)
	default:
		return fetchFile(ref)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, ref Reference) (payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Location, nil)
	if err != nil {
		return payload{}, &FetchError{Source: ref.Raw, Err: err}
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")
	resp, err := l.http.Do(req)
	if err != nil {
		return payload{}, &FetchError{Source: ref.Raw, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return payload{}, &FetchError{Source: ref.Raw, Status: resp.StatusCode}
	}
	body, err := readLimited(resp.Body)
	if err != nil {
		return payload{}, &FetchError{Source: ref.Raw, Err: err}
	}
	return payload{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

func (l *Loader) fetchObject(ctx context.Context, ref Reference) (payload, error) {
	rc, err := l.objects.NewReader(ctx, ref.Bucket, ref.Object)
	if err != nil {
		fe := &FetchError{Source: ref.Raw, Err: err}
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			fe.Status = http.StatusNotFound
		}
		return payload{}, fe
	}
	defer rc.Close()
	body, err := readLimited(rc)
	if err != nil {
		return payload{}, &FetchError{Source: ref.Raw, Err: err}
	}
	var contentType string
	if r, ok := rc.(*storage.Reader); ok {
		contentType = r.Attrs.ContentType
	}
	return payload{body: body, contentType: contentType}, nil
}

func fetchFile(ref Reference) (payload, error) {
	f, err := os.Open(ref.Location)
	if err != nil {
		fe := &FetchError{Source: ref.Raw, Err: err}
		if errors.Is(err, fs.ErrNotExist) {
			fe.Status = http.StatusNotFound
		}
		return payload{}, fe
	}
	defer f.Close()
	body, err := readLimited(f)
	if err != nil {
		return payload{}, &FetchError{Source: ref.Raw, Err: err}
	}
	return payload{body: body}, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", maxPayloadBytes)
	}
	return body, nil
}
