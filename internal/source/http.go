package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/osmansahan/map-tile-downloader/internal/config"
	"github.com/osmansahan/map-tile-downloader/internal/geometry"
	"github.com/osmansahan/map-tile-downloader/internal/validator"
)

// HTTPSource fetches tiles from a remote XYZ tile server. It keeps a
// single reusable *http.Client per source for connection pooling, sized to
// workersPerSource, the way tile_download_service.py's create_session
// configures its pooled HTTPAdapter.
type HTTPSource struct {
	spec      config.SourceSpec
	userAgent string
	timeout   time.Duration
	client    *http.Client
	validate  *validator.Validator
	declared  Declared
}

// NewHTTPSource builds an HTTPSource whose connection pool and per-host
// connection cap are both sized to workersPerSource.
func NewHTTPSource(spec config.SourceSpec, userAgent string, workersPerSource int, timeout time.Duration, emptyFingerprints [][]byte) *HTTPSource {
	transport := &http.Transport{
		MaxIdleConnsPerHost: workersPerSource,
		MaxConnsPerHost:     workersPerSource,
	}
	declared := Declared{TileKind: spec.TileKind, MinZoom: geometry.MinZoom, MaxZoom: geometry.MaxZoom}
	if spec.MinZoom != nil {
		declared.MinZoom = *spec.MinZoom
	}
	if spec.MaxZoom != nil {
		declared.MaxZoom = *spec.MaxZoom
	}
	return &HTTPSource{
		spec:      spec,
		userAgent: userAgent,
		timeout:   timeout,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 1 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		validate: validator.New(emptyFingerprints),
		declared: declared,
	}
}

func (h *HTTPSource) Name() string       { return h.spec.Name }
func (h *HTTPSource) Declared() Declared { return h.declared }

func (h *HTTPSource) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// tileURL substitutes {z}, {x}, {y} into the source's URL template,
// generalizing map.go's TileMap.GetTileURL to an arbitrary template string.
func (h *HTTPSource) tileURL(t geometry.TileCoord) string {
	url := strings.ReplaceAll(h.spec.URLTemplate, "{z}", strconv.Itoa(int(t.Z)))
	url = strings.ReplaceAll(url, "{x}", strconv.Itoa(int(t.X)))
	url = strings.ReplaceAll(url, "{y}", strconv.Itoa(int(t.Y)))
	return url
}

// Fetch issues one GET for the tile and maps the response into a Result.
func (h *HTTPSource) Fetch(ctx context.Context, t geometry.TileCoord) Result {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.tileURL(t), nil)
	if err != nil {
		return Invalid(fmt.Sprintf("build request: %s", err))
	}
	req.Header.Set("User-Agent", h.userAgent)
	for k, v := range h.spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Transient(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return NotFound()
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return Transient(fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return Invalid(fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return Invalid(fmt.Sprintf("unexpected redirect, status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(fmt.Sprintf("read body: %s", err))
	}
	if len(body) == 0 {
		return Empty()
	}

	if isGzipEncoded(resp, h.tileURL(t)) {
		decoded, err := gunzip(body)
		if err != nil {
			return Invalid(fmt.Sprintf("gzip: %s", err))
		}
		body = decoded
	}

	outcome := h.classify(body)
	switch outcome {
	case validator.Valid:
		return Got(body, resp.Header.Get("Content-Type"), h.spec.Name)
	case validator.Empty:
		return Empty()
	default:
		return Invalid("failed validation")
	}
}

func (h *HTTPSource) classify(body []byte) validator.Outcome {
	if h.spec.TileKind == config.TileVector {
		return h.validate.ValidateVector(body)
	}
	return h.validate.ValidateRaster(body)
}

func isGzipEncoded(resp *http.Response, url string) bool {
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return true
	}
	return strings.HasSuffix(url, ".gz")
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
