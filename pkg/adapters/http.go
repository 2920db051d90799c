package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/HatiCode/gridcast/pkg/timing"
)

// errNotFound marks an HTTP 404 from the remote endpoint.
var errNotFound = errors.New("not found")

// HTTPSource is the transport shared by every adapter. It renders the URL
// template for a request, calls the endpoint and returns the JSON body.
//
// The URL and header values are text templates with these variables:
//
//	{{.Season}}      - four-digit season, e.g. 2024
//	{{.Race}}        - path-escaped race name, e.g. Bahrain%20Grand%20Prix
//	{{.RaceName}}    - raw race name
//	{{.Session}}     - path-escaped session label, e.g. Practice%201
//	{{.SessionCode}} - short session code: FP1, FP2, FP3, Q, R
//	{{.Driver}}      - driver code
//
// plus any entry of TemplateVars (API tokens and the like).
type HTTPSource struct {
	// URL is the endpoint template (required).
	URL string

	// Headers are custom HTTP headers; values may use template variables.
	Headers map[string]string

	// TemplateVars are extra variables available in URL and Headers.
	TemplateVars map[string]string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client
}

// request identifies what a single call is about.
type request struct {
	Season  int
	Race    timing.Race
	Session timing.SessionKind
	Driver  timing.Driver
}

func (r request) templateData(extra map[string]string) map[string]any {
	data := map[string]any{
		"Season":      r.Season,
		"Race":        url.PathEscape(string(r.Race)),
		"RaceName":    string(r.Race),
		"Session":     url.PathEscape(sessionLabel(r.Session)),
		"SessionCode": sessionCode(r.Session),
		"Driver":      string(r.Driver),
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func sessionLabel(k timing.SessionKind) string {
	if k == 0 {
		return ""
	}
	return k.String()
}

func sessionCode(k timing.SessionKind) string {
	switch k {
	case timing.Practice1:
		return "FP1"
	case timing.Practice2:
		return "FP2"
	case timing.Practice3:
		return "FP3"
	case timing.Qualifying:
		return "Q"
	case timing.RaceSession:
		return "R"
	default:
		return ""
	}
}

// fetch calls the endpoint for req and returns the response body.
// A 404 response yields an error wrapping errNotFound.
func (h *HTTPSource) fetch(ctx context.Context, req request) ([]byte, error) {
	if h.URL == "" {
		return nil, errors.New("http source: URL is required")
	}

	data := req.templateData(h.TemplateVars)

	target, err := renderTemplate(h.URL, data)
	if err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, data)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		httpReq.Header.Set(key, rendered)
	}

	resp, err := cli.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", target, errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// renderTemplate renders a text template with the given data
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
