package diagnostics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
)

const (
	previewLength = 200

	// MaxProbeEndpoints bounds a single connectivity test
	MaxProbeEndpoints = 10
	maxEndpointLength = 256
)

// ProbeResult is the outcome of one connectivity check
type ProbeResult struct {
	Endpoint    string `json:"endpoint"`
	URL         string `json:"url"`
	Reachable   bool   `json:"reachable"`
	OK          bool   `json:"ok"`
	Status      int    `json:"status,omitempty"`
	StatusText  string `json:"status_text,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	BodyPreview string `json:"body_preview,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Prober checks raw reachability of backend endpoints. It does not attach
// credentials and never touches the session.
type Prober struct {
	baseURL string
	client  *http.Client
	logs    *Store
}

// NewProber creates a prober for the backend at baseURL
func NewProber(baseURL string, timeout time.Duration, logs *Store) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logs:    logs,
	}
}

// ValidateEndpoints checks a caller-supplied endpoint list. Endpoints are
// absolute paths on the backend; anything that could name another host is
// rejected.
func ValidateEndpoints(endpoints []string) error {
	if len(endpoints) > MaxProbeEndpoints {
		return utils.NewAppError(utils.ErrCodeValidation, "Too many endpoints",
			fmt.Sprintf("%d (max %d)", len(endpoints), MaxProbeEndpoints))
	}
	for _, endpoint := range endpoints {
		if err := validateEndpoint(endpoint); err != nil {
			return err
		}
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	invalid := func(reason string) error {
		return utils.NewAppError(utils.ErrCodeValidation, "Invalid endpoint", fmt.Sprintf("%q: %s", endpoint, reason))
	}
	switch {
	case len(endpoint) > maxEndpointLength:
		return invalid("too long")
	case !strings.HasPrefix(endpoint, "/"):
		return invalid("must start with /")
	case strings.HasPrefix(endpoint, "//"), strings.Contains(endpoint, "://"):
		return invalid("must not name a host")
	case strings.ContainsAny(endpoint, "@\\"):
		return invalid("must not contain @ or backslash")
	}
	for _, r := range endpoint {
		if r < 0x20 || r == 0x7f {
			return invalid("must not contain control characters")
		}
	}
	return nil
}

// resolve joins endpoint onto the base URL and refuses any result that
// leaves the base scheme and host
func (p *Prober) resolve(endpoint string) (string, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return "", err
	}
	base, err := url.Parse(p.baseURL)
	if err != nil || base.Host == "" {
		return "", utils.NewAppError(utils.ErrCodeConfiguration, "Invalid API base URL", p.baseURL)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", utils.Wrap(err, utils.ErrCodeValidation, "Invalid endpoint")
	}

	target := base.JoinPath(ref.Path)
	target.RawQuery = ref.RawQuery
	if target.Scheme != base.Scheme || target.Host != base.Host || target.User != nil {
		return "", utils.NewAppError(utils.ErrCodeValidation, "Invalid endpoint",
			fmt.Sprintf("%q resolves outside %s", endpoint, base.Host))
	}
	return target.String(), nil
}

// Probe GETs each endpoint in order and records a NETWORK entry per endpoint.
// At most MaxProbeEndpoints are checked.
func (p *Prober) Probe(ctx context.Context, endpoints []string) []ProbeResult {
	if len(endpoints) > MaxProbeEndpoints {
		endpoints = endpoints[:MaxProbeEndpoints]
	}
	p.logs.Info(models.CategoryNetwork, "Manual connectivity test initiated",
		map[string]interface{}{"base_url": p.baseURL, "endpoints": len(endpoints)})

	results := make([]ProbeResult, 0, len(endpoints))
	for _, endpoint := range endpoints {
		results = append(results, p.probeOne(ctx, endpoint))
	}
	return results
}

func (p *Prober) probeOne(ctx context.Context, endpoint string) ProbeResult {
	result := ProbeResult{Endpoint: endpoint}
	target, err := p.resolve(endpoint)
	if err != nil {
		result.Error = err.Error()
		p.logs.Warn(models.CategoryNetwork, "Connectivity test endpoint rejected",
			map[string]interface{}{"endpoint": endpoint, "error": err.Error()})
		return result
	}
	result.URL = target
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, result.URL, nil)
	if err != nil {
		result.Error = err.Error()
		p.logs.NetworkTest(result.URL, false, 0, err)
		return result
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	duration := time.Since(start)
	result.DurationMs = duration.Milliseconds()
	if err != nil {
		result.Error = err.Error()
		p.logs.NetworkTest(result.URL, false, duration, err)
		return result
	}
	defer resp.Body.Close()

	result.Reachable = true
	result.Status = resp.StatusCode
	result.StatusText = http.StatusText(resp.StatusCode)
	result.OK = resp.StatusCode >= 200 && resp.StatusCode < 300

	if result.OK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, previewLength+1))
		preview := string(body)
		if len(preview) > previewLength {
			preview = truncateUTF8(preview, previewLength) + "..."
		}
		result.BodyPreview = preview
		p.logs.NetworkTest(result.URL, true, duration, nil)
	} else {
		p.logs.NetworkTest(result.URL, false, duration, fmt.Errorf("HTTP error! status: %d", resp.StatusCode))
	}
	return result
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// EnvironmentSnapshot collects runtime facts useful when debugging a
// deployment and records them as an ENV entry.
func EnvironmentSnapshot(ctx context.Context, cfg *config.Config, kv storage.KV, logs *Store) map[string]interface{} {
	hostname, _ := os.Hostname()
	zone, offset := time.Now().Zone()

	info := map[string]interface{}{
		"environment":  cfg.App.Environment,
		"version":      cfg.App.Version,
		"api_url":      cfg.API.BaseURL,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"hostname":     hostname,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"timezone":     zone,
		"utc_offset":   offset,
		"storage_type": cfg.Storage.Type,
		"min_level":    logs.MinLevel().String(),
		"saved_token":  false,
		"saved_user":   false,
	}

	if kv != nil {
		if _, found, err := kv.Get(ctx, models.TokenKey); err == nil {
			info["saved_token"] = found
		}
		if _, found, err := kv.Get(ctx, models.UserKey); err == nil {
			info["saved_user"] = found
		}
	}

	logs.Environment(info)
	return info
}
