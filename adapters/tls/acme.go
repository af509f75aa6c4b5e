package tls

import (
	"context"
	cryptotls "crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

const (
	// LetsEncrypt production directory
	letsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	// LetsEncrypt staging directory (for testing)
	letsEncryptStaging = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// loggingRoundTripper wraps an http.RoundTripper to log ACME requests.
type loggingRoundTripper struct {
	wrapped http.RoundTripper
	logger  zerolog.Logger
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.wrapped.RoundTrip(req)
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Dur("duration", time.Since(start)).
			Msg("acme request failed")
		return nil, err
	}

	l.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("retry_after", resp.Header.Get("Retry-After")).
		Msg("acme request")
	return resp, nil
}

// ACMEConfig holds configuration for the ACME provider.
type ACMEConfig struct {
	Email        string
	Staging      bool     // Use the staging directory
	Domains      []string // Allowed hosts; "*.example.com" matches subdomains
	DirectoryURL string   // Overrides the Let's Encrypt directory
}

// ACMEProvider obtains certificates for the shell through autocert.
// Nothing is requested from the directory until the first handshake.
type ACMEProvider struct {
	cache        *DBCertCache
	manager      *autocert.Manager
	directoryURL string
	logger       zerolog.Logger

	mu      sync.RWMutex
	domains []string
}

// NewACMEProvider creates an ACME provider whose account key and
// certificates persist in store.
func NewACMEProvider(store ports.CertCacheStore, cfg ACMEConfig, logger zerolog.Logger) (*ACMEProvider, error) {
	if cfg.Email == "" {
		return nil, fmt.Errorf("acme: email is required")
	}

	directoryURL := cfg.DirectoryURL
	if directoryURL == "" {
		directoryURL = letsEncryptProduction
		if cfg.Staging {
			directoryURL = letsEncryptStaging
		}
	}

	logger = logger.With().Str("component", "acme").Logger()
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &loggingRoundTripper{
			wrapped: &http.Transport{
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
			logger: logger,
		},
	}

	p := &ACMEProvider{
		cache:        NewDBCertCache(store, logger),
		directoryURL: directoryURL,
		logger:       logger,
		domains:      cfg.Domains,
	}
	p.manager = &autocert.Manager{
		Cache:      p.cache,
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: p.hostPolicy,
		Client: &acme.Client{
			DirectoryURL: directoryURL,
			HTTPClient:   httpClient,
		},
	}

	logger.Info().
		Str("directory", directoryURL).
		Strs("domains", cfg.Domains).
		Msg("acme provider ready")
	return p, nil
}

// Name returns the provider name.
func (p *ACMEProvider) Name() string {
	return "acme"
}

// DirectoryURL returns the ACME directory in use.
func (p *ACMEProvider) DirectoryURL() string {
	return p.directoryURL
}

// TLSConfig returns a server TLS configuration that obtains certificates on
// demand and answers tls-alpn-01 challenges.
func (p *ACMEProvider) TLSConfig() *cryptotls.Config {
	cfg := p.manager.TLSConfig()
	cfg.MinVersion = cryptotls.VersionTLS12
	return cfg
}

// HTTPHandler answers http-01 challenges and passes everything else to
// fallback. A nil fallback redirects to HTTPS.
func (p *ACMEProvider) HTTPHandler(fallback http.Handler) http.Handler {
	return p.manager.HTTPHandler(fallback)
}

// Manager returns the underlying autocert manager.
func (p *ACMEProvider) Manager() *autocert.Manager {
	return p.manager
}

// hostPolicy checks if a domain is allowed.
func (p *ACMEProvider) hostPolicy(_ context.Context, host string) error {
	p.mu.RLock()
	domains := p.domains
	p.mu.RUnlock()

	// If no domains configured, allow all
	if len(domains) == 0 {
		return nil
	}

	for _, d := range domains {
		if strings.EqualFold(d, host) {
			return nil
		}
		if strings.HasPrefix(d, "*.") {
			suffix := d[1:] // .example.com
			if len(host) > len(suffix) && strings.HasSuffix(strings.ToLower(host), strings.ToLower(suffix)) {
				return nil
			}
		}
	}

	p.logger.Warn().
		Str("host", host).
		Strs("allowed_domains", domains).
		Msg("host not in allowed domains")
	return fmt.Errorf("host %q not in allowed domains", host)
}

// UpdateDomains replaces the list of allowed domains.
func (p *ACMEProvider) UpdateDomains(domains []string) {
	p.mu.Lock()
	p.domains = domains
	p.mu.Unlock()
	p.logger.Info().Strs("domains", domains).Msg("acme domains updated")
}
