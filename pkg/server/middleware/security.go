// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig holds the response headers the gateway adds. Stored
// objects are untrusted user content, so routes that stream them get their
// own policy.
type SecurityHeadersConfig struct {
	// EnableHSTS sets Strict-Transport-Security on TLS connections.
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	// ContentSecurityPolicy applies to API responses.
	ContentSecurityPolicy string

	// ObjectContentSecurityPolicy applies to object bodies. The default
	// "sandbox" keeps stored HTML from running in the gateway's origin.
	ObjectContentSecurityPolicy string

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string

	// CacheControl applies to API responses only. Object bodies carry
	// their own validators.
	CacheControl string

	// ObjectRoutes are the path prefixes that stream stored objects.
	ObjectRoutes []string
}

// DefaultObjectRoutes are the gateway routes that serve object bodies.
var DefaultObjectRoutes = []string{"/api/v1/fs/", "/signed/"}

// DefaultSecurityHeadersConfig returns the gateway defaults. HSTS stays off
// until the listener has TLS.
func DefaultSecurityHeadersConfig() *SecurityHeadersConfig {
	return &SecurityHeadersConfig{
		HSTSMaxAge:                  31536000,
		HSTSIncludeSubdomains:       true,
		ContentSecurityPolicy:       "default-src 'none'; frame-ancestors 'none'",
		ObjectContentSecurityPolicy: "sandbox",
		XFrameOptions:               "DENY",
		XContentTypeOptions:         "nosniff",
		ReferrerPolicy:              "no-referrer",
		CacheControl:                "no-store",
		ObjectRoutes:                DefaultObjectRoutes,
	}
}

type header struct{ name, value string }

func (c *SecurityHeadersConfig) headers(object bool) []header {
	csp, cache := c.ContentSecurityPolicy, c.CacheControl
	if object {
		csp, cache = c.ObjectContentSecurityPolicy, ""
	}
	var out []header
	for _, h := range []header{
		{"X-Content-Type-Options", c.XContentTypeOptions},
		{"X-Frame-Options", c.XFrameOptions},
		{"Content-Security-Policy", csp},
		{"Referrer-Policy", c.ReferrerPolicy},
		{"Permissions-Policy", c.PermissionsPolicy},
		{"Cache-Control", cache},
	} {
		if h.value != "" {
			out = append(out, h)
		}
	}
	return out
}

func (c *SecurityHeadersConfig) servesObject(path string) bool {
	for _, prefix := range c.ObjectRoutes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SecurityHeadersMiddleware sets the configured headers before the handler
// runs. The header sets are computed once.
func SecurityHeadersMiddleware(config *SecurityHeadersConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityHeadersConfig()
	}
	apiHeaders := config.headers(false)
	objectHeaders := config.headers(true)
	var hsts string
	if config.EnableHSTS {
		hsts = formatHSTSHeader(config)
	}

	return func(c *gin.Context) {
		set := apiHeaders
		if config.servesObject(c.Request.URL.Path) {
			set = objectHeaders
		}
		h := c.Writer.Header()
		for _, kv := range set {
			h.Set(kv.name, kv.value)
		}
		if hsts != "" && c.Request.TLS != nil {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// formatHSTSHeader builds the Strict-Transport-Security value.
func formatHSTSHeader(config *SecurityHeadersConfig) string {
	var parts []string
	if config.HSTSMaxAge > 0 {
		parts = append(parts, fmt.Sprintf("max-age=%d", config.HSTSMaxAge))
	}
	if config.HSTSIncludeSubdomains {
		parts = append(parts, "includeSubDomains")
	}
	if config.HSTSPreload {
		parts = append(parts, "preload")
	}
	return strings.Join(parts, "; ")
}
