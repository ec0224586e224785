// Package cors answers cross-origin requests from browser clients of the API.
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/tidwall/match"
)

// Config lists the allowed origins. "*" allows every origin; a pattern such
// as "https://*.example.org" matches with * standing for any text and ? for
// one character.
type Config struct {
	Enabled          bool
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func DefaultConfig() Config {
	return Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
}

// policy is Config with the response header values computed once.
type policy struct {
	enabled       bool
	origins       []string
	anyOrigin     bool
	credentials   bool
	methods       string
	allowHeaders  string
	exposeHeaders string
	maxAge        string
}

func newPolicy(cfg Config) policy {
	defaults := DefaultConfig()
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = defaults.AllowMethods
	}
	if cfg.ExposeHeaders == nil {
		cfg.ExposeHeaders = defaults.ExposeHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaults.MaxAge
	}

	p := policy{
		enabled:       cfg.Enabled,
		credentials:   cfg.AllowCredentials,
		allowHeaders:  strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders: strings.Join(cfg.ExposeHeaders, ", "),
	}
	for _, o := range cfg.AllowOrigins {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			p.anyOrigin = true
		}
		if o != "" {
			p.origins = append(p.origins, o)
		}
	}
	methods := make([]string, len(cfg.AllowMethods))
	for i, m := range cfg.AllowMethods {
		methods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	p.methods = strings.Join(methods, ", ")
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge / time.Second))
	}
	return p
}

func (p policy) allows(origin string) bool {
	origin = strings.ToLower(origin)
	for _, pattern := range p.origins {
		if match.Match(origin, pattern) {
			return true
		}
	}
	return false
}

// Middleware applies cfg. Preflight requests never reach the handler: an
// allowed origin gets 204 and any other origin 403.
func Middleware(cfg Config) router.MiddlewareFunc {
	p := newPolicy(cfg)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			origin := req.Header.Get("Origin")
			if !p.enabled || origin == "" {
				return next(c)
			}
			preflight := req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != ""
			if !p.allows(origin) {
				if preflight {
					c.Response().WriteHeader(http.StatusForbidden)
					return nil
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Add("Vary", "Origin")
			if p.anyOrigin && !p.credentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if p.exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", p.exposeHeaders)
			}
			if !preflight {
				return next(c)
			}

			h.Set("Access-Control-Allow-Methods", p.methods)
			switch requested := req.Header.Get("Access-Control-Request-Headers"); {
			case p.allowHeaders != "":
				h.Set("Access-Control-Allow-Headers", p.allowHeaders)
			case requested != "":
				h.Set("Access-Control-Allow-Headers", requested)
			}
			if p.maxAge != "" {
				h.Set("Access-Control-Max-Age", p.maxAge)
			}
			c.Response().WriteHeader(http.StatusNoContent)
			return nil
		}
	}
}
