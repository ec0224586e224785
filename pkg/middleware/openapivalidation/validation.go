// Package openapivalidation checks requests against the OpenAPI document before
// they reach a handler.
package openapivalidation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

const (
	ModeStrict   = "strict"
	ModeWarnOnly = "warn-only"
)

// Config configures request validation.
type Config struct {
	// Mode is strict, which rejects invalid requests, or warn-only.
	Mode string
	// ValidateBodies also checks request bodies. The handlers answer malformed
	// models with their own codes, so bodies are skipped unless asked.
	ValidateBodies bool
	// ExcludedPathPrefixes are passed through unchecked.
	ExcludedPathPrefixes []string
}

// Middleware validates paths, methods and parameters against doc. Requests for
// paths doc does not describe are passed through.
func Middleware(doc *openapi3.T, cfg Config, log logger.Logger) (router.MiddlewareFunc, error) {
	if doc == nil {
		return nil, fmt.Errorf("openapi document is required")
	}
	// Path parameters never match an empty segment: PUT /tasks is a 405, not a
	// /tasks/{taskId} request with a missing id.
	specRouter, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "":
		mode = ModeStrict
	case ModeStrict, ModeWarnOnly:
	default:
		return nil, fmt.Errorf("unknown validation mode %q", cfg.Mode)
	}
	if log == nil {
		log = logger.NewNop()
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		ExcludeRequestBody: !cfg.ValidateBodies,
		MultiError:         false,
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if excluded(req.URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}

			err := validate(req, specRouter, options, cfg.ValidateBodies)
			if err == nil || isRouteError(err, routers.ErrPathNotFound) {
				return next(c)
			}
			if mode == ModeWarnOnly {
				log.WithContext(req.Context()).Warn("request does not match the openapi document",
					"method", req.Method,
					"path", req.URL.Path,
					"error", err.Error(),
				)
				return next(c)
			}
			if isRouteError(err, routers.ErrMethodNotAllowed) {
				return c.JSON(http.StatusMethodNotAllowed, controller.ErrorResponse{
					Code:    controller.CodeNotAllowed,
					Message: fmt.Sprintf("%s is not allowed on %s", req.Method, req.URL.Path),
				})
			}
			return c.JSON(http.StatusBadRequest, controller.ErrorResponse{
				Code:    controller.CodeBadRequest,
				Message: err.Error(),
			})
		}
	}, nil
}

func validate(req *http.Request, specRouter routers.Router, options *openapi3filter.Options, withBody bool) error {
	if withBody && req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		defer func() { req.Body = io.NopCloser(bytes.NewReader(body)) }()
	}

	route, pathParams, err := specRouter.FindRoute(req)
	if err != nil {
		return err
	}
	return openapi3filter.ValidateRequest(req.Context(), &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    options,
	})
}

// isRouteError reports whether err is the router failure target, which the
// router returns as a fresh RouteError carrying the same reason.
func isRouteError(err, target error) bool {
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) {
		return routeErr.Error() == target.Error()
	}
	return errors.Is(err, target)
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
