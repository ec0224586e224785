package openapi

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

const swaggerAssets = "https://unpkg.com/swagger-ui-dist@5.10.0"

//go:embed swagger.html
var swaggerHTML string

var swaggerPage = template.Must(template.New("swagger").Parse(swaggerHTML))

// SwaggerHandler renders Swagger UI for the document at specURL.
type SwaggerHandler struct {
	enabled bool
	specURL string
}

func NewSwaggerHandler(enabled bool, specURL string) *SwaggerHandler {
	return &SwaggerHandler{enabled: enabled, specURL: specURL}
}

// ServeSwaggerUI answers 404 while the UI is disabled.
func (h *SwaggerHandler) ServeSwaggerUI(c router.Context) error {
	if !h.enabled {
		return c.JSON(http.StatusNotFound, controller.ErrorResponse{
			Code:    controller.CodeNotFound,
			Message: "Swagger UI is disabled",
		})
	}
	w := c.Response()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	return swaggerPage.Execute(w, struct {
		Title     string
		SpecURL   string
		AssetBase string
	}{"Task Manager API", h.specURL, swaggerAssets})
}

// RegisterRoutes mounts /swagger and /swagger/ when the UI is enabled.
func (h *SwaggerHandler) RegisterRoutes(r router.Router) {
	if !h.enabled {
		return
	}
	for _, p := range []string{"/swagger", "/swagger/"} {
		r.GET(p, h.ServeSwaggerUI)
	}
}
