package openapi

import (
	"net/http"

	"github.com/nimburion/taskmanager/pkg/server/router"
)

// ServeSpec writes the embedded document.
func ServeSpec(c router.Context) error {
	c.Response().Header().Set("Content-Type", "application/x-yaml")
	c.Response().Header().Set("Cache-Control", "public, max-age=300")
	c.Response().WriteHeader(http.StatusOK)
	_, err := c.Response().Write(document)
	return err
}

// RegisterRoutes mounts the document on r.
func RegisterRoutes(r router.Router) {
	r.GET(SpecPath, ServeSpec)
}
