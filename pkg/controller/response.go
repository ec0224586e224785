package controller

import (
	"net/http"

	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Success sends v as JSON with HTTP 200 OK.
func Success(c router.Context, v interface{}) error {
	return c.JSON(http.StatusOK, v)
}

// Created sends v as JSON with HTTP 201 Created.
func Created(c router.Context, v interface{}) error {
	return c.JSON(http.StatusCreated, v)
}

// NoContent answers HTTP 204 without a body.
func NoContent(c router.Context) error {
	c.Response().WriteHeader(http.StatusNoContent)
	return nil
}

// Error sends the mapped error response. Server side failures are returned to the
// caller as well so middleware can log them.
func Error(c router.Context, err error) error {
	status, body := MapError(err)
	if writeErr := c.JSON(status, body); writeErr != nil {
		return writeErr
	}
	if status >= http.StatusInternalServerError {
		return err
	}
	return nil
}
