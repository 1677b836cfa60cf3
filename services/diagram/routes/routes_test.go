// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagramlab/diagramlab/pkg/logging"
	"github.com/diagramlab/diagramlab/services/diagram/advisor"
	"github.com/diagramlab/diagramlab/services/diagram/artifacts"
	"github.com/diagramlab/diagramlab/services/diagram/handlers"
	"github.com/diagramlab/diagramlab/services/diagram/resolver"
	"github.com/diagramlab/diagramlab/services/diagram/session"
	"github.com/diagramlab/diagramlab/services/diagram/symbols"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	index, err := symbols.NewIndex()
	require.NoError(t, err)
	registry, err := symbols.LoadRegistry()
	require.NoError(t, err)
	res, err := resolver.New(index, registry)
	require.NoError(t, err)
	adv, err := advisor.New()
	require.NoError(t, err)
	store, err := artifacts.NewStore(t.TempDir(), 0)
	require.NoError(t, err)

	deps := &handlers.Deps{
		Resolver:  res,
		Advisor:   adv,
		Index:     index,
		Registry:  registry,
		Sessions:  session.NewStore(0),
		Artifacts: store,
		Recorder:  logging.NewRecorder(0, 0),
	}

	router := gin.New()
	SetupRoutes(router, deps, nil, 0)
	return router
}

func TestRouting_Health(t *testing.T) {
	router := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRouting_Metrics(t *testing.T) {
	router := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "diagramlab_")
}

func TestRouting_RequestIDOnAPIRoutes(t *testing.T) {
	router := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/examples", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouting_UnknownPath(t *testing.T) {
	router := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
