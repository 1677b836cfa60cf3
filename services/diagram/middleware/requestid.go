// Copyright (C) 2025 Diagramlab Authors (oss@diagramlab.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware holds the gin middleware shared by all diagram
// routes.
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/diagramlab/diagramlab/pkg/logging"
)

// HeaderRequestID is echoed on every response so clients can correlate
// error-log queries with the request that failed.
const HeaderRequestID = "X-Request-ID"

// HeaderProcessTime reports server-side wall time in seconds.
const HeaderProcessTime = "X-Process-Time"

// RequestID assigns (or propagates) a request id, stores it in the
// request context for log capture, and stamps timing on the way out.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(HeaderRequestID, id)

		// Headers are flushed on the handler's first write, so the
		// timing header has to go in through a writer wrapper.
		c.Writer = &timingWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Next()
	}
}

type timingWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timingWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	w.Header().Set(HeaderProcessTime, fmt.Sprintf("%.4f", time.Since(w.start).Seconds()))
}

func (w *timingWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *timingWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}
