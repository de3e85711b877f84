package server

import "github.com/labstack/echo/v4"

// RegisterRoutes wires the eight inbound surfaces of §6 onto e. There is no
// auth group here — the core has exactly one caller (the local UI) and the
// knowledge base explicitly rules out multi-user control.
func RegisterRoutes(e *echo.Echo, h *handlers) {
	e.GET("/health", func(c echo.Context) error { return c.String(200, "OK") })

	e.POST("/ingest/text", h.ingestText)
	e.POST("/ingest/pdf", h.ingestPDF)
	e.GET("/query", h.query)
	e.GET("/events", h.subscribeEvents)
	e.GET("/events/schema", h.eventsSchema)
	e.POST("/snapshot", h.snapshot)
	e.POST("/restore", h.restore)
	e.GET("/status", h.status)
}
