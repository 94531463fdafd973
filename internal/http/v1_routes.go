package http

// registerV1Routes sets up the v1 API.
// Groups: /api/v1/core, /api/v1/sync
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())

	core := v1.Group("/core")
	{
		core.GET("/stations", s.handleV1ListStations)
		core.GET("/stations/:id/sensors", s.handleV1ListSensors)
		core.GET("/sensors/:id/measurements", s.handleV1Measurements)
		core.GET("/sensors/:id/summary", s.handleV1Summary)
	}

	if s.syncer != nil {
		v1.POST("/sync/:city", s.handleV1Sync)
	}
}
