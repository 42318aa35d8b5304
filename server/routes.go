package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/upload", s.handleUpload)
	s.engine.POST("/remove", s.handleRemove)
	s.engine.POST("/reset", s.handleReset)
	s.engine.GET("/download", s.handleDownload)
	s.engine.GET("/blob/:id", s.handleBlob)

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
