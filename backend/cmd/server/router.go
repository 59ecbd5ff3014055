package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/services"
	apperrors "referral-map/backend/pkg/errors"
)

// newRouter wires the HTTP API onto svc
func newRouter(svc *services.GraphService, log *zap.Logger, maxUploadBytes int64) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"enrichment": svc.EnrichmentEnabled(),
		})
	})

	api := router.Group("/api")
	{
		// Upload a referral table
		api.POST("/graphs", func(c *gin.Context) {
			if c.Request.ContentLength > maxUploadBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

			fileHeader, err := c.FormFile("file")
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(c, log, err)
				return
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
				return
			}
			file, err := fileHeader.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			defer file.Close()

			summary, err := svc.Import(c.Request.Context(), fileHeader.Filename, file)
			if err != nil {
				writeError(c, log, err)
				return
			}

			c.JSON(http.StatusCreated, summary)
		})

		// List stored graphs
		api.GET("/graphs", func(c *gin.Context) {
			ids, err := svc.List(c.Request.Context())
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"graphs": ids})
		})

		// Store a previously saved graph
		api.PUT("/graphs/:id", func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

			body, err := c.GetRawData()
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(c, log, err)
				return
			}
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var g graph.Graph
			if err := json.Unmarshal(body, &g); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			summary, err := svc.Put(c.Request.Context(), c.Param("id"), &g)
			if err != nil {
				if apperrors.IsErrorType(err, apperrors.ErrorTypeStore) || apperrors.IsErrorType(err, apperrors.ErrorTypeEnrichment) {
					writeError(c, log, err)
					return
				}
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, summary)
		})

		// Get a graph
		api.GET("/graphs/:id", func(c *gin.Context) {
			g, err := svc.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, g)
		})

		api.GET("/graphs/:id/legend", func(c *gin.Context) {
			g, err := svc.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"legend": g.Legend()})
		})

		api.GET("/graphs/:id/connections", func(c *gin.Context) {
			g, err := svc.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"connections": g.Connections(),
				"coords":      g.CoordStats(),
			})
		})

		// Resolve missing coordinates
		api.POST("/graphs/:id/enrich", func(c *gin.Context) {
			summary, err := svc.Enrich(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, summary)
		})

		api.DELETE("/graphs/:id", func(c *gin.Context) {
			if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
				writeError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})
	}

	return router
}

// writeError maps service errors onto HTTP responses
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var failed *apperrors.ErrEnrichmentFailed
	var busy *apperrors.ErrEnrichmentInProgress
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &failed):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Place search failed",
			"status":    failed.Status,
			"query":     failed.Query,
			"retryable": apperrors.IsRetryable(err),
		})
	case errors.As(err, &busy):
		c.JSON(http.StatusConflict, gin.H{"error": "Graph is being enriched", "retryable": true})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeGraph):
		c.JSON(http.StatusNotFound, gin.H{"error": "Graph not found"})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeTable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeConfig):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Enrichment is not configured"})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
