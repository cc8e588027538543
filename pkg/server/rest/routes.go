// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mantavfs.
//
// go-mantavfs is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all routes for the gateway. metricsHandler may be
// nil.
func SetupRoutes(router *gin.Engine, handler *Handler, metricsHandler http.Handler) {
	router.GET("/health", handler.HealthCheck)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		fs := v1.Group("/fs")
		{
			fs.GET("/*path", handler.GetFile)
			fs.HEAD("/*path", handler.HeadFile)
			fs.PUT("/*path", handler.PutFile)
			fs.DELETE("/*path", handler.DeleteFile)
		}

		v1.GET("/list/*path", handler.ListDirectory)
		v1.GET("/stat/*path", handler.StatNode)
		v1.GET("/url/*path", handler.PublicURL)

		v1.POST("/mkdir/*path", handler.CreateFolder)
		v1.POST("/rename/*path", handler.Rename)
		v1.POST("/copy/*path", handler.Copy)

		attrs := v1.Group("/attrs")
		{
			attrs.GET("/*path", handler.GetAttributes)
			attrs.PUT("/*path", handler.SetAttribute)
			attrs.DELETE("/*path", handler.RemoveAttribute)
		}
	}

	signed := router.Group("/signed")
	{
		signed.GET("/*path", handler.Signed)
		signed.HEAD("/*path", handler.Signed)
		signed.PUT("/*path", handler.Signed)
		signed.DELETE("/*path", handler.Signed)
	}
}
