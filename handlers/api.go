package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.temporal.io/sdk/client"
)

func RegisterRoutes(e *echo.Echo, getClient func() client.Client, settings Settings) {
	e.POST("/v1/refresh", func(c echo.Context) error {
		return SubmitRefreshHandler(c, getClient(), settings)
	})

	e.GET("/v1/status/:workflow_id", func(c echo.Context) error {
		client := getClient()
		if client == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Temporal client not available"})
		}
		return GetWorkflowStatusHandler(c, client, settings)
	})

	e.GET("/v1/history/:workflow_id", func(c echo.Context) error {
		client := getClient()
		if client == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Temporal client not available"})
		}
		return GetWorkflowActivityHistoryHandler(c, client, settings)
	})
}
