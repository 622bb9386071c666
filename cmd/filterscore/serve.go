// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aleutianfoss/filterscore/internal/config"
	"github.com/aleutianfoss/filterscore/internal/metric"
	"github.com/aleutianfoss/filterscore/internal/task"
	"github.com/aleutianfoss/filterscore/internal/telemetry"
)

// serveAddr holds the serve command's --addr flag.
var serveAddr string

// ErrorResponse is the JSON error body every failing endpoint returns,
// mirroring services/trace's ErrorResponse shape.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a debug HTTP server exposing POST /v1/score, GET /healthz, GET /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, serveAddr)
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	return cmd
}

func runServer(ctx context.Context, cfg *config.View, addr string) error {
	shutdownTelemetry, err := telemetry.Init(ctx, "filterscore")
	if err != nil {
		return err
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutCtx); err != nil {
			slog.Error("filterscore/serve: telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := &atomic.Pointer[config.View]{}
	live.Store(cfg)
	if configPath != "" {
		if err := config.Watch(ctx, configPath, func(v *config.View) { live.Store(v) }); err != nil {
			slog.Warn("filterscore/serve: config hot-reload disabled", slog.Any("error", err))
		} else {
			slog.Info("filterscore/serve: watching configuration for changes", slog.String("path", configPath))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("filterscore"))

	router.GET("/healthz", handleHealthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1 := router.Group("/v1")
	v1.POST("/score", handleScore(live))

	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("filterscore/serve: listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleScore(live *atomic.Pointer[config.View]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in hitInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		t := task.New(in.MessageID, live.Load(), in.Settings, slog.Default())
		for _, h := range in.Hits {
			var flags metric.InsertFlags
			if h.Single {
				flags |= metric.FlagSingle
			}
			if _, ok := t.InsertScored(c.Request.Context(), h.Symbol, h.Weight, h.Option, flags); !ok {
				c.JSON(http.StatusConflict, ErrorResponse{Error: "task already in idempotent phase"})
				return
			}
		}
		t.EnterIdempotentPhase()
		action := t.Verdict(c.Request.Context())
		t.Release()

		m, _ := t.Result()
		c.JSON(http.StatusOK, scoreOutput{MessageID: t.MessageID(), Score: m.Score(), Action: action.Name})
	}
}
