package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/data/store"
	jobmodel "github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/internal/handlers"
	"github.com/akolanti/GoChunker/internal/job"
	"github.com/akolanti/GoChunker/internal/server"
	"github.com/akolanti/GoChunker/internal/worker"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	var (
		requestCount      int64
		stopWorkerChannel = make(chan bool, 1)
		workerWaitGroup   sync.WaitGroup
	)

	outputDir, err := filepath.Abs(c.String("output-dir"))
	if err != nil {
		return err
	}
	uploadDir, err := filepath.Abs(c.String("upload-dir"))
	if err != nil {
		return err
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	svc, closePipeline, err := buildPipeline(serviceContext, c)
	if err != nil {
		return err
	}

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		OutputDir:         outputDir,
		UploadDir:         uploadDir,
	}
	if redisJobs := store.GetRedisJobStore(serviceContext); redisJobs != nil {
		serviceConfig.JobStore = redisJobs
	}
	logger.Info("Starting job service", "outputDir", outputDir, "uploadDir", uploadDir)

	if serviceConfig.JobStore == nil {
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			closePipeline()
			return errors.New("redis job store is offline")
		}
		logger.Error("Redis job store is offline, falling back to memory")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
	}
	service := job.InitJobService(serviceConfig)

	handlers.InitJobHandler(service)

	//init worker pool
	worker.InitServices(service, svc)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices: func() {
			closeExternalServices()
			closePipeline()
		},
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(c.String("listen-addr"))

	<-stopExecution
	logger.Info("Server stopped")
	return nil
}
