//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/yakanechi/screwdriver/internal/app/http"
	"github.com/yakanechi/screwdriver/internal/app/postgres"
	"github.com/yakanechi/screwdriver/internal/app/svc"
)

func initializeContainer() (container, error) {
	wire.Build(
		postgres.NewPipeline,
		postgres.NewJob,
		postgres.NewBuild,
		postgres.NewEvent,
		svc.NewExecutor,
		svc.NewMaterializer,
		svc.NewLineage,
		svc.NewJoin,
		svc.NewOrTrigger,
		svc.NewAndTrigger,
		svc.NewRemoteTrigger,
		svc.NewRemoteJoin,
		svc.NewTrigger,
		http.NewHandler,
		http.NewRouter,
		newConfig,
		newContainer,
		newWatcher,
		newPostgresConn,
		newAccessKey,
		newExecutorConn,
	)
	return container{}, nil
}
