package main

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/julienschmidt/httprouter"
	"github.com/yakanechi/screwdriver/internal/app"
	"github.com/yakanechi/screwdriver/internal/app/svc"
	"google.golang.org/grpc"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// get watcher and router using DI wire
	c, err := initializeContainer()
	if err != nil {
		log.Fatalf("main: %v\n", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// run watcher that fires the triggers of finished builds in background
	go c.watcher.Watch(ctx)
	// run http server
	runHttpServer(c.cfg, c.router)
}

type container struct {
	cfg     config
	watcher svc.Watcher
	router  *httprouter.Router
}

func newContainer(cfg config, watcher svc.Watcher, router *httprouter.Router) container {
	return container{
		cfg:     cfg,
		watcher: watcher,
		router:  router,
	}
}

func newAccessKey(cfg config) app.ApiAccessKey {
	return app.ApiAccessKey(cfg.AccessKey)
}

func newWatcher(cfg config, trigger app.TriggerSvc) svc.Watcher {
	return svc.NewWatcher([]app.WatcherJob{
		{
			Name: "fireTriggers",
			Do:   trigger.Job,
		},
	}, cfg.WatchDelay)
}

func newPostgresConn(cfg config) *pgxpool.Pool {
	pgs := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Name,
	)
	conn, err := pgxpool.Connect(context.Background(), pgs)
	if err != nil {
		log.Fatalf("main.newPostgresConn: %v\n", err)
	}
	return conn
}

func newExecutorConn(cfg config) grpc.ClientConnInterface {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	conn, err := grpc.DialContext(ctx, cfg.ExecutorAddr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		log.Fatalf("main.newExecutorConn: dial: %v; addr=%s\n", err, cfg.ExecutorAddr)
	}
	return conn
}

func runHttpServer(cfg config, router *httprouter.Router) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		var err error
		if len(cfg.HTTP.CrtFile) > 0 {
			err = srv.ListenAndServeTLS(cfg.HTTP.CrtFile, cfg.HTTP.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("main.runHttpServer: serve http: %v; port = %s\n", err, cfg.HTTP.Port)
		}
	}()
	log.Printf("Listening :%s for HTTP connections...\n", cfg.HTTP.Port)
	<-done
	log.Print("Stopping the application...\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("main.runHttpServer: server shutdown: %v\n", err)
	}
}
