// Command cjotrigger serves the opportunity webhook over HTTP.
//
//	DATAVERSE_URL=https://contoso.crm.dynamics.com DATAVERSE_TOKEN=... cjotrigger -addr :8080
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jimmo120313/CJOPlugin/trigger"
	"github.com/jimmo120313/CJOPlugin/webhook"
)

func main() {
	configPath := flag.String("config", os.Getenv(trigger.ConfigEnvVar), "YAML file overlaid on the embedded defaults")
	addr := flag.String("addr", "", "listen address (overrides webhook.addr)")
	flag.Parse()

	config, err := trigger.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		config.Webhook.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := trigger.InitTracing(ctx, config.Tracing)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("Warning: failed to flush traces %v", err)
		}
	}()

	srv, err := webhook.NewServer(webhook.ServerConfig{
		Addr:     config.Webhook.Addr,
		Key:      config.Webhook.Key,
		Executor: trigger.NewNotifier(config, trigger.LogTracer{}),
		Config:   config,
	})
	if err != nil {
		log.Fatal(err)
	}
	if config.Webhook.Key == "" {
		log.Printf("Warning: webhook key is not set, requests are not authenticated")
	}

	log.Printf("listening on %s", srv.Addr())
	if err := srv.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
