package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"kvedit/internal/config"
	"kvedit/internal/engine"
	"kvedit/internal/logging"
)

func main() {
	jobPath := flag.String("job", "job.yml", "path to the job definition")
	dryRun := flag.Bool("dry-run", false, "force dry-run regardless of the job file")
	flag.Parse()

	logging.InitFromEnv()

	job, err := config.Load(*jobPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dryRun {
		job.DryRun = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(job)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer e.Close()

	rep, err := e.Run(ctx)
	if rep != nil {
		out, merr := yaml.Marshal(rep)
		if merr != nil {
			log.Fatalf("report: %v", merr)
		}
		fmt.Print(string(out))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("job: %v", err)
	}
}
