package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ledger-ner/pkg/api"

	"github.com/google/uuid"
)

const usage = `usage: client [-url URL] <command> [args]

commands:
  submit NAME [-max-samples N] [-chunk-size N] [-eval-samples N] [-seed N]
  list [-status STATUS] [-limit N]
  get RUN_ID
  wait RUN_ID
  model RUN_ID OUT_FILE
  tag RUN_ID TEXT...
`

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("error encoding output: %v", err)
	}
}

func parseRunId(arg string) uuid.UUID {
	id, err := uuid.Parse(arg)
	if err != nil {
		log.Fatalf("invalid run id %q: %v", arg, err)
	}
	return id
}

func main() {
	baseURL := flag.String("url", "http://localhost:3001/api/v1", "base url of the api")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client := api.NewClient(*baseURL)
	ctx := context.Background()

	switch args[0] {
	case "submit":
		fs := flag.NewFlagSet("submit", flag.ExitOnError)
		maxSamples := fs.Int("max-samples", 0, "total training sentences, 0 uses the server default")
		chunkSize := fs.Int("chunk-size", 0, "sentences per chunk, 0 uses the server default")
		evalSamples := fs.Int("eval-samples", 100_000, "sentences per evaluation")
		seed := fs.Int64("seed", 42, "random seed")
		if len(args) < 2 {
			log.Fatal("submit requires a run name")
		}
		if err := fs.Parse(args[2:]); err != nil {
			log.Fatal(err)
		}

		runId, err := client.SubmitRun(ctx, api.TrainRequest{
			Name:        args[1],
			MaxSamples:  *maxSamples,
			ChunkSize:   *chunkSize,
			EvalSamples: *evalSamples,
			Seed:        seed,
		})
		if err != nil {
			log.Fatalf("error submitting run: %v", err)
		}
		fmt.Println(runId)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		status := fs.String("status", "", "only list runs with this status")
		limit := fs.Int("limit", 0, "maximum number of runs")
		if err := fs.Parse(args[1:]); err != nil {
			log.Fatal(err)
		}

		runs, err := client.ListRuns(ctx, api.ListRunsParams{Status: *status, Limit: *limit})
		if err != nil {
			log.Fatalf("error listing runs: %v", err)
		}
		for _, run := range runs {
			fmt.Printf("%s\t%-10s\t%d/%d\t%s\n", run.Id, run.Status, run.AccumulatedSamples, run.MaxSamples, run.Name)
		}

	case "get":
		if len(args) != 2 {
			log.Fatal("get requires a run id")
		}
		run, err := client.GetRun(ctx, parseRunId(args[1]))
		if err != nil {
			log.Fatalf("error getting run: %v", err)
		}
		printJSON(run)

	case "wait":
		if len(args) != 2 {
			log.Fatal("wait requires a run id")
		}
		runId := parseRunId(args[1])
		for {
			run, err := client.GetRun(ctx, runId)
			if err != nil {
				log.Fatalf("error getting run: %v", err)
			}
			fmt.Fprintf(os.Stderr, "%s %d/%d\n", run.Status, run.AccumulatedSamples, run.MaxSamples)
			if run.Status == "COMPLETED" || run.Status == "FAILED" {
				printJSON(run)
				return
			}
			time.Sleep(2 * time.Second)
		}

	case "model":
		if len(args) != 3 {
			log.Fatal("model requires a run id and an output file")
		}
		data, err := client.GetModel(ctx, parseRunId(args[1]))
		if err != nil {
			log.Fatalf("error downloading model: %v", err)
		}
		if err := os.WriteFile(args[2], data, 0644); err != nil {
			log.Fatalf("error writing model: %v", err)
		}

	case "tag":
		if len(args) < 3 {
			log.Fatal("tag requires a run id and at least one text")
		}
		results, err := client.Tag(ctx, parseRunId(args[1]), args[2:]...)
		if err != nil {
			log.Fatalf("error tagging: %v", err)
		}
		printJSON(results)

	default:
		flag.Usage()
		os.Exit(2)
	}
}
