package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"ledger-ner/internal/core"
	"ledger-ner/internal/core/training"
	"ledger-ner/internal/lexicon"

	"github.com/schollz/progressbar/v3"
)

var manualSentences = []string{
	"beli 50 sak semen gresik harganya 50rb",
	"minta paku 2 kilo sama cat 1 kaleng",
	"jual pasir 1 rit 1.5jt",
	"token listrik 20rb",
	"beliin rokok surya 12 2 bungkus",
	"nasi goreng 15k pedes banget",
}

func main() {
	defaults := training.DefaultConfig()

	maxSamples := flag.Int("max-samples", defaults.MaxSamples, "total number of generated training sentences")
	chunkSize := flag.Int("chunk-size", defaults.ChunkSize, "sentences per training chunk")
	evalSamples := flag.Int("eval-samples", defaults.EvalSamples, "sentences per evaluation, 0 disables evaluation")
	seed := flag.Int64("seed", defaults.Seed, "random seed")
	alpha := flag.Float64("alpha", defaults.Alpha, "additive smoothing")
	out := flag.String("out", "model.json", "path to write the exported model")
	version := flag.String("version", "dev", "version recorded in the model metadata")
	lexiconPath := flag.String("lexicon", "", "optional lexicon yaml overriding the built-in one")
	flag.Parse()

	catalog := lexicon.Default()
	if *lexiconPath != "" {
		var err error
		if catalog, err = lexicon.Load(*lexiconPath); err != nil {
			log.Fatalf("error loading lexicon: %v", err)
		}
	}

	cfg := defaults
	cfg.MaxSamples = *maxSamples
	cfg.ChunkSize = *chunkSize
	cfg.EvalSamples = *evalSamples
	cfg.Seed = *seed
	cfg.Alpha = *alpha

	bar := progressbar.NewOptions(cfg.MaxSamples,
		progressbar.OptionSetDescription("training"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var evaluations []training.Evaluation
	session, err := training.NewSession(cfg, catalog,
		training.WithChunkHook(func(res training.ChunkResult) {
			_ = bar.Add(res.Sentences)
			if res.Evaluation != nil {
				evaluations = append(evaluations, *res.Evaluation)
			}
		}),
		training.WithPhaseHook(func(p training.Phase) {
			bar.Describe(p.String())
		}),
	)
	if err != nil {
		log.Fatalf("error creating training session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := session.Run(ctx); err != nil {
		log.Fatalf("training stopped: %v", err)
	}
	_ = bar.Finish()

	fmt.Printf("trained on %d sentences in %d chunks (%d features) in %s\n",
		session.AccumulatedSamples(), session.ChunksProcessed(), session.VocabularySize(), time.Since(start).Round(time.Millisecond))
	for _, eval := range evaluations {
		fmt.Printf("  chunk %d: accuracy %.4f on %d tokens\n", eval.Chunk, eval.Accuracy, eval.Tokens)
	}

	if err := writeModel(session, *out, *version); err != nil {
		log.Fatalf("error writing model: %v", err)
	}
	slog.Info("model written", "path", *out)

	if err := printManualInference(session, catalog); err != nil {
		log.Fatalf("error running manual inference: %v", err)
	}
}

func writeModel(session *training.Session, path, version string) error {
	doc, err := session.Export(version)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := doc.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printManualInference(session *training.Session, catalog *lexicon.Catalog) error {
	tagger, err := session.Tagger()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, sentence := range manualSentences {
		tx, err := core.ParseTransaction(tagger, catalog, sentence, time.Now())
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\n%s\n", sentence)
		for _, tok := range tx.Tokens {
			fmt.Fprintf(w, "  %s\t%s\n", tok.Text, tok.Tag)
		}
		for _, item := range tx.Items {
			fmt.Fprintf(w, "  -> %s\tqty %d\ttotal %.0f\n", item.Name, item.Quantity, item.Total)
		}
		if tx.Type != core.Unknown {
			fmt.Fprintf(w, "  type\t%s\n", strings.ToLower(string(tx.Type)))
		}
	}
	return w.Flush()
}
