package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"TxLedger/internal/codec"
	"TxLedger/internal/ledger"
	"TxLedger/internal/observability"
	"TxLedger/internal/pipeline"
)

// recordChanCapacity bounds the decode-to-apply queue. Small enough to
// give real backpressure, large enough to keep the engine fed.
const recordChanCapacity = 100

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: txledger <transactions.csv[,file2.csv,...]> [--log]")
	fmt.Fprintln(os.Stderr, "  --log  print the transaction log instead of the account table")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		usage()
	}

	printLog := false
	if len(os.Args) == 3 {
		if os.Args[2] != "--log" {
			usage()
		}
		printLog = true
	}

	// Logging goes to stderr: stdout is reserved for the report.
	logger := observability.NewLoggerTo(os.Stderr, "txledger")

	// Comma-separated paths are one continuous stream: tx uniqueness
	// and dispute references span file boundaries.
	paths := strings.Split(os.Args[1], ",")

	var sources []pipeline.Source
	var files []*os.File
	for _, path := range paths {
		f, err := os.Open(strings.TrimSpace(path))
		if err != nil {
			logger.Error().Err(err).Str("path", path).Msg("cannot open input")
			os.Exit(1)
		}
		files = append(files, f)
		sources = append(sources, codec.NewDecoder(f))
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	ctx := context.Background()
	ch := pipeline.NewChannel(recordChanCapacity)
	engine := ledger.NewEngine()

	var wg sync.WaitGroup
	var produceErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		produceErr = pipeline.NewProducer(ch, logger).Run(ctx, sources...)
	}()

	if err := pipeline.NewConsumer(engine, ch, logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("consumer failed")
		os.Exit(1)
	}
	wg.Wait()

	// A decode error is fatal: no report, non-zero exit. Business-rule
	// rejections never land here; they are entries in the log.
	if produceErr != nil {
		logger.Error().Err(produceErr).Msg("input stream malformed")
		os.Exit(1)
	}

	var err error
	if printLog {
		err = codec.EncodeEntries(os.Stdout, engine.Log().Entries())
	} else {
		err = codec.EncodeAccounts(os.Stdout, engine.Accounts().Snapshot())
	}
	if err != nil {
		logger.Error().Err(err).Msg("write report")
		os.Exit(1)
	}
}
