package pipeline_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TxLedger/internal/codec"
	"TxLedger/internal/ledger"
	"TxLedger/internal/money"
	"TxLedger/internal/pipeline"
)

var testLog = zerolog.Nop()

// runPipeline decodes input CSV through a producer/consumer pair and
// returns the engine plus the producer's error.
func runPipeline(t *testing.T, capacity int, inputs ...string) (*ledger.Engine, error) {
	t.Helper()

	sources := make([]pipeline.Source, 0, len(inputs))
	for _, in := range inputs {
		sources = append(sources, codec.NewDecoder(strings.NewReader(in)))
	}

	ch := pipeline.NewChannel(capacity)
	engine := ledger.NewEngine()

	ctx := context.Background()
	var wg sync.WaitGroup
	var produceErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		produceErr = pipeline.NewProducer(ch, testLog).Run(ctx, sources...)
	}()

	if err := pipeline.NewConsumer(engine, ch, testLog).Run(ctx); err != nil {
		t.Fatalf("consumer failed: %v", err)
	}
	wg.Wait()

	return engine, produceErr
}

func TestPipeline_AppliesInOrder(t *testing.T) {
	input := "type,client,tx,amount\n" +
		"deposit,1,1,1.0\n" +
		"withdrawal,1,2,0.5\n" +
		"deposit,2,3,2.0\n"

	engine, err := runPipeline(t, 100, input)
	if err != nil {
		t.Fatalf("producer failed: %v", err)
	}

	if got := engine.Log().Len(); got != 3 {
		t.Fatalf("log length: got %d, want 3", got)
	}
	acct, _ := engine.Accounts().Lookup(1)
	if acct.Available != money.MustParse("0.5") {
		t.Errorf("client 1 available: got %s, want 0.5000", acct.Available)
	}
}

func TestPipeline_TinyCapacityPreservesOrder(t *testing.T) {
	// Capacity 1 forces the producer to block on every send. The
	// final state must not depend on channel capacity.
	var sb strings.Builder
	sb.WriteString("type,client,tx,amount\n")
	sb.WriteString("deposit,1,1,100.0\n")
	for tx := 2; tx <= 101; tx++ {
		sb.WriteString("withdrawal,1," + strconv.Itoa(tx) + ",1.0\n")
	}

	engine, err := runPipeline(t, 1, sb.String())
	if err != nil {
		t.Fatalf("producer failed: %v", err)
	}

	acct, _ := engine.Accounts().Lookup(1)
	if acct.Available != money.MustParse("0") {
		t.Errorf("available: got %s, want 0.0000", acct.Available)
	}
	if got := engine.Log().Len(); got != 101 {
		t.Errorf("log length: got %d, want 101", got)
	}
}

func TestPipeline_MultipleSourcesShareOneStream(t *testing.T) {
	first := "type,client,tx,amount\ndeposit,1,1,5.0\n"
	second := "type,client,tx,amount\ndispute,1,1,\ndeposit,1,1,9.0\n"

	engine, err := runPipeline(t, 100, first, second)
	if err != nil {
		t.Fatalf("producer failed: %v", err)
	}

	// The dispute in file two references the deposit from file one, and
	// the re-used tx 1 is a duplicate across the file boundary.
	entries := engine.Log().Entries()
	if len(entries) != 3 {
		t.Fatalf("log length: got %d, want 3", len(entries))
	}
	if entries[1].Status != ledger.StatusApplied {
		t.Errorf("dispute status: got %s, want applied", entries[1].Status)
	}
	if entries[2].Status != ledger.StatusDuplicateTransaction {
		t.Errorf("duplicate status: got %s, want duplicate_transaction", entries[2].Status)
	}

	acct, _ := engine.Accounts().Lookup(1)
	if acct.Held != money.MustParse("5.0") {
		t.Errorf("held: got %s, want 5.0000", acct.Held)
	}
}

func TestPipeline_DecodeErrorIsFatalButDrainsBuffer(t *testing.T) {
	// Two good records precede the malformed one. The producer must
	// surface the error, and the consumer must still have applied
	// everything queued before the failure.
	input := "type,client,tx,amount\n" +
		"deposit,1,1,1.0\n" +
		"deposit,2,2,2.0\n" +
		"deposit,bogus,3,3.0\n" +
		"deposit,4,4,4.0\n"

	engine, err := runPipeline(t, 100, input)
	if err == nil {
		t.Fatal("expected producer to fail on malformed record")
	}

	if got := engine.Log().Len(); got != 2 {
		t.Errorf("log length: got %d, want 2 (records before the bad row)", got)
	}
	if _, ok := engine.Accounts().Lookup(4); ok {
		t.Error("record after the bad row must not have been applied")
	}
}

func TestPipeline_BusinessRejectionsAreNotFatal(t *testing.T) {
	input := "type,client,tx,amount\n" +
		"withdrawal,1,1,5.0\n" + // insufficient funds on a fresh account
		"deposit,1,2,0\n" + // invalid amount
		"dispute,1,99,\n" + // unknown transaction
		"deposit,1,3,1.0\n"

	engine, err := runPipeline(t, 100, input)
	if err != nil {
		t.Fatalf("producer failed: %v", err)
	}

	if got := engine.Log().Len(); got != 4 {
		t.Fatalf("log length: got %d, want 4", got)
	}
	acct, _ := engine.Accounts().Lookup(1)
	if acct.Available != money.MustParse("1.0") {
		t.Errorf("available: got %s, want 1.0000", acct.Available)
	}
}

func TestChannel_SendAfterCloseFails(t *testing.T) {
	ch := pipeline.NewChannel(4)
	ch.Close()

	err := ch.Send(context.Background(), ledger.Record{Kind: ledger.KindDispute, Client: 1, Tx: 1})
	if err != pipeline.ErrChannelClosed {
		t.Errorf("got %v, want ErrChannelClosed", err)
	}
}

func TestChannel_SendBlocksWhenFull(t *testing.T) {
	ch := pipeline.NewChannel(1)
	ctx := context.Background()

	if err := ch.Send(ctx, ledger.Record{Kind: ledger.KindDispute, Client: 1, Tx: 1}); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	// Second send must block until cancelled: that blocking is the
	// backpressure contract.
	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	err := ch.Send(timeout, ledger.Record{Kind: ledger.KindDispute, Client: 1, Tx: 2})
	if err != context.DeadlineExceeded {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
	if ch.Len() != 1 {
		t.Errorf("channel length: got %d, want 1", ch.Len())
	}
}

func TestChannel_CloseDuringConcurrentSends(t *testing.T) {
	ch := pipeline.NewChannel(1)
	ctx := context.Background()

	// Drain continuously so in-flight sends always complete.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range ch.Records() {
		}
	}()

	// Several intake goroutines send until the channel closes under
	// them; a send racing the close must fail cleanly, never panic.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(client uint16) {
			defer wg.Done()
			for tx := uint32(1); ; tx++ {
				err := ch.Send(ctx, ledger.Record{Kind: ledger.KindDispute, Client: client, Tx: tx})
				if err != nil {
					if err != pipeline.ErrChannelClosed {
						t.Errorf("send: got %v, want %v", err, pipeline.ErrChannelClosed)
					}
					return
				}
			}
		}(uint16(g))
	}

	time.Sleep(time.Millisecond)
	ch.Close()
	wg.Wait()
	<-drained
}
