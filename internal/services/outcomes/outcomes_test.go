package outcomes

import (
	"context"
	"errors"
	"testing"
	"time"

	"tipjar/internal/modkit"
	"tipjar/internal/platform/logger"
	"tipjar/internal/platform/store"
)

type fakeStream struct {
	adds []map[string]any
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, stream string, values map[string]any) (string, error) {
	if stream != Stream {
		return "", errors.New("wrong stream " + stream)
	}
	f.adds = append(f.adds, values)
	return "1-0", f.err
}

func (f *fakeStream) Close() error { return nil }

type fakeArchive struct {
	rows [][]any
	err  error
}

func (f *fakeArchive) Insert(_ context.Context, table string, data any) error {
	if table != Table {
		return errors.New("wrong table " + table)
	}
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, data.([][]any)...)
	return nil
}

func (f *fakeArchive) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (f *fakeArchive) Close() error                                              { return nil }

func rec() Record {
	return Record{
		EventID: "alice/re-post", Outcome: "done",
		Author: "alice", Recipient: "bob", Command: "HUG",
		Amount: 0.1, Weight: 20,
		At: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func newTestSvc(rds store.Redis, ch store.Clickhouse) *Svc {
	return &Svc{rds: rds, ch: ch, log: *logger.Named("outcomes-test")}
}

func TestPublish_BothSinks(t *testing.T) {
	t.Parallel()

	fs, fa := &fakeStream{}, &fakeArchive{}
	newTestSvc(fs, fa).Publish(context.Background(), rec())

	if len(fs.adds) != 1 {
		t.Fatalf("stream adds = %d, want 1", len(fs.adds))
	}
	if fs.adds[0]["event_id"] != "alice/re-post" || fs.adds[0]["outcome"] != "done" {
		t.Fatalf("stream payload = %v", fs.adds[0])
	}
	if len(fa.rows) != 1 {
		t.Fatalf("archive rows = %d, want 1", len(fa.rows))
	}
}

func TestPublish_SinkFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	fs := &fakeStream{err: errors.New("redis down")}
	fa := &fakeArchive{err: errors.New("ch down")}

	// must not panic or propagate
	newTestSvc(fs, fa).Publish(context.Background(), rec())
}

func TestPublish_NilSinksAreFine(t *testing.T) {
	t.Parallel()

	New(modkit.Deps{}).Publish(context.Background(), rec())
}
