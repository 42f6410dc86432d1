package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/app"
	"mcq-trainer/internal/domain"
	"mcq-trainer/internal/infra/memory"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type brokenBlobs struct{}

func (brokenBlobs) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk unavailable")
}
func (brokenBlobs) Set(context.Context, string, []byte) error { return errors.New("disk unavailable") }
func (brokenBlobs) Delete(context.Context, string) error      { return errors.New("disk unavailable") }

func TestMergeAppendsToExistingBank(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuestionStore(memory.NewBlobStore(), quietLogger())

	if _, status := store.Fetch(ctx); status != app.LoadAbsent {
		t.Fatalf("expected absent bank, got %s", status)
	}
	if _, err := store.Merge(ctx, mathQuestions(2)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	total, err := store.Merge(ctx, mathQuestions(3))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 questions after append, got %d", total)
	}
	bank, status := store.Fetch(ctx)
	if status != app.LoadOK || len(bank) != 5 {
		t.Fatalf("expected 5 stored questions, got %d (%s)", len(bank), status)
	}
}

func TestBankIsWrittenPrettyWithoutEscaping(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	store := app.NewQuestionStore(blobs, quietLogger())

	err := store.Save(ctx, domain.Bank{{Text: "Größe <b>?", Options: []string{"a", "b", "c", "d"}, Answer: 1}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	data, _, _ := blobs.Get(ctx, app.BankKey)
	if !strings.Contains(string(data), "Größe <b>?") || !strings.Contains(string(data), "\n  ") {
		t.Fatalf("expected pretty unescaped JSON, got %s", data)
	}
}

func TestCorruptBankReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	_ = blobs.Set(ctx, app.BankKey, []byte("{not json"))
	store := app.NewQuestionStore(blobs, quietLogger())

	bank, status := store.Fetch(ctx)
	if status != app.LoadCorrupt || len(bank) != 0 {
		t.Fatalf("expected empty corrupt bank, got %d (%s)", len(bank), status)
	}
}

func TestImportWithoutValidRowsLeavesBankUntouched(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuestionStore(memory.NewBlobStore(), quietLogger())
	_, _ = store.Merge(ctx, mathQuestions(1))

	result, err := store.ImportCSV(ctx, [][]string{{"short"}})
	if !errors.Is(err, domain.ErrNoValidRows) {
		t.Fatalf("expected ErrNoValidRows, got %v", err)
	}
	if result.Rejected != 1 {
		t.Fatalf("expected 1 rejected row, got %d", result.Rejected)
	}
	if bank := store.Load(ctx); len(bank) != 1 {
		t.Fatalf("expected bank untouched, got %d questions", len(bank))
	}
}

func TestUnavailableBankRefusesMerge(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuestionStore(brokenBlobs{}, quietLogger())

	if _, status := store.Fetch(ctx); status != app.LoadUnavailable {
		t.Fatalf("expected unavailable, got %s", status)
	}
	if _, err := store.Merge(ctx, mathQuestions(1)); err == nil {
		t.Fatalf("expected merge to fail when the bank cannot be read")
	}
}

func TestQueryAndSubjects(t *testing.T) {
	bank := domain.Bank{
		{Text: "a", Subject: "Math"},
		{Text: "b", Subject: "Bio"},
		{Text: "c"},
		{Text: "d", Subject: "Math"},
	}
	if got := app.Query(bank, "Math"); len(got) != 2 {
		t.Fatalf("expected 2 math questions, got %d", len(got))
	}
	if got := app.Query(bank, domain.DefaultSubject); len(got) != 1 || got[0].Text != "c" {
		t.Fatalf("expected subjectless question under General, got %+v", got)
	}
	if got := app.Query(bank, domain.SubjectAll); len(got) != 4 {
		t.Fatalf("expected all questions, got %d", len(got))
	}
	subjects := app.Subjects(bank)
	if strings.Join(subjects, ",") != "Bio,General,Math" {
		t.Fatalf("unexpected subjects %v", subjects)
	}
}

// gatedBlobs holds the first Get after it has read the backend until release is closed.
type gatedBlobs struct {
	*memory.BlobStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, found, err := g.BlobStore.Get(ctx, key)
	held := false
	g.once.Do(func() { held = true })
	if held {
		close(g.entered)
		<-g.release
	}
	return data, found, err
}

func TestLoadAfterImportSeesCommittedRows(t *testing.T) {
	ctx := context.Background()
	blobs := &gatedBlobs{BlobStore: memory.NewBlobStore(), entered: make(chan struct{}), release: make(chan struct{})}
	store := app.NewQuestionStore(blobs, quietLogger())

	early := make(chan int, 1)
	go func() { early <- len(store.Load(ctx)) }()
	<-blobs.entered
	defer close(blobs.release)

	if _, err := store.ImportCSV(ctx, [][]string{{"Q1", "a", "b", "c", "d", "1"}}); err != nil {
		t.Fatalf("import: %v", err)
	}

	late := make(chan int, 1)
	go func() { late <- len(store.Load(ctx)) }()
	select {
	case got := <-late:
		if got != 1 {
			t.Fatalf("expected load after import to see 1 question, got %d", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("load after import waited on a read that started before it")
	}
}

// ctxBlobs fails reads whose context is already done.
type ctxBlobs struct {
	*memory.BlobStore
}

func (c ctxBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return c.BlobStore.Get(ctx, key)
}

func TestFetchIsNotTiedToCallerCancellation(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuestionStore(ctxBlobs{memory.NewBlobStore()}, quietLogger())
	if _, err := store.Merge(ctx, mathQuestions(2)); err != nil {
		t.Fatalf("merge: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	bank, status := store.Fetch(canceled)
	if status != app.LoadOK || len(bank) != 2 {
		t.Fatalf("expected 2 questions despite canceled caller, got %d (%s)", len(bank), status)
	}
}

func TestConcurrentImportsKeepEveryRow(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuestionStore(memory.NewBlobStore(), quietLogger())

	const uploads = 20
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row := []string{fmt.Sprintf("Q%d", i), "a", "b", "c", "d", "1"}
			if _, err := store.ImportCSV(ctx, [][]string{row}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("import: %v", err)
	}

	bank := store.Load(ctx)
	if len(bank) != uploads {
		t.Fatalf("expected %d questions after concurrent imports, got %d", uploads, len(bank))
	}
	seen := make(map[string]bool)
	for _, q := range bank {
		seen[q.Text] = true
	}
	if len(seen) != uploads {
		t.Fatalf("expected %d distinct questions, got %d", uploads, len(seen))
	}
}
