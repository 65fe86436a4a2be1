package add

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/cmdutil"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/ebook"
	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/resolve"
	"github.com/lepinkainen/libris/internal/testutil"
	"github.com/lepinkainen/libris/internal/tui"
)

type stubExtractor struct {
	info ebook.BasicInfo
	err  error
}

func (s stubExtractor) ExtractBasicInfo(string) (ebook.BasicInfo, error) { return s.info, s.err }

func setup(t *testing.T) (*fakeCatalog, *testutil.TestEnv, *cmdutil.Services) {
	t.Helper()

	fc := fireCatalog(t)
	env := testutil.NewTestEnv(t)
	testutil.SetTestConfig(t, env, fc.URL)

	s, err := cmdutil.NewServices(context.Background(), true)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return fc, env, s
}

func stubSelect(t *testing.T, fn func(string, []catalog.Candidate) (tui.SelectionResult, error)) {
	t.Helper()
	orig := selectCandidate
	selectCandidate = fn
	t.Cleanup(func() { selectCandidate = orig })
}

func TestBuildRequest(t *testing.T) {
	ex := stubExtractor{info: ebook.BasicInfo{Title: "Fire", Authors: []string{"Kristin Cashore", "Someone"}}}

	tests := []struct {
		name     string
		opts     Options
		strategy resolve.Strategy
		describe string
	}{
		{name: "id", opts: Options{ID: "6137154"}, strategy: resolve.StrategyID, describe: "id 6137154"},
		{name: "isbn", opts: Options{ISBN: "9780803734616"}, strategy: resolve.StrategyISBN, describe: "ISBN 9780803734616"},
		{name: "title", opts: Options{Title: "Fire"}, strategy: resolve.StrategyTitle, describe: `"Fire"`},
		{name: "title and author", opts: Options{Title: "Fire", Author: "Kristin Cashore"}, strategy: resolve.StrategyTitleWithAuthor, describe: `"Fire" by Kristin Cashore`},
		{name: "file", opts: Options{File: "fire.epub"}, strategy: resolve.StrategyTitleWithAuthor, describe: `"Fire" by Kristin Cashore`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest(tt.opts, ex)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, req.Strategy())
			assert.Equal(t, tt.describe, resolve.Describe(req))
		})
	}
}

func TestBuildRequest_Invalid(t *testing.T) {
	ex := stubExtractor{err: errors.New("not an epub")}

	for _, opts := range []Options{
		{},
		{ID: "1", Title: "Fire"},
		{ISBN: "123", Author: "Someone"},
	} {
		_, err := BuildRequest(opts, ex)
		assert.Error(t, err, "%+v", opts)
	}

	_, err := BuildRequest(Options{File: "broken.epub"}, ex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an epub")
}

func TestAddBook_TitleAndAuthor(t *testing.T) {
	_, _, s := setup(t)
	changes, unsubscribe := s.Changes.Subscribe()
	defer unsubscribe()

	opts := Options{Title: "Fire", Author: "Kristin Cashore"}
	req, err := BuildRequest(opts, nil)
	require.NoError(t, err)

	book, err := AddBook(context.Background(), s, req, opts)
	require.NoError(t, err)
	assert.Equal(t, "6137154", book.ExternalID)
	assert.Equal(t, "Fire", book.Title)

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no library change signal")
	}

	stored, found, err := s.Library.GetBook(context.Background(), "6137154")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Fire", stored.Sort)
	require.Len(t, stored.Authors, 1)
	assert.Equal(t, "Kristin Cashore", stored.Authors[0].Name)
	assert.Equal(t, "Cashore, Kristin", stored.Authors[0].Sort)
	require.Len(t, stored.Series, 1)
	assert.Equal(t, "Graceling Realm", stored.Series[0].Name)
	assert.Equal(t, 2.0, stored.Series[0].Volume)
	require.NotNil(t, stored.NumberOfPages)
	assert.Equal(t, int64(461), *stored.NumberOfPages)
}

func TestAddBook_TitleOnlyTakesFirstMatch(t *testing.T) {
	_, _, s := setup(t)

	book, err := AddBook(context.Background(), s, resolve.ByTitle("Fire"), Options{Title: "Fire"})
	require.NoError(t, err)
	assert.Equal(t, "11084", book.ExternalID)
}

func TestAddBook_ISBN(t *testing.T) {
	_, _, s := setup(t)

	book, err := AddBook(context.Background(), s, resolve.ByISBN("9780803734616"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "6137154", book.ExternalID)
}

func TestAddBook_Duplicate(t *testing.T) {
	_, _, s := setup(t)
	ctx := context.Background()

	_, err := AddBook(ctx, s, resolve.ByID("6137154"), Options{})
	require.NoError(t, err)

	_, err = AddBook(ctx, s, resolve.ByID("6137154"), Options{})
	require.Error(t, err)
	assert.True(t, liberrors.IsDuplicateBookError(err))
	assert.Contains(t, err.Error(), "already in your library")

	books, err := s.Library.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestAddBook_NotFound(t *testing.T) {
	fc, _, s := setup(t)

	_, err := AddBook(context.Background(), s, resolve.ByTitle("Nonexistent"), Options{})
	require.ErrorIs(t, err, ErrNoMetadata)

	_, err = AddBook(context.Background(), s, resolve.ByID("999"), Options{})
	require.ErrorIs(t, err, ErrNoMetadata)
	assert.Zero(t, fc.requestCount("/book/show/6137154"))
}

func TestAddBook_Covers(t *testing.T) {
	_, env, s := setup(t)

	_, err := AddBook(context.Background(), s, resolve.ByID("6137154"), Options{Covers: true})
	require.NoError(t, err)
	assert.True(t, env.FileExists("covers/6137154.jpg"))
}

func TestAddBook_CoverFailureIsNotFatal(t *testing.T) {
	fc, env, s := setup(t)
	fc.books["6137154"] = fireState(fc.URL + "/missing.png")

	_, err := AddBook(context.Background(), s, resolve.ByID("6137154"), Options{Covers: true})
	require.NoError(t, err)
	assert.False(t, env.FileExists("covers/6137154.jpg"))
}

func TestAddBook_InteractiveSelection(t *testing.T) {
	_, _, s := setup(t)

	var offered []catalog.Candidate
	stubSelect(t, func(query string, cands []catalog.Candidate) (tui.SelectionResult, error) {
		offered = cands
		pick := cands[1]
		return tui.SelectionResult{Action: tui.ActionSelected, Selection: &pick}, nil
	})

	opts := Options{Title: "Fire", Interactive: true}
	book, err := AddBook(context.Background(), s, resolve.ByTitle("Fire"), opts)
	require.NoError(t, err)
	require.Len(t, offered, 2)
	assert.Equal(t, "6137154", book.ExternalID)
}

func TestAddBook_InteractiveSingleMatchSkipsUI(t *testing.T) {
	_, _, s := setup(t)
	stubSelect(t, func(string, []catalog.Candidate) (tui.SelectionResult, error) {
		t.Fatal("selection UI should not open")
		return tui.SelectionResult{}, nil
	})

	opts := Options{Title: "Fire", Author: "Kristin Cashore", Interactive: true}
	req, err := BuildRequest(opts, nil)
	require.NoError(t, err)

	book, err := AddBook(context.Background(), s, req, opts)
	require.NoError(t, err)
	assert.Equal(t, "6137154", book.ExternalID)
}

func TestAddBook_InteractiveSkipAndStop(t *testing.T) {
	_, _, s := setup(t)
	opts := Options{Title: "Fire", Interactive: true}

	stubSelect(t, func(string, []catalog.Candidate) (tui.SelectionResult, error) {
		return tui.SelectionResult{Action: tui.ActionSkipped}, nil
	})
	_, err := AddBook(context.Background(), s, resolve.ByTitle("Fire"), opts)
	require.ErrorIs(t, err, ErrSkipped)

	stubSelect(t, func(string, []catalog.Candidate) (tui.SelectionResult, error) {
		return tui.SelectionResult{Action: tui.ActionStopped}, nil
	})
	_, err = AddBook(context.Background(), s, resolve.ByTitle("Fire"), opts)
	require.True(t, liberrors.IsStopProcessingError(err))

	books, err := s.Library.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestRun_FromFile(t *testing.T) {
	fc := fireCatalog(t)
	env := testutil.NewTestEnv(t)
	testutil.SetTestConfig(t, env, fc.URL)
	config.MetricsTextfile = env.Path("libris.prom")

	origExtractor, origOutput := extractor, output
	var out bytes.Buffer
	extractor = stubExtractor{info: ebook.BasicInfo{Title: "Fire", Authors: []string{"Kristin Cashore"}}}
	output = &out
	t.Cleanup(func() { extractor, output = origExtractor, origOutput })

	require.NoError(t, Run(Options{File: "fire.epub"}))
	assert.Equal(t, "Added \"Fire\" (goodreads id 6137154)\n", out.String())
	assert.True(t, env.FileExists("libris.db"))
	assert.Contains(t, string(env.ReadFile("libris.prom")), "libris_books_ingested_total 1")
}

func TestDescribeIngestError(t *testing.T) {
	book := &metadata.BookMetadata{Title: "Fire", ExternalID: "6137154"}

	err := describeIngestError(book, liberrors.NewInvalidRecordError("invalid author catalog id \"x\""))
	assert.True(t, liberrors.IsInvalidRecordError(err))
	assert.Contains(t, err.Error(), `cannot store "Fire"`)

	err = describeIngestError(book, liberrors.NewDatabaseError("commit", errors.New("disk full")))
	assert.Contains(t, err.Error(), "storage error")

	err = describeIngestError(book, liberrors.NewDuplicateBookError("6137154"))
	assert.Contains(t, err.Error(), "already in your library")
}
