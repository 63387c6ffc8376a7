package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/borshchevsky/tax-forms-scraper/internal/forms"
)

func newTestPipeline(r EntryResolver, d Downloader) *Pipeline {
	return &Pipeline{resolver: r, downloader: d, logger: zap.NewNop()}
}

func TestResolveSummaries_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	// The first identifier resolves slowest; output order must still match
	// input order.
	r := &fakeResolver{
		delays: map[string]time.Duration{"Form A": 60 * time.Millisecond, "Form B": 20 * time.Millisecond},
		entries: map[string][]forms.Entry{
			"Form A": {{FormNumber: "Form A", Year: 2001, Title: "A", DocumentLink: "u"}},
			"Form B": {{FormNumber: "Form B", Year: 2002, Title: "B", DocumentLink: "u"}},
			"Form C": {{FormNumber: "Form C", Year: 2003, Title: "C", DocumentLink: "u"}},
		},
	}
	p := newTestPipeline(r, nil)

	results := p.ResolveSummaries(context.Background(), []string{"Form A", "Form B", "Form C"})
	require.Len(t, results, 3)
	for i, want := range []string{"Form A", "Form B", "Form C"} {
		require.Equal(t, want, results[i].Identifier)
		require.Equal(t, forms.KindSuccess, results[i].Kind)
	}
}

func TestResolveSummaries_DuplicatesResolveIndependently(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{
		entries: map[string][]forms.Entry{
			"Form A": {{FormNumber: "Form A", Year: 2001, Title: "A", DocumentLink: "u"}},
		},
	}
	p := newTestPipeline(r, nil)

	results := p.ResolveSummaries(context.Background(), []string{"Form A", "Form A"})
	require.Len(t, results, 2)
	require.Equal(t, 2, r.calls("Form A"))
	for _, res := range results {
		require.Equal(t, forms.KindSuccess, res.Kind)
		require.Equal(t, 2001, res.Summary.MinYear)
	}
}

func TestResolveSummaries_FailuresAreIsolated(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{
		entries: map[string][]forms.Entry{
			"Form A": {{FormNumber: "Form A", Year: 2001, Title: "A", DocumentLink: "u"}},
			"Form C": {{FormNumber: "Form C", Year: 2003, Title: "C", DocumentLink: "u"}},
		},
		errs: map[string]error{
			"Form B": &forms.FetchError{Identifier: "Form B", URL: "u", StatusCode: 500},
		},
	}
	p := newTestPipeline(r, nil)

	results := p.ResolveSummaries(context.Background(), []string{"Form A", "Form B", "Form C"})
	require.Equal(t, forms.KindSuccess, results[0].Kind)
	require.Equal(t, forms.KindFetchError, results[1].Kind)
	require.Error(t, results[1].Err)
	require.Equal(t, forms.KindSuccess, results[2].Kind)
}

func TestResolveSummaries_UnknownIdentifierIsNotFound(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{}
	p := newTestPipeline(r, nil)

	results := p.ResolveSummaries(context.Background(), []string{"Form Z-999"})
	require.Len(t, results, 1)
	require.Equal(t, forms.KindNotFound, results[0].Kind)
	require.Nil(t, results[0].Summary)
}

func TestResolveSummaries_YearRangeScenario(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{
		entries: map[string][]forms.Entry{
			"Form 8911": {
				{FormNumber: "Form 8911", Year: 2005, Title: "Alternative Fuel Vehicle Refueling Property Credit", DocumentLink: "u1"},
				{FormNumber: "Form 8911", Year: 2009, Title: "Alternative Fuel Vehicle Refueling Property Credit", DocumentLink: "u2"},
				{FormNumber: "Form 8911", Year: 2021, Title: "Alternative Fuel Vehicle Refueling Property Credit", DocumentLink: "u3"},
			},
		},
	}
	p := newTestPipeline(r, nil)

	results := p.ResolveSummaries(context.Background(), []string{"Form 8911"})
	require.Equal(t, forms.KindSuccess, results[0].Kind)
	require.Equal(t, &forms.Summary{
		FormNumber: "Form 8911",
		FormTitle:  "Alternative Fuel Vehicle Refueling Property Credit",
		MinYear:    2005,
		MaxYear:    2021,
	}, results[0].Summary)
}

func TestResolveDownloads_SelectsOnlyListedYearsInRange(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{
		entries: map[string][]forms.Entry{
			"Form W-2": {
				{FormNumber: "Form W-2", Year: 1999, Title: "Wage and Tax Statement", DocumentLink: "u0"},
				{FormNumber: "Form W-2", Year: 2001, Title: "Wage and Tax Statement", DocumentLink: "u1"},
				{FormNumber: "Form W-2", Year: 2005, Title: "Wage and Tax Statement", DocumentLink: "u2"},
				{FormNumber: "Form W-2", Year: 2015, Title: "Wage and Tax Statement", DocumentLink: "u3"},
				{FormNumber: "Form W-2", Year: 2020, Title: "Wage and Tax Statement", DocumentLink: "u4"},
			},
		},
	}
	d := &fakeDownloader{}
	p := newTestPipeline(r, d)

	res := p.ResolveDownloads(context.Background(), "Form W-2", 2001, 2015, tempPaths{})
	require.Equal(t, forms.KindSuccess, res.Kind)
	require.Len(t, res.Downloads, 3)
	years := []int{res.Downloads[0].Task.Year, res.Downloads[1].Task.Year, res.Downloads[2].Task.Year}
	require.Equal(t, []int{2001, 2005, 2015}, years)
}

func TestResolveDownloads_UnknownIdentifierSkipsRangeStep(t *testing.T) {
	t.Parallel()

	d := &fakeDownloader{}
	p := newTestPipeline(&fakeResolver{}, d)

	res := p.ResolveDownloads(context.Background(), "Form Z-999", 1990, 2000, tempPaths{})
	require.Equal(t, forms.KindNotFound, res.Kind)
	require.Empty(t, res.Downloads)
	require.Zero(t, d.runs(), "no download may be issued for an unknown identifier")
}

func TestResolveDownloads_EmptyIntersectionIsNotFoundForRange(t *testing.T) {
	t.Parallel()

	r := &fakeResolver{
		entries: map[string][]forms.Entry{
			"Form W-2": {{FormNumber: "Form W-2", Year: 1995, Title: "Wage and Tax Statement", DocumentLink: "u"}},
		},
	}
	d := &fakeDownloader{}
	p := newTestPipeline(r, d)

	res := p.ResolveDownloads(context.Background(), "Form W-2", 2000, 2010, tempPaths{})
	require.Equal(t, forms.KindNotFoundForRange, res.Kind)
	require.Zero(t, d.runs())
}

func TestNewAndClose(t *testing.T) {
	t.Parallel()

	p := New(Config{
		CatalogBaseURL: "https://catalog.test/list.html",
		ResultsPerPage: 200,
		UserAgent:      "taxforms-test",
		Timeout:        time.Second,
		MaxInFlight:    4,
	}, zap.NewNop())
	require.NotNil(t, p)
	p.Close()
}

// --- fakes ---

type fakeResolver struct {
	mu      sync.Mutex
	n       map[string]int
	delays  map[string]time.Duration
	entries map[string][]forms.Entry
	errs    map[string]error
}

func (f *fakeResolver) Resolve(_ context.Context, identifier string) ([]forms.Entry, error) {
	f.mu.Lock()
	if f.n == nil {
		f.n = make(map[string]int)
	}
	f.n[identifier]++
	f.mu.Unlock()

	if d, ok := f.delays[identifier]; ok {
		time.Sleep(d)
	}
	if err, ok := f.errs[identifier]; ok {
		return nil, err
	}
	entries, ok := f.entries[identifier]
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", identifier, forms.ErrNotFound)
	}
	return entries, nil
}

func (f *fakeResolver) calls(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n[identifier]
}

type fakeDownloader struct {
	mu sync.Mutex
	n  int
}

func (f *fakeDownloader) Run(_ context.Context, tasks []forms.DownloadTask) []forms.DownloadResult {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()

	results := make([]forms.DownloadResult, len(tasks))
	for i, task := range tasks {
		results[i] = forms.DownloadResult{Task: task, Bytes: 1}
	}
	return results
}

func (f *fakeDownloader) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type tempPaths struct{}

func (tempPaths) DestinationPath(formNumber string, year int) (string, error) {
	return fmt.Sprintf("/tmp/%s-%d.pdf", formNumber, year), nil
}
