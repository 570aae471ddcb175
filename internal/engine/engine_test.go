package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture returns the four sample documents used across the search tests.
func fixture() List {
	return List{
		Record{ID: "1", Fields: map[string]string{"name": "One", "description": "The first document"}},
		Record{ID: "2", Fields: map[string]string{"name": "Two", "description": "The second document"}},
		Record{ID: "3", Fields: map[string]string{"name": "Three", "description": "The third document"}},
		Record{ID: "4", Fields: map[string]string{"name": "Four", "description": "The 4th (fourth) document"}},
	}
}

func newIndexedEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	fixture().Each(func(d Document) {
		e.IndexDocument(d.DocumentID(), d.FieldValue("name"))
		e.IndexDocument(d.DocumentID(), d.FieldValue("description"))
	})
	return e
}

func TestEngine_Search_AllSubstrings(t *testing.T) {
	e := newIndexedEngine(t, DefaultOptions())
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query returns everything", "", []string{"1", "2", "3", "4"}},
		{"whitespace query returns everything", "   ", []string{"1", "2", "3", "4"}},
		{"case folded name", "one", []string{"1"}},
		{"substring in every doc", "ocumen", []string{"1", "2", "3", "4"}},
		{"substring inside punctuation", "fourth", []string{"4"}},
		{"tokens are ANDed across fields", "two second", []string{"2"}},
		{"tokens that never co-occur", "first second", []string{}},
		{"regexp metacharacters are literal", "(fourth)", []string{"4"}},
		{"dot is not a wildcard", ".", []string{}},
		{"no match", "fifth", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := e.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestEngine_Search_Prefixes(t *testing.T) {
	// Given: an engine in prefix mode
	opts := DefaultOptions()
	opts.IndexMode = Prefixes
	e := newIndexedEngine(t, opts)

	// When: searching for a word prefix
	ids, err := e.Search(context.Background(), "fou")
	require.NoError(t, err)

	// Then: only the document with that prefix matches
	assert.Equal(t, []string{"4"}, ids)

	// And: a word suffix does not match
	ids, err = e.Search(context.Background(), "ocument")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEngine_Search_ExactWords(t *testing.T) {
	opts := DefaultOptions()
	opts.IndexMode = ExactWords
	e := newIndexedEngine(t, opts)
	ctx := context.Background()

	ids, err := e.Search(ctx, "document")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)

	// "(fourth)" is one token under the whitespace pattern
	ids, err = e.Search(ctx, "fourth")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = e.Search(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEngine_Search_CustomTokenizePattern(t *testing.T) {
	// Given: parentheses are separators too
	opts := DefaultOptions()
	opts.IndexMode = ExactWords
	opts.TokenizePattern = `[\s()]+`
	e := newIndexedEngine(t, opts)

	// When/Then: the bare word inside parentheses is a token
	ids, err := e.Search(context.Background(), "fourth")
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids)
}

func TestEngine_Search_CaseSensitive(t *testing.T) {
	opts := DefaultOptions()
	opts.CaseSensitive = true
	e := newIndexedEngine(t, opts)
	ctx := context.Background()

	ids, err := e.Search(ctx, "one")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = e.Search(ctx, "One")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}

func TestEngine_Search_InsertionOrder(t *testing.T) {
	// Given: documents indexed out of lexical order
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	e.IndexDocument("b", "apple pie")
	e.IndexDocument("c", "apple tart")
	e.IndexDocument("a", "apple crumble")

	// When: all three match
	ids, err := e.Search(context.Background(), "apple")
	require.NoError(t, err)

	// Then: results follow insertion order, not score or id
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, 3, e.Len())
}

func TestEngine_IndexDocument_InvalidatesCache(t *testing.T) {
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	ctx := context.Background()

	e.IndexDocument("1", "alpha")
	ids, err := e.Search(ctx, "beta")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// When: a later document matches the cached query
	e.IndexDocument("2", "beta")

	// Then: the cached empty result is not reused
	ids, err = e.Search(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)
}

func TestEngine_Search_ResultsAreCopies(t *testing.T) {
	e := newIndexedEngine(t, DefaultOptions())
	ctx := context.Background()

	ids, err := e.Search(ctx, "document")
	require.NoError(t, err)
	ids[0] = "mutated"

	again, err := e.Search(ctx, "document")
	require.NoError(t, err)
	assert.Equal(t, "1", again[0])
}

func TestEngine_Search_NoMatchIsEmptyNotNil(t *testing.T) {
	// Given: an engine with the sample documents
	e := newIndexedEngine(t, DefaultOptions())
	ctx := context.Background()

	// When: a query matches nothing, twice so the second hits the cache
	first, err := e.Search(ctx, "fifth")
	require.NoError(t, err)
	cached, err := e.Search(ctx, "fifth")
	require.NoError(t, err)

	// Then: both results are empty, non-nil slices
	require.NotNil(t, first)
	require.NotNil(t, cached)
	assert.Empty(t, first)
	assert.Empty(t, cached)
}

func TestEngine_Search_NoCache(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 0
	e := newIndexedEngine(t, opts)

	ids, err := e.Search(context.Background(), "third")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids)
}

func TestEngine_Search_CancelledContext(t *testing.T) {
	e := newIndexedEngine(t, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, "document")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Search_AfterClose(t *testing.T) {
	e, err := New(DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Search(context.Background(), "x")
	assert.Error(t, err)

	// Close is idempotent
	assert.NoError(t, e.Close())
}

func TestNew_InvalidPattern(t *testing.T) {
	opts := DefaultOptions()
	opts.TokenizePattern = `[`

	_, err := New(opts)
	assert.Error(t, err)
}

func TestParseIndexMode(t *testing.T) {
	tests := []struct {
		in      string
		want    IndexMode
		wantErr bool
	}{
		{"", AllSubstrings, false},
		{"all_substrings", AllSubstrings, false},
		{"PREFIXES", Prefixes, false},
		{" exact_words ", ExactWords, false},
		{"fuzzy", AllSubstrings, true},
	}
	for _, tt := range tests {
		got, err := ParseIndexMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got.String(), mustRoundTrip(t, got))
	}
}

func mustRoundTrip(t *testing.T, m IndexMode) string {
	t.Helper()
	back, err := ParseIndexMode(m.String())
	require.NoError(t, err)
	return back.String()
}

func TestKeyed_EachSortsKeys(t *testing.T) {
	k := Keyed{
		"z": Record{ID: "3"},
		"a": Record{ID: "1"},
		"m": Record{ID: "2"},
	}

	var ids []string
	k.Each(func(d Document) { ids = append(ids, d.DocumentID()) })

	assert.Equal(t, []string{"1", "2", "3"}, ids)
	assert.Equal(t, 3, k.Len())
}

func TestRecord_FieldValue_Missing(t *testing.T) {
	r := Record{ID: "1", Fields: map[string]string{"name": "x"}}
	assert.Equal(t, "", r.FieldValue("description"))

	var empty Record
	assert.Equal(t, "", empty.FieldValue("name"))
}
