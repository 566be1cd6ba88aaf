package aggregate

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/common/logging"
	"gmb-connector/internal/gmb"
	"gmb-connector/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeAPI answers from in-memory fixtures. Locations listed in fail return a
// classified system error.
type fakeAPI struct {
	mu sync.Mutex

	accounts     []gmb.Account
	accountsErr  error
	locations    map[string][]gmb.Location
	locationsErr map[string]error
	posts        map[string]*gmb.PostsPage
	insightsErr  error
	fail         map[string]bool

	postCalls      map[string]string
	insightBatches [][]string
	questionOrder  []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		locations:    map[string][]gmb.Location{},
		locationsErr: map[string]error{},
		posts:        map[string]*gmb.PostsPage{},
		fail:         map[string]bool{},
		postCalls:    map[string]string{},
	}
}

func failure(locationID string) *errors.ClassifiedError {
	return &errors.ClassifiedError{
		Category:   errors.CategorySystemError,
		ReasonCode: "SYSTEM_ERROR",
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Contact support for assistance.",
		Detail:     "upstream failed for " + locationID,
	}
}

func (f *fakeAPI) ListAccounts(ctx context.Context) ([]gmb.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeAPI) ListLocations(ctx context.Context, account gmb.Account, recursive bool, pageToken string) (*gmb.LocationsPage, error) {
	if err := f.locationsErr[account.NameID]; err != nil {
		return nil, err
	}
	return &gmb.LocationsPage{Locations: f.locations[account.NameID]}, nil
}

func (f *fakeAPI) ListPosts(ctx context.Context, locationID string, pageSize int, pageToken string) gmb.Result[*gmb.PostsPage] {
	f.mu.Lock()
	f.postCalls[locationID] = pageToken
	f.mu.Unlock()
	if f.fail[locationID] {
		return gmb.Result[*gmb.PostsPage]{LocationID: locationID, Err: failure(locationID)}
	}
	page := f.posts[locationID]
	if page == nil {
		page = &gmb.PostsPage{}
	}
	// Callers may mutate the page, hand out a copy.
	cp := *page
	cp.LocalPosts = append([]gmb.LocalPost(nil), page.LocalPosts...)
	return gmb.Result[*gmb.PostsPage]{LocationID: locationID, Value: &cp}
}

func (f *fakeAPI) GetPostInsights(ctx context.Context, locationID string, postNames []string) (*gmb.PostInsights, error) {
	f.mu.Lock()
	f.insightBatches = append(f.insightBatches, postNames)
	f.mu.Unlock()
	if f.insightsErr != nil {
		return nil, f.insightsErr
	}
	out := &gmb.PostInsights{}
	for _, name := range postNames {
		out.LocalPostMetrics = append(out.LocalPostMetrics, gmb.PostMetrics{LocalPostName: name})
	}
	return out, nil
}

func (f *fakeAPI) CreatePost(ctx context.Context, locationID string, post *gmb.LocalPost) (*gmb.LocalPost, error) {
	return nil, fmt.Errorf("unexpected CreatePost")
}

func (f *fakeAPI) ListReviews(ctx context.Context, locationID, pageToken string) gmb.Result[*gmb.ReviewsPage] {
	if f.fail[locationID] {
		return gmb.Result[*gmb.ReviewsPage]{LocationID: locationID, Err: failure(locationID)}
	}
	page := &gmb.ReviewsPage{Reviews: []gmb.Review{{Name: locationID + "/reviews/1"}}}
	return gmb.Result[*gmb.ReviewsPage]{LocationID: locationID, Value: page}
}

func (f *fakeAPI) ListQuestions(ctx context.Context, locationID, pageToken string) gmb.Result[*gmb.QuestionsPage] {
	f.mu.Lock()
	f.questionOrder = append(f.questionOrder, locationID)
	f.mu.Unlock()
	if f.fail[locationID] {
		return gmb.Result[*gmb.QuestionsPage]{LocationID: locationID, Err: failure(locationID)}
	}
	page := &gmb.QuestionsPage{Questions: []gmb.Question{{Name: locationID + "/questions/1"}}}
	return gmb.Result[*gmb.QuestionsPage]{LocationID: locationID, Value: page}
}

func newTestEngine(api API, mutate ...func(*Options)) *Engine {
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	return New(api, opts, logging.NewNopLogger())
}

func selected(n int) []storage.Location {
	locs := make([]storage.Location, n)
	for i := range locs {
		locs[i] = storage.Location{
			NameID:  fmt.Sprintf("accounts/1/locations/%d", i),
			Name:    fmt.Sprintf("Store %d", i),
			Address: fmt.Sprintf("%d Main St, Springfield, IL 62701", i),
		}
	}
	return locs
}

func TestGetAccountsWithLocations(t *testing.T) {
	api := newFakeAPI()
	api.accounts = []gmb.Account{
		{NameID: "accounts/1", AccountName: "One"},
		{NameID: "accounts/2", AccountName: "Two"},
		{NameID: "accounts/3", AccountName: "Three"},
	}
	api.locations["accounts/1"] = []gmb.Location{{NameID: "accounts/1/locations/a"}}
	api.locations["accounts/3"] = []gmb.Location{{NameID: "accounts/3/locations/b"}, {NameID: "accounts/3/locations/c"}}

	got, err := newTestEngine(api).GetAccountsWithLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "accounts/1", got[0].AccountNameID)
	assert.Equal(t, "One", got[0].AccountName)
	assert.Len(t, got[0].Locations, 1)
	assert.Equal(t, "accounts/2", got[1].AccountNameID)
	assert.Empty(t, got[1].Locations)
	assert.Equal(t, "accounts/3", got[2].AccountNameID)
	assert.Len(t, got[2].Locations, 2)
}

func TestGetAccountsWithLocations_FailsTogether(t *testing.T) {
	t.Run("accounts", func(t *testing.T) {
		api := newFakeAPI()
		api.accountsErr = failure("accounts")
		got, err := newTestEngine(api).GetAccountsWithLocations(context.Background())
		assert.Nil(t, got)
		assert.Error(t, err)
	})

	t.Run("one account's locations", func(t *testing.T) {
		api := newFakeAPI()
		api.accounts = []gmb.Account{{NameID: "accounts/1"}, {NameID: "accounts/2"}}
		cause := failure("accounts/2")
		api.locationsErr["accounts/2"] = cause

		got, err := newTestEngine(api).GetAccountsWithLocations(context.Background())
		assert.Nil(t, got)
		ce, ok := errors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, cause, ce)
	})
}

func TestGetLocations_Flattens(t *testing.T) {
	api := newFakeAPI()
	accounts := []gmb.Account{{NameID: "accounts/1"}, {NameID: "accounts/2"}}
	api.locations["accounts/1"] = []gmb.Location{{NameID: "a"}, {NameID: "b"}}
	api.locations["accounts/2"] = []gmb.Location{{NameID: "c"}}

	got, err := newTestEngine(api).GetLocations(context.Background(), accounts)
	require.NoError(t, err)
	var ids []string
	for _, l := range got {
		ids = append(ids, l.NameID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	api.locationsErr["accounts/1"] = failure("accounts/1")
	_, err = newTestEngine(api).GetLocations(context.Background(), accounts)
	assert.Error(t, err)
}

// Every selected location lands in exactly one of the success list and the
// failure list, whatever subset fails.
func TestBestEffortPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	locs := selected(12)

	for round := 0; round < 20; round++ {
		api := newFakeAPI()
		failing := map[string]bool{}
		for _, l := range locs {
			if rng.Intn(3) == 0 {
				failing[l.NameID] = true
				api.fail[l.NameID] = true
			}
		}
		engine := newTestEngine(api)
		ctx := context.Background()

		reviews := engine.GetStartingReviews(ctx, locs)
		var okIDs, errIDs []string
		for _, r := range reviews.Reviews {
			okIDs = append(okIDs, r.LocationNameID)
		}
		for _, e := range reviews.LocationsWithErrors {
			errIDs = append(errIDs, e.LocationNameID)
			assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus)
			assert.Equal(t, "SYSTEM_ERROR", e.Code)
		}
		assertPartition(t, locs, failing, okIDs, errIDs)

		questions := engine.GetStartingQuestions(ctx, locs)
		okIDs, errIDs = nil, nil
		for _, q := range questions.Questions {
			okIDs = append(okIDs, q.LocationNameID)
		}
		for _, e := range questions.LocationsWithErrors {
			errIDs = append(errIDs, e.LocationNameID)
		}
		assertPartition(t, locs, failing, okIDs, errIDs)

		posts := engine.GetPostsAcrossLocations(ctx, locs, nil)
		errIDs = nil
		for _, e := range posts.Errors {
			errIDs = append(errIDs, e.LocationNameID)
		}
		assert.Len(t, errIDs, len(failing))
		for _, id := range errIDs {
			assert.True(t, failing[id])
		}
	}
}

func assertPartition(t *testing.T, locs []storage.Location, failing map[string]bool, okIDs, errIDs []string) {
	t.Helper()
	require.Equal(t, len(locs), len(okIDs)+len(errIDs))

	// Both lists keep the input order of the locations.
	var wantOK, wantErr []string
	for _, l := range locs {
		if failing[l.NameID] {
			wantErr = append(wantErr, l.NameID)
		} else {
			wantOK = append(wantOK, l.NameID)
		}
	}
	assert.Equal(t, wantOK, okIDs)
	assert.Equal(t, wantErr, errIDs)
}

func TestReportLocationErrorsDisabled(t *testing.T) {
	api := newFakeAPI()
	locs := selected(3)
	api.fail[locs[1].NameID] = true
	engine := newTestEngine(api, func(o *Options) { o.ReportLocationErrors = false })

	reviews := engine.GetStartingReviews(context.Background(), locs)
	assert.Len(t, reviews.Reviews, 2)
	assert.Empty(t, reviews.LocationsWithErrors)

	posts := engine.GetPostsAcrossLocations(context.Background(), locs, nil)
	assert.Empty(t, posts.Errors)
}

func TestGetStartingQuestions_Sequential(t *testing.T) {
	api := newFakeAPI()
	locs := selected(5)
	newTestEngine(api).GetStartingQuestions(context.Background(), locs)

	var want []string
	for _, l := range locs {
		want = append(want, l.NameID)
	}
	assert.Equal(t, want, api.questionOrder)
}

func TestEntriesCarryLocation(t *testing.T) {
	api := newFakeAPI()
	locs := selected(1)
	got := newTestEngine(api).GetStartingReviews(context.Background(), locs)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, "Store 0", got.Reviews[0].LocationName)
	assert.Equal(t, locs[0].NameID, got.Reviews[0].LocationNameID)
	assert.Equal(t, "0 Main St", got.Reviews[0].LocationAddress)
}

func postAt(name string, ts time.Time) gmb.LocalPost {
	return gmb.LocalPost{Name: name, Summary: name, CreateTime: ts.Format(time.RFC3339Nano)}
}

// Merged posts come out newest first, and posts with equal timestamps keep
// location order then page order.
func TestGetPostsAcrossLocations_Ordering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	locs := selected(6)

	for round := 0; round < 10; round++ {
		api := newFakeAPI()
		seq := map[string]int{}
		n := 0
		for _, l := range locs {
			page := &gmb.PostsPage{}
			count := rng.Intn(6)
			for j := 0; j < count; j++ {
				// A narrow range forces ties.
				ts := base.Add(time.Duration(rng.Intn(4)) * time.Hour)
				name := fmt.Sprintf("%s/localPosts/%d", l.NameID, j)
				page.LocalPosts = append(page.LocalPosts, postAt(name, ts))
				seq[name] = n
				n++
			}
			api.posts[l.NameID] = page
		}

		got := newTestEngine(api).GetPostsAcrossLocations(context.Background(), locs, nil)
		require.Len(t, got.Posts, n)
		for i := 1; i < len(got.Posts); i++ {
			prev, cur := got.Posts[i-1], got.Posts[i]
			require.False(t, cur.Created().After(prev.Created()), "posts out of order at %d", i)
			if cur.Created().Equal(prev.Created()) {
				assert.Less(t, seq[prev.Name], seq[cur.Name], "tie not stable at %d", i)
			}
		}
	}
}

func TestGetPostsAcrossLocations_Pagination(t *testing.T) {
	api := newFakeAPI()
	locs := selected(3)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api.posts[locs[0].NameID] = &gmb.PostsPage{LocalPosts: []gmb.LocalPost{postAt("p0", ts)}, NextPageToken: "next-0"}
	api.posts[locs[1].NameID] = &gmb.PostsPage{LocalPosts: []gmb.LocalPost{postAt("p1", ts)}}
	api.posts[locs[2].NameID] = &gmb.PostsPage{LocalPosts: []gmb.LocalPost{postAt("p2", ts)}, NextPageToken: "next-2"}

	engine := newTestEngine(api)
	first := engine.GetPostsAcrossLocations(context.Background(), locs, nil)
	assert.Len(t, first.Posts, 3)
	assert.Equal(t, []PageToken{
		{LocationNameID: locs[0].NameID, NextPageToken: "next-0"},
		{LocationNameID: locs[2].NameID, NextPageToken: "next-2"},
	}, first.Pagination)

	// Feeding the cursors back only reads the locations that have more pages.
	tokens := map[string]string{}
	for _, p := range first.Pagination {
		tokens[p.LocationNameID] = p.NextPageToken
	}
	api.postCalls = map[string]string{}
	second := engine.GetPostsAcrossLocations(context.Background(), locs, tokens)
	assert.Len(t, second.Posts, 2)
	assert.Equal(t, map[string]string{
		locs[0].NameID: "next-0",
		locs[2].NameID: "next-2",
	}, api.postCalls)
}

func TestGetPostsAcrossLocations_Insights(t *testing.T) {
	api := newFakeAPI()
	locs := selected(1)
	page := &gmb.PostsPage{}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 23; i++ {
		page.LocalPosts = append(page.LocalPosts, postAt(fmt.Sprintf("p%02d", i), ts.Add(time.Duration(i)*time.Minute)))
	}
	api.posts[locs[0].NameID] = page

	t.Run("disabled", func(t *testing.T) {
		got := newTestEngine(api).GetPostsAcrossLocations(context.Background(), locs, nil)
		assert.Empty(t, api.insightBatches)
		for _, p := range got.Posts {
			assert.Nil(t, p.Metrics)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		api.insightBatches = nil
		got := newTestEngine(api, func(o *Options) { o.PostInsights = true }).GetPostsAcrossLocations(context.Background(), locs, nil)
		require.Len(t, api.insightBatches, 3)
		assert.Len(t, api.insightBatches[0], 10)
		assert.Len(t, api.insightBatches[1], 10)
		assert.Len(t, api.insightBatches[2], 3)
		for _, p := range got.Posts {
			require.NotNil(t, p.Metrics)
			assert.Equal(t, p.Name, p.Metrics.LocalPostName)
		}
	})

	t.Run("failures ignored", func(t *testing.T) {
		api.insightBatches = nil
		api.insightsErr = failure(locs[0].NameID)
		got := newTestEngine(api, func(o *Options) { o.PostInsights = true }).GetPostsAcrossLocations(context.Background(), locs, nil)
		assert.Len(t, got.Posts, 23)
		assert.Empty(t, got.Errors)
	})
}

type mockWriter struct {
	*fakeAPI
	mock.Mock
}

func (m *mockWriter) CreatePost(ctx context.Context, locationID string, post *gmb.LocalPost) (*gmb.LocalPost, error) {
	args := m.Called(locationID, post)
	p, _ := args.Get(0).(*gmb.LocalPost)
	return p, args.Error(1)
}

func TestCreatePostAcrossLocations(t *testing.T) {
	post := &gmb.LocalPost{Summary: "Grand opening", TopicType: gmb.TopicStandard}

	t.Run("all succeed", func(t *testing.T) {
		m := &mockWriter{fakeAPI: newFakeAPI()}
		m.On("CreatePost", "loc/a", post).Return(&gmb.LocalPost{Name: "loc/a/localPosts/1"}, nil)
		m.On("CreatePost", "loc/b", post).Return(&gmb.LocalPost{Name: "loc/b/localPosts/1"}, nil)

		got, err := newTestEngine(m).CreatePostAcrossLocations(context.Background(), []string{"loc/a", "loc/b"}, post)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "loc/a/localPosts/1", got[0].Name)
		assert.Equal(t, "loc/b/localPosts/1", got[1].Name)
		m.AssertExpectations(t)
	})

	t.Run("one fails", func(t *testing.T) {
		m := &mockWriter{fakeAPI: newFakeAPI()}
		rejected := &errors.ClassifiedError{Category: errors.CategoryOperationFailure, HTTPStatus: http.StatusForbidden}
		m.On("CreatePost", "loc/a", post).Return(&gmb.LocalPost{Name: "loc/a/localPosts/1"}, nil)
		m.On("CreatePost", "loc/b", post).Return(nil, rejected)

		got, err := newTestEngine(m).CreatePostAcrossLocations(context.Background(), []string{"loc/a", "loc/b"}, post)
		assert.Nil(t, got)
		ce, ok := errors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, rejected, ce)
		// The sibling write still ran.
		m.AssertNumberOfCalls(t, "CreatePost", 2)
	})
}

// Two concurrent aggregations over five locations, where one location never
// answers, each return the four healthy locations and one timeout.
func TestGetStartingReviews_ConcurrentWithHangingLocation(t *testing.T) {
	const hanging = "accounts/1/locations/3"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v4/"), "/reviews")
		if loc == hanging {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"reviews":[{"name":%q,"starRating":"FIVE"}],"totalReviewCount":1}`, loc+"/reviews/1")
	}))
	defer srv.Close()

	httpClient := srv.Client()
	httpClient.Timeout = 200 * time.Millisecond
	client := gmb.New(
		gmb.Handle{HTTPClient: httpClient, ExternalUserID: "sub-1", UID: "uid-1"},
		gmb.WithEndpoints(gmb.Endpoints{V4: srv.URL + "/v4/"}),
		gmb.WithLogger(logging.NewNopLogger()),
	)
	engine := newTestEngine(client)
	locs := selected(5)

	results := make([]*ReviewsResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.GetStartingReviews(context.Background(), locs)
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.Len(t, res.Reviews, 4)
		require.Len(t, res.LocationsWithErrors, 1)
		failed := res.LocationsWithErrors[0]
		assert.Equal(t, hanging, failed.LocationNameID)
		assert.Equal(t, http.StatusInternalServerError, failed.HTTPStatus)
		for _, r := range res.Reviews {
			assert.NotEqual(t, hanging, r.LocationNameID)
			require.Len(t, r.Reviews.Reviews, 1)
			assert.Equal(t, r.LocationNameID+"/reviews/1", r.Reviews.Reviews[0].Name)
		}
	}
}
