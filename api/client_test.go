package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/transport/upstream"
)

const basePath = "/api/json/v3"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := upstream.Config{BaseURL: srv.URL + basePath}
	return New(upstream.New(cfg, logger.NewNop()), cfg, logger.NewNop())
}

func jsonHandler(t *testing.T, wantURI, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantURI != "" && r.URL.RequestURI() != wantURI {
			t.Errorf("unexpected request uri: got=%s want=%s", r.URL.RequestURI(), wantURI)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

type errDoer struct {
	err   error
	calls atomic.Int32
}

func (d *errDoer) Do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	d.calls.Add(1)
	return d.err
}

func TestVideoListFilteredURLAndPagination(t *testing.T) {
	want := basePath + "/videos/list?typed=2&page=2&size=5&code=0&year=2024&order_by=3&cate=c1&tag=%E5%8A%A8%E4%BD%9C&token=tk"
	c := newTestClient(t, jsonHandler(t, want,
		`{"code":"0","data":{"items":[{"id":"a","score":"8.1"},{"id":"b"}],"total":"17","page":"2","pageSize":"5"}}`))

	page := c.VideoListFiltered(context.Background(), FilterQuery{Typed: 2, Page: 2, Size: 5, Year: 2024, Cate: "c1", Tag: "动作"}, "tk")
	if page == nil {
		t.Fatalf("expected page")
	}
	if page.TotalPages != 4 || page.First || page.Last {
		t.Fatalf("unexpected pagination: %+v", page)
	}
	if page.NumberOfElements != 2 || page.Items[0].Score.Value != 8.1 {
		t.Fatalf("unexpected items: %+v", page.Items)
	}
}

func TestVideoListFilteredFailureReturnsNil(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, "", `{"code":"1","message":"bad"}`))
	if page := c.VideoListFiltered(context.Background(), FilterQuery{}, ""); page != nil {
		t.Fatalf("expected nil page, got %+v", page)
	}
}

func TestListOperationsNeverReturnNil(t *testing.T) {
	bodies := map[string]string{
		"failure code":  `{"code":"1","data":[{"id":"a"}]}`,
		"null data":     `{"code":"0","data":null}`,
		"malformed":     `{"code":"0","data":[`,
		"wrong shape":   `{"code":"0","data":{"id":"a"}}`,
		"html":          `<html>oops</html>`,
		"mutation code": `{"code":"200","data":[{"id":"a"}]}`,
	}
	for name, body := range bodies {
		c := newTestClient(t, jsonHandler(t, "", body))
		ctx := context.Background()

		if got := c.Search(ctx, "x", ""); got == nil || len(got) != 0 {
			t.Fatalf("%s: search: expected empty slice, got %#v", name, got)
		}
		if got := c.Comments(ctx, "v1", 0, ""); got == nil || len(got) != 0 {
			t.Fatalf("%s: comments: expected empty slice, got %#v", name, got)
		}
		if got := c.AllCategories(ctx, ""); got == nil || len(got) != 0 {
			t.Fatalf("%s: categories: expected empty slice, got %#v", name, got)
		}
		if name == "wrong shape" {
			continue
		}
		if got := c.VideoDetail(ctx, "v1", "", ""); got != nil {
			t.Fatalf("%s: detail: expected nil, got %#v", name, got)
		}
	}
}

func TestNon2xxAndTransportFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"code":"0","data":[{"id":"a"}]}`)
	})
	if got := c.Actors(context.Background(), "v1", ""); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice on 500, got %#v", got)
	}

	doer := &errDoer{err: errors.Wrap(errors.ErrCodePoolExhausted, "pool", nil)}
	c = New(doer, upstream.Config{BaseURL: "http://backend"}, logger.NewNop())
	ctx := context.Background()
	if got := c.Genres(ctx, "v1", ""); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
	if got := c.AppVersion(ctx, ""); got != nil {
		t.Fatalf("expected nil app version")
	}
	if c.PostComment(ctx, "v1", "tk", "hi") {
		t.Fatalf("expected post comment failure")
	}
	if c.UsernameExists(ctx, "bob") {
		t.Fatalf("expected false on transport failure")
	}
	if doer.calls.Load() != 4 {
		t.Fatalf("unexpected doer calls: %d", doer.calls.Load())
	}
}

func TestEmptyDataArrayIsEmptySlice(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, basePath+"/videos/address", `{"code":"","data":[]}`))
	got := c.Addresses(context.Background(), "")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestVideoDetailDefaultsGatherAndAppendsToken(t *testing.T) {
	want := basePath + "/videos/detail/v%201?gather=" + DefaultGatherID + "&token=t%2Bk"
	c := newTestClient(t, jsonHandler(t, want,
		`{"code":"0","message":"","data":{"id":"v 1","title":"T","orderSort":"3","gatherList":[{"gatherId":"g","gatherTitle":"G","playerPort":"8080","playList":[{"title":"E1","playUrl":"u"}]}]},"extra":1}`))

	got := c.VideoDetail(context.Background(), "v 1", "", "t+k")
	if got == nil {
		t.Fatalf("expected detail")
	}
	if got.Title != "T" || got.OrderSort.Value != 3 {
		t.Fatalf("unexpected detail: %+v", got)
	}
	if len(got.GatherList) != 1 || got.GatherList[0].PlayerPort.Value != 8080 || got.GatherList[0].PlayList[0].PlayURL != "u" {
		t.Fatalf("unexpected gather list: %+v", got.GatherList)
	}
}

func TestPositionalListURLs(t *testing.T) {
	cases := []struct {
		name string
		want string
		run  func(c *Client) []Video
	}{
		{
			"video list",
			basePath + "/videos/list/1/2024/3?cate=",
			func(c *Client) []Video {
				return c.VideoList(context.Background(), ListQuery{Typed: 1, Released: 2024}, "")
			},
		},
		{
			"more liked",
			basePath + "/videos/more-liked/v1/2?token=tk",
			func(c *Client) []Video { return c.MoreLiked(context.Background(), "v1", 0, "tk") },
		},
		{
			"search",
			basePath + "/videos/search?key=a+b",
			func(c *Client) []Video { return c.Search(context.Background(), "a b", "") },
		},
	}
	for _, tc := range cases {
		c := newTestClient(t, jsonHandler(t, tc.want, `{"code":"0","data":[{"id":"a"}]}`))
		if got := tc.run(c); len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("%s: unexpected result: %#v", tc.name, got)
		}
	}
}

func TestCategoriesQueryOrder(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, basePath+"/videos/categories?typed=0&cate=&token=tk",
		`{"code":"0","data":[{"id":"p1","modelTyped":"1"}]}`))
	got := c.Categories(context.Background(), 0, "", "tk")
	if len(got) != 1 || got[0].ModelTyped.Value != 1 {
		t.Fatalf("unexpected categories: %#v", got)
	}
}

func TestAllCategoriesFlattens(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, basePath+"/videos/categories",
		`{"code":"0","data":[{"id":"p1","categoryList":[{"id":"c1"},{"id":"c2","categoryList":[{"id":"g1"}]}]},{"id":"p2"}]}`))
	got := c.AllCategories(context.Background(), "")
	ids := make([]string, 0, len(got))
	for _, cat := range got {
		ids = append(ids, cat.ID)
	}
	if strings.Join(ids, ",") != "p1,p2,c1,c2" {
		t.Fatalf("unexpected flatten order: %v", ids)
	}
}

func TestPostComment(t *testing.T) {
	var gotBody, gotURI, gotType string
	respond := `{"code":"200","message":"ok"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody, gotURI, gotType = string(b), r.URL.RequestURI(), r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, respond)
	})

	if !c.PostComment(context.Background(), "v1", "tk", "nice one") {
		t.Fatalf("expected success for code 200")
	}
	if gotURI != basePath+"/videos/comments-post/v1?token=tk" {
		t.Fatalf("unexpected uri: %s", gotURI)
	}
	if gotBody != "content=nice+one" || gotType != formContentType {
		t.Fatalf("unexpected form: %q (%s)", gotBody, gotType)
	}

	respond = `{"code":"500","message":"denied"}`
	if c.PostComment(context.Background(), "v1", "tk", "x") {
		t.Fatalf("expected failure for code 500")
	}
}

func TestLoginAndRegister(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		switch r.URL.Path {
		case basePath + "/users/login":
			if r.PostForm.Get("username") != "bob" || r.PostForm.Get("android_id") != "dev" {
				t.Errorf("unexpected login form: %v", r.PostForm)
			}
			_, _ = io.WriteString(w, `{"code":"0","data":{"name":"bob","accessToken":"tk","createdAt":"1700000000"}}`)
		case basePath + "/users/register":
			if _, ok := r.PostForm["description"]; ok {
				t.Errorf("description must be omitted when empty")
			}
			_, _ = io.WriteString(w, `{"code":"200","message":"ok"}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	user := c.Login(ctx, LoginForm{Username: "bob", Password: "pw", AndroidID: "dev"})
	if user == nil || user.AccessToken != "tk" || user.CreatedAt.Value != 1700000000 {
		t.Fatalf("unexpected login result: %+v", user)
	}

	// 成功码但没有 data：需要实体的写接口视为失败
	if got := c.Register(ctx, RegisterForm{Username: "bob", Password: "pw", Nickname: "B"}); got != nil {
		t.Fatalf("expected nil register result, got %+v", got)
	}

	if got := c.Login(ctx, LoginForm{Username: "bob"}); got != nil {
		t.Fatalf("expected invalid form to be rejected")
	}
	if hits.Load() != 2 {
		t.Fatalf("invalid form must not reach upstream, hits=%d", hits.Load())
	}
}

func TestExistenceChecks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.RequestURI() {
		case basePath + "/users/stated-name?username=taken":
			_, _ = io.WriteString(w, `{"code":"0","data":true}`)
		case basePath + "/users/stated-nickname?nickname=free":
			_, _ = io.WriteString(w, `{"code":"0","data":false}`)
		default:
			_, _ = io.WriteString(w, `{"code":"1"}`)
		}
	})
	ctx := context.Background()
	if !c.UsernameExists(ctx, "taken") {
		t.Fatalf("expected username taken")
	}
	if c.NicknameExists(ctx, "free") {
		t.Fatalf("expected nickname free")
	}
	if c.UsernameExists(ctx, "other") {
		t.Fatalf("expected false on failure code")
	}

	if v := c.NicknameTaken(ctx, "free"); v == nil || *v {
		t.Fatalf("expected a definite free answer, got %v", v)
	}
	if v := c.UsernameTaken(ctx, "other"); v != nil {
		t.Fatalf("failure code must yield no answer, got %v", *v)
	}
}

func TestUpdateUserMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != basePath+"/users/updated/bob/tk" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if r.FormValue("nickname") != "Bobby" {
			t.Errorf("unexpected nickname: %q", r.FormValue("nickname"))
		}
		file, hdr, err := r.FormFile("avatar_file")
		if err != nil {
			t.Errorf("avatar_file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if hdr.Filename != "a.png" || string(data) != "PNG" {
			t.Errorf("unexpected file: %s %q", hdr.Filename, data)
		}
		_, _ = io.WriteString(w, `{"code":"0","data":{"name":"bob","nickName":"Bobby"}}`)
	})

	user := c.UpdateUser(context.Background(), UpdateUserForm{
		Name:     "bob",
		Token:    "tk",
		Nickname: "Bobby",
		Avatar:   &Upload{Filename: "a.png", ContentType: "image/png", Data: []byte("PNG")},
	})
	if user == nil || user.NickName != "Bobby" {
		t.Fatalf("unexpected update result: %+v", user)
	}
}

func TestRedactedURL(t *testing.T) {
	cl := call{url: "http://b/users/updated/bob/s%2Fcret?token=s%2Fcret", token: "s/cret"}
	if got := cl.redactedURL(); strings.Contains(got, "cret") {
		t.Fatalf("token leaked: %s", got)
	}
}
