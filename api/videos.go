package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/aisgo/vlog-gateway/envelope"
)

// DefaultGatherID 未指定采集源时使用的默认线路
const DefaultGatherID = "5eeb44fc-2fb4-4ec2-b32e-63f50bfff707"

const (
	DefaultOrderBy     = 3
	DefaultMoreLikedBy = 2
)

// ListQuery 按类型 / 年份的视频列表查询，Typed=0 表示全部类型，OrderBy=0 使用默认排序
type ListQuery struct {
	Typed    int
	Released int64
	OrderBy  int
	Cate     string
}

// FilterQuery 分页筛选查询，零值字段使用默认值（page=1, size=24, orderBy=3）
type FilterQuery struct {
	Typed   int
	Page    int
	Size    int
	Code    int64
	Year    int64
	OrderBy int
	Cate    string
	Tag     string
}

func (q FilterQuery) withDefaults() FilterQuery {
	if q.Page <= 0 {
		q.Page = int(envelope.DefaultPage)
	}
	if q.Size <= 0 {
		q.Size = int(envelope.DefaultPageSize)
	}
	if q.OrderBy == 0 {
		q.OrderBy = DefaultOrderBy
	}
	return q
}

func itoa(v int) string { return strconv.Itoa(v) }

func i64toa(v int64) string { return strconv.FormatInt(v, 10) }

// VideoDetail 视频详情，gatherID 为空时使用默认线路
func (c *Client) VideoDetail(ctx context.Context, id, gatherID, token string) *VideoDetail {
	if gatherID == "" {
		gatherID = DefaultGatherID
	}
	q := (&params{}).add("gather", gatherID).token(token)
	return readOne[VideoDetail](ctx, c, call{
		op:     "video_detail",
		method: fasthttp.MethodGet,
		url:    build(c.videos, q, "detail", id),
		token:  token,
	})
}

// Actors 视频演员
func (c *Client) Actors(ctx context.Context, videoID, token string) []TagQuote {
	return readList[TagQuote](ctx, c, call{
		op:     "actors",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "actors", videoID),
		token:  token,
	})
}

// Genres 视频类型标签
func (c *Client) Genres(ctx context.Context, videoID, token string) []TagQuote {
	return readList[TagQuote](ctx, c, call{
		op:     "genres",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "genres", videoID),
		token:  token,
	})
}

// Comments 视频评论，typed 为评论类型
func (c *Client) Comments(ctx context.Context, videoID string, typed int, token string) []Comment {
	return readList[Comment](ctx, c, call{
		op:     "comments",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "comments", videoID, itoa(typed)),
		token:  token,
	})
}

// MoreLiked 相似推荐，orderBy=0 使用默认值 2
func (c *Client) MoreLiked(ctx context.Context, videoID string, orderBy int, token string) []Video {
	if orderBy == 0 {
		orderBy = DefaultMoreLikedBy
	}
	return readList[Video](ctx, c, call{
		op:     "more_liked",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "more-liked", videoID, itoa(orderBy)),
		token:  token,
	})
}

// VideoList 按位置参数查询的列表
func (c *Client) VideoList(ctx context.Context, lq ListQuery, token string) []Video {
	orderBy := lq.OrderBy
	if orderBy == 0 {
		orderBy = DefaultOrderBy
	}
	q := (&params{}).add("cate", lq.Cate).token(token)
	return readList[Video](ctx, c, call{
		op:     "video_list",
		method: fasthttp.MethodGet,
		url:    build(c.videos, q, "list", itoa(lq.Typed), i64toa(lq.Released), itoa(orderBy)),
		token:  token,
	})
}

// VideoListFiltered 分页筛选列表。失败返回 nil，调用方可用 envelope.EmptyPage 兜底。
func (c *Client) VideoListFiltered(ctx context.Context, fq FilterQuery, token string) *envelope.Page[Video] {
	fq = fq.withDefaults()
	q := (&params{}).
		add("typed", itoa(fq.Typed)).
		add("page", itoa(fq.Page)).
		add("size", itoa(fq.Size)).
		add("code", i64toa(fq.Code)).
		add("year", i64toa(fq.Year)).
		add("order_by", itoa(fq.OrderBy)).
		add("cate", fq.Cate).
		add("tag", fq.Tag).
		token(token)

	raw := readOne[envelope.RawPage[Video]](ctx, c, call{
		op:     "video_list_filtered",
		method: fasthttp.MethodGet,
		url:    build(c.videos, q, "list"),
		token:  token,
	})
	if raw == nil {
		return nil
	}
	page := raw.Normalize()
	return &page
}

// Addresses 备用访问地址
func (c *Client) Addresses(ctx context.Context, token string) []Address {
	return readList[Address](ctx, c, call{
		op:     "addresses",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "address"),
		token:  token,
	})
}

// Categories 指定类型下的分类，typed=0 表示全部
func (c *Client) Categories(ctx context.Context, typed int, cate, token string) []Category {
	q := (&params{}).add("typed", itoa(typed)).add("cate", cate).token(token)
	return readList[Category](ctx, c, call{
		op:     "categories",
		method: fasthttp.MethodGet,
		url:    build(c.videos, q, "categories"),
		token:  token,
	})
}

// AllCategories 所有类型及其子分类，按 FlattenCategories 展开
func (c *Client) AllCategories(ctx context.Context, token string) []Category {
	tree := readList[Category](ctx, c, call{
		op:     "all_categories",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "categories"),
		token:  token,
	})
	return FlattenCategories(tree)
}

// Search 关键字搜索
func (c *Client) Search(ctx context.Context, key, token string) []Video {
	q := (&params{}).add("key", key).token(token)
	return readList[Video](ctx, c, call{
		op:     "search",
		method: fasthttp.MethodGet,
		url:    build(c.videos, q, "search"),
		token:  token,
	})
}

// AppVersion 客户端最新版本
func (c *Client) AppVersion(ctx context.Context, token string) *AppVersion {
	return readOne[AppVersion](ctx, c, call{
		op:     "app_version",
		method: fasthttp.MethodGet,
		url:    build(c.videos, (&params{}).token(token), "app-version"),
		token:  token,
	})
}

// PostComment 发表评论。上游此接口以 "200" 表示成功。
func (c *Client) PostComment(ctx context.Context, videoID, token, content string) bool {
	form := url.Values{}
	form.Set("content", content)
	return mutateAck(ctx, c, call{
		op:          "post_comment",
		method:      fasthttp.MethodPost,
		url:         build(c.videos, (&params{}).token(token), "comments-post", videoID),
		token:       token,
		contentType: formContentType,
		body:        []byte(form.Encode()),
	})
}
