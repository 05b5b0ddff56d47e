package api

import "github.com/aisgo/vlog-gateway/envelope"

// 上游记录。所有字段都可能缺失，数字字段可能以字符串形式下发。

// VideoDetail 视频详情
type VideoDetail struct {
	ID                string              `json:"id"`
	Version           envelope.FlexInt    `json:"version"`
	IsTyped           envelope.FlexInt    `json:"isTyped"`
	ReleasedAt        envelope.FlexInt    `json:"releasedAt"`
	IsRecommend       envelope.FlexInt    `json:"isRecommend"`
	PublishedAt       envelope.FlexString `json:"publishedAt"`
	OrderSort         envelope.FlexInt    `json:"orderSort"`
	CategoryID        string              `json:"categoryId"`
	AttachmentID      string              `json:"attachmentId"`
	Title             string              `json:"title"`
	Score             envelope.FlexFloat  `json:"score"`
	Alias             string              `json:"alias"`
	Director          string              `json:"director"`
	Actors            string              `json:"actors"`
	Region            string              `json:"region"`
	Language          string              `json:"language"`
	Description       string              `json:"description"`
	Tags              string              `json:"tags"`
	Author            string              `json:"author"`
	Remarks           string              `json:"remarks"`
	CoverURL          string              `json:"coverUrl"`
	GatherListVersion envelope.FlexInt    `json:"gatherListVersion"`
	GatherList        []GatherSource      `json:"gatherList"`
}

// Video 列表 / 搜索 / 推荐中的视频摘要
type Video struct {
	ID            string              `json:"id"`
	Version       envelope.FlexInt    `json:"version"`
	IsTyped       envelope.FlexInt    `json:"isTyped"`
	ReleasedAt    envelope.FlexInt    `json:"releasedAt"`
	IsRecommend   envelope.FlexInt    `json:"isRecommend"`
	PublishedAt   envelope.FlexString `json:"publishedAt"`
	OrderSort     envelope.FlexInt    `json:"orderSort"`
	CategoryID    string              `json:"categoryId"`
	AttachmentID  string              `json:"attachmentId"`
	Title         string              `json:"title"`
	Score         envelope.FlexFloat  `json:"score"`
	Alias         string              `json:"alias"`
	Director      string              `json:"director"`
	Actors        string              `json:"actors"`
	Region        string              `json:"region"`
	Language      string              `json:"language"`
	Description   string              `json:"description"`
	Tags          string              `json:"tags"`
	Author        string              `json:"author"`
	Remarks       string              `json:"remarks"`
	CoverURL      string              `json:"coverUrl"`
	GatherVideoID string              `json:"gatherVideoId"`
	VideoPlayList []GatherSource      `json:"videoPlayList"`
}

// GatherSource 采集源（播放线路）
type GatherSource struct {
	GatherID    string           `json:"gatherId"`
	GatherTitle string           `json:"gatherTitle"`
	PlayerHost  string           `json:"playerHost"`
	PlayerPort  envelope.FlexInt `json:"playerPort"`
	Remarks     string           `json:"remarks"`
	PlayList    []PlayItem       `json:"playList"`
}

// PlayItem 单集播放地址
type PlayItem struct {
	Title   string `json:"title"`
	Path    string `json:"path"`
	PlayURL string `json:"playUrl"`
}

// Category 分类，上游只有两级：顶级类型及其子分类
type Category struct {
	ID           string           `json:"id"`
	OrderSort    envelope.FlexInt `json:"orderSort"`
	Version      envelope.FlexInt `json:"version"`
	ParentID     string           `json:"parentId"`
	ModelID      string           `json:"modelId"`
	ModelTyped   envelope.FlexInt `json:"modelTyped"`
	Title        string           `json:"title"`
	CategoryList []Category       `json:"categoryList"`
}

// Comment 评论
type Comment struct {
	ID            string           `json:"id"`
	CreatedAt     envelope.FlexInt `json:"createdAt"`
	IsLocked      envelope.FlexInt `json:"isLocked"`
	IsTyped       envelope.FlexInt `json:"isTyped"`
	CreatedBy     string           `json:"createdBy"`
	AttachmentID  string           `json:"attachmentId"`
	QuoteID       string           `json:"quoteId"` // 视频 ID 或被回复的评论 ID
	ParentID      string           `json:"parentId"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	CreatedByItem *User            `json:"createdByItem"`
}

// User 用户
type User struct {
	ID          string           `json:"id"`
	IsLocked    envelope.FlexInt `json:"isLocked"`
	CreatedAt   envelope.FlexInt `json:"createdAt"`
	Name        string           `json:"name"`
	NickName    string           `json:"nickName"`
	Description string           `json:"description"`
	Avatar      string           `json:"avatar"`
	AccessToken string           `json:"accessToken"`
}

// AppVersion 客户端版本信息
type AppVersion struct {
	VersionCode envelope.FlexInt `json:"versionCode"`
	VersionName string           `json:"versionName"`
	ForceUpdate bool             `json:"forceUpdate"`
	DownloadURL string           `json:"downloadUrl"`
	Description string           `json:"description"`
	FileSize    envelope.FlexInt `json:"fileSize"`
	MD5         string           `json:"md5"`
}

// TagQuote 演员 / 类型标签与视频的关联
type TagQuote struct {
	ID      string           `json:"id"`
	TagID   string           `json:"tagId"`
	QuoteID string           `json:"quoteId"`
	Title   string           `json:"title"`
	IsTyped envelope.FlexInt `json:"isTyped"`
}

// Address 备用访问地址
type Address struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	URL       string           `json:"url"`
	Remarks   string           `json:"remarks"`
	OrderSort envelope.FlexInt `json:"orderSort"`
}
