package envelope

/* ========================================================================
 * Pagination - 分页归一化
 * ========================================================================
 * 职责: 把上游 {items,total,page,pageSize}（数字或字符串）归一为 Page[T]
 * 默认值: total=0, page=1, pageSize=24
 * ======================================================================== */

const (
	DefaultPage     int64 = 1
	DefaultPageSize int64 = 24
)

// RawPage 上游分页结构（线格式）
type RawPage[T any] struct {
	Items    []T     `json:"items"`
	Total    FlexInt `json:"total"`
	Page     FlexInt `json:"page"`
	PageSize FlexInt `json:"pageSize"`
}

// Page 归一化后的分页结果，派生字段由 Normalize 计算
type Page[T any] struct {
	Items            []T   `json:"items"`
	Total            int64 `json:"total"`
	Page             int64 `json:"page"`
	PageSize         int64 `json:"pageSize"`
	TotalPages       int64 `json:"totalPages"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	Empty            bool  `json:"empty"`
	NumberOfElements int   `json:"numberOfElements"`
}

// Normalize 计算分页派生字段。
// totalPages = total/pageSize + 1（pageSize > 0），否则为 0；
// 上游就是这样计算的，整除时也会多出一页，这里保持一致。
func (r RawPage[T]) Normalize() Page[T] {
	items := r.Items
	if items == nil {
		items = []T{}
	}

	p := Page[T]{
		Items:    items,
		Total:    r.Total.Or(0),
		Page:     r.Page.Or(DefaultPage),
		PageSize: r.PageSize.Or(DefaultPageSize),
	}

	if p.PageSize > 0 {
		p.TotalPages = p.Total/p.PageSize + 1
	}
	p.First = p.Page <= 1
	p.Last = p.TotalPages == 0 || p.Page >= p.TotalPages
	p.Empty = len(items) == 0
	p.NumberOfElements = len(items)
	return p
}

// EmptyPage 失败时返回的空页
func EmptyPage[T any]() Page[T] {
	return RawPage[T]{}.Normalize()
}
