package api

import (
	"cmp"
	"slices"
)

// FlattenCategories 展开两级分类：先按原顺序输出所有顶级分类，
// 再依次输出每个顶级分类的直接子分类。不会递归到第三级。
func FlattenCategories(tree []Category) []Category {
	out := make([]Category, 0, len(tree))
	out = append(out, tree...)
	for _, parent := range tree {
		out = append(out, parent.CategoryList...)
	}
	return out
}

// FindCategoryByType 按 modelTyped 查找顶级类型。
// typed <= 0 表示“全部类型”，不对应任何具体类型，返回 nil；
// modelTyped 缺失的分类永远不会匹配。
func FindCategoryByType(list []Category, typed int) *Category {
	if typed <= 0 {
		return nil
	}
	for i := range list {
		if list[i].ModelTyped.Valid && list[i].ModelTyped.Value == int64(typed) {
			return &list[i]
		}
	}
	return nil
}

// FindCategoryByID 在顶级分类及其直接子分类中按 ID 查找
func FindCategoryByID(list []Category, id string) *Category {
	if id == "" {
		return nil
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	for i := range list {
		children := list[i].CategoryList
		for j := range children {
			if children[j].ID == id {
				return &children[j]
			}
		}
	}
	return nil
}

// SortCategoriesByOrder 按 orderSort 降序（稳定），缺失 orderSort 的排在最后。
// 返回新切片，不修改入参。
func SortCategoriesByOrder(list []Category) []Category {
	out := slices.Clone(list)
	if out == nil {
		out = []Category{}
	}
	slices.SortStableFunc(out, func(a, b Category) int {
		switch {
		case a.OrderSort.Valid && !b.OrderSort.Valid:
			return -1
		case !a.OrderSort.Valid && b.OrderSort.Valid:
			return 1
		}
		return cmp.Compare(b.OrderSort.Value, a.OrderSort.Value)
	})
	return out
}
