package utils

import "strings"

const (
	valueSep  = "|"
	sourceSep = ","
)

// Label 附着在候选商品或用户上的可解释信息，例如推荐理由、命中的召回源。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rerank
}

// Values 把累积的 Value 拆成列表
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, valueSep)
}

// MergeLabel 累积同名 Label：Value 以 '|' 拼接，Source 以 ',' 拼接，已出现过的值不重复追加。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}
	return Label{
		Value:  appendUnique(existing.Value, incoming.Value, valueSep),
		Source: appendUnique(existing.Source, incoming.Source, sourceSep),
	}
}

func appendUnique(list, v, sep string) string {
	switch {
	case v == "":
		return list
	case list == "":
		return v
	}
	for _, s := range strings.Split(list, sep) {
		if s == v {
			return list
		}
	}
	return list + sep + v
}
