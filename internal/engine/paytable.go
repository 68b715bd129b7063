package engine

import (
	decimal "github.com/shopspring/decimal"
)

// 牌型赔率表
// 按频次形态（sorted count shape）识别牌型，规则必须按优先级顺序匹配：
// 五条 > 四条 > 三带二 > 两对 > 三条 > 一对 > 无牌型。
// 顺序不能改：比如 [a,a,b,b,c] 的最大频次是 2，若只看最大频次会被
// 误判成一对，实际应命中两对。
type payRule struct {
	Pattern    string
	Multiplier decimal.Decimal
	match      func(shape []int) bool
}

var payRules = []payRule{
	{"five_of_a_kind", decimal.NewFromFloat(88.88), func(s []int) bool { return len(s) == 1 }},
	{"four_of_a_kind", decimal.NewFromFloat(16.18), func(s []int) bool { return len(s) == 2 && s[0] == 4 }},
	{"full_house", decimal.NewFromFloat(4.24), func(s []int) bool { return len(s) == 2 && s[0] == 3 }},
	{"two_pair", decimal.NewFromFloat(2.40), func(s []int) bool { return len(s) == 3 && s[0] == 2 && s[1] == 2 }},
	{"three_of_a_kind", decimal.NewFromFloat(1.80), func(s []int) bool { return len(s) == 3 && s[0] == 3 }},
	{"one_pair", decimal.NewFromFloat(0.40), func(s []int) bool { return len(s) == 4 }},
}

// Multiplier 根据一次抽取的符号组合解析赔率倍数与牌型名
// 未命中任何牌型时倍数为 0（输）。
func Multiplier(symbols []int) (decimal.Decimal, string) {
	shape := countShape(symbols)
	for _, r := range payRules {
		if r.match(shape) {
			return r.Multiplier, r.Pattern
		}
	}
	return decimal.Zero, "no_match"
}

// countShape 计算符号频次形态：各不同符号的出现次数，降序
// 例：[0,0,0,1,1] -> [3,2]；[0,1,2,3,4] -> [1,1,1,1,1]
func countShape(symbols []int) []int {
	freq := map[int]int{}
	for _, s := range symbols {
		freq[s]++
	}
	shape := make([]int, 0, len(freq))
	for _, c := range freq {
		shape = append(shape, c)
	}
	// 插入排序，元素最多 5 个
	for i := 1; i < len(shape); i++ {
		for j := i; j > 0 && shape[j] > shape[j-1]; j-- {
			shape[j], shape[j-1] = shape[j-1], shape[j]
		}
	}
	return shape
}
