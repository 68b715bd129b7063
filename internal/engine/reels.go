package engine

// 转轮配置
// 五个转轮共享 0..7 的符号字母表，但每个转轮的权重分布独立。
// forcedLossReels 是控盘表：每个转轮的权重集中在互不相同的符号上，
// 抽出的五个符号大概率各不相同（无对子即无派彩）。
const (
	ReelCount   = 5
	SymbolCount = 8
)

// reelTable 单个转轮的加权符号表，weights[i] 为符号 i 的权重
type reelTable struct {
	weights [SymbolCount]int
	total   int
}

func newReelTable(weights [SymbolCount]int) reelTable {
	t := reelTable{weights: weights}
	for _, w := range weights {
		t.total += w
	}
	return t
}

// pick 按权重抽取一个符号；rnd 返回 [0,n) 的随机数
func (t reelTable) pick(rnd func(n int) int) int {
	v := rnd(t.total)
	for sym, w := range t.weights {
		if v < w {
			return sym
		}
		v -= w
	}
	// 权重耗尽时落到最后一个符号，正常不可达
	return SymbolCount - 1
}

// 常规转轮表：低号符号权重高（常见对子），高号符号稀有
var normalReels = [ReelCount]reelTable{
	newReelTable([SymbolCount]int{22, 18, 15, 12, 11, 9, 7, 6}),
	newReelTable([SymbolCount]int{20, 20, 14, 13, 11, 9, 7, 6}),
	newReelTable([SymbolCount]int{23, 17, 15, 12, 10, 10, 7, 6}),
	newReelTable([SymbolCount]int{21, 19, 14, 12, 11, 10, 7, 6}),
	newReelTable([SymbolCount]int{22, 18, 16, 11, 11, 9, 7, 6}),
}

// 控盘转轮表：第 i 个转轮的权重压在符号 (i+3)%8 上
var forcedLossReels = [ReelCount]reelTable{
	newReelTable([SymbolCount]int{1, 1, 1, 92, 1, 1, 1, 2}),
	newReelTable([SymbolCount]int{1, 1, 1, 1, 92, 1, 1, 2}),
	newReelTable([SymbolCount]int{1, 1, 1, 1, 1, 92, 1, 2}),
	newReelTable([SymbolCount]int{1, 1, 1, 1, 1, 1, 92, 2}),
	newReelTable([SymbolCount]int{2, 1, 1, 1, 1, 1, 1, 92}),
}

// drawFrom 从给定转轮表组各抽一个符号
func drawFrom(tables *[ReelCount]reelTable, rnd func(n int) int) []int {
	out := make([]int, ReelCount)
	for i := range tables {
		out[i] = tables[i].pick(rnd)
	}
	return out
}
