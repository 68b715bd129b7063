package state

import "fmt"

// State 注单生命周期状态
const (
	StateValidating = "validating" // 校验中（金额/余额）
	StateDebiting   = "debiting"   // 扣款中（钱包方 debit）
	StateDrawing    = "drawing"    // 开奖中（转轮抽取）
	StateSettling   = "settling"   // 结算中（派彩 credit + 落库）
	StateCompleted  = "completed"  // 已完成
	StateRejected   = "rejected"   // 已拒绝（终态，仅 validating/debiting 可达）
)

// Event 注单事件
const (
	EvtStakeAccepted = "stake_accepted"
	EvtDebitAccepted = "debit_accepted"
	EvtDrawProduced  = "draw_produced"
	EvtSettled       = "settled"
	EvtReject        = "reject"
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateValidating:
		switch evt {
		case EvtStakeAccepted:
			return StateDebiting, nil
		case EvtReject:
			return StateRejected, nil
		}
	case StateDebiting:
		switch evt {
		case EvtDebitAccepted:
			return StateDrawing, nil
		case EvtReject:
			return StateRejected, nil
		}
	case StateDrawing:
		if evt == EvtDrawProduced {
			return StateSettling, nil
		}
	case StateSettling:
		if evt == EvtSettled {
			return StateCompleted, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
