package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// SpinParsed 为解析后的下注入参（与控制器/服务层解耦）
// 玩家与运营方身份由认证中间件注入，不从请求体取。
type SpinParsed struct {
	StakeAmount string `json:"stake_amount"`
}

// ParseSpinFromJSON 解析 JSON 到 SpinParsed。失败返回 false 与错误消息。
func ParseSpinFromJSON(r io.Reader) (SpinParsed, bool, string) {
	var out SpinParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return SpinParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseSpinFromForm 从表单读取字段，返回 SpinParsed。
func ParseSpinFromForm(ctx *beegocontext.Context) (SpinParsed, bool, string) {
	var out SpinParsed
	out.StakeAmount = strings.TrimSpace(ctx.Input.Query("stake_amount"))
	return out, true, ""
}

// ValidateSpin 对通用字段做校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
func ValidateSpin(in *SpinParsed) (bool, string) {
	in.StakeAmount = strings.TrimSpace(in.StakeAmount)
	if in.StakeAmount == "" {
		return false, "stake_amount required"
	}
	// 额外长度保护，避免异常超长输入
	if len(in.StakeAmount) > 32 {
		return false, "invalid request"
	}
	if !IsMoneyFormat(in.StakeAmount) {
		return false, "stake_amount must be numeric with up to 2 decimals"
	}
	return true, ""
}

// ParseAndValidateSpin 按 Content-Type 自动解析并做统一校验
func ParseAndValidateSpin(ctx *beegocontext.Context) (SpinParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseSpinFromJSON, ParseSpinFromForm)
	if !ok {
		return SpinParsed{}, false, msg
	}
	if ok, msg := ValidateSpin(&out); !ok {
		return SpinParsed{}, false, msg
	}
	return out, true, ""
}
