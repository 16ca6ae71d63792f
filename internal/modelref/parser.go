package modelref

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidRef 模型引用格式无效
var ErrInvalidRef = errors.New("invalid model reference")

// Kind 模型引用类别
type Kind int

const (
	// KindSystem 系统注册模型，走渠道选择
	KindSystem Kind = iota
	// KindMarket 市场模型，格式 @<id>/<name>
	KindMarket
	// KindPrivate 私有模型，格式 @p/<name>
	KindPrivate
)

// Ref 解析后的模型引用
// 入口处解析一次，后续流程基于类别分支，不再做字符串前缀判断
type Ref struct {
	Kind     Kind
	Name     string // 基础模型名（System 为请求名本身）
	MarketID uint   // 仅 KindMarket 有效
}

// Parse 解析请求中的模型名
// 规则:
//   - "@p/<name>"   -> 私有模型
//   - "@<id>/<name>" -> 市场模型，id 为正整数
//   - 其他           -> 系统模型
func Parse(requested string) (Ref, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return Ref{}, ErrInvalidRef
	}

	if !strings.HasPrefix(requested, "@") {
		return Ref{Kind: KindSystem, Name: requested}, nil
	}

	parts := strings.SplitN(requested, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Ref{}, ErrInvalidRef
	}

	prefix, name := parts[0], parts[1]
	if prefix == "@p" {
		return Ref{Kind: KindPrivate, Name: name}, nil
	}

	id, err := strconv.ParseUint(prefix[1:], 10, 32)
	if err != nil || id == 0 {
		return Ref{}, ErrInvalidRef
	}

	return Ref{Kind: KindMarket, Name: name, MarketID: uint(id)}, nil
}
