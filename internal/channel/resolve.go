package channel

import "github.com/cchking/ytbox/internal/models"

// ResolveActualModel 计算请求模型名在指定渠道上实际转发的模型名
// 优先级: 重定向映射 > 渠道支持列表中的字面名 > 渠道默认模型
func ResolveActualModel(ch *models.Channel, requested string) string {
	if mapping := ch.RedirectMapping(); mapping != nil {
		if actual, ok := mapping[requested]; ok && actual != "" {
			return actual
		}
	}

	for _, name := range ch.SupportedModels() {
		if name == requested {
			return requested
		}
	}

	return ch.DefaultModel
}
