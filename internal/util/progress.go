package util

import (
	"math"
	"strconv"

	"github.com/guoanl/EMS/internal/models"
)

// Progress 根据目标值和实际完成值计算 0-100 的完成进度。
// 管理端详情和企业端自查必须用同一个函数，保证两边显示一致。
//   - 未填报（实际值为空）→ 0
//   - number：按实数解析，目标为 0 或实际值无法解析 → 0，
//     否则 round(actual/target*100)，超额完成封顶 100
//   - boolean：实际值与目标字面量（是/否）完全相等 → 100，否则 0
func Progress(targetType, targetValue, actualValue string) int {
	if actualValue == "" {
		return 0
	}

	if targetType == models.TargetNumber {
		actual, err := strconv.ParseFloat(actualValue, 64)
		if err != nil {
			return 0
		}
		target, err := strconv.ParseFloat(targetValue, 64)
		if err != nil || target == 0 {
			return 0
		}
		p := int(math.Round(actual / target * 100))
		if p > 100 {
			p = 100
		}
		if p < 0 {
			// 历史脏数据里的负值不产生负进度
			p = 0
		}
		return p
	}

	if actualValue == targetValue {
		return 100
	}
	return 0
}
