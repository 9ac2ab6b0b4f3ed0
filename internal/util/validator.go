package util

import (
	"fmt"
	"strconv"

	"github.com/guoanl/EMS/internal/models"
)

// ValidateTargetType 验证目标类型取值
func ValidateTargetType(targetType string) error {
	if targetType != models.TargetNumber && targetType != models.TargetBoolean {
		return fmt.Errorf("invalid target type: %q", targetType)
	}
	return nil
}

// ValidateTargetValue 验证目标值能按目标类型解析：
// number 必须是非负实数，boolean 必须是 是/否 字面量。
func ValidateTargetValue(targetType, value string) error {
	switch targetType {
	case models.TargetNumber:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value: %q", value)
		}
		if f < 0 {
			return fmt.Errorf("number value must not be negative, got %q", value)
		}
	case models.TargetBoolean:
		if value != models.BoolYes && value != models.BoolNo {
			return fmt.Errorf("boolean value must be %s or %s, got %q", models.BoolYes, models.BoolNo, value)
		}
	default:
		return fmt.Errorf("invalid target type: %q", targetType)
	}
	return nil
}

// ValidateActualValue 验证填报的实际完成值。允许为空（尚未填报）。
func ValidateActualValue(targetType, value string) error {
	if value == "" {
		return nil
	}
	return ValidateTargetValue(targetType, value)
}

// ValidateTaskName 验证任务名称（不能为空且长度合理）
func ValidateTaskName(name string) error {
	if name == "" {
		return fmt.Errorf("task name is empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("task name too long, max 255 bytes")
	}
	return nil
}
