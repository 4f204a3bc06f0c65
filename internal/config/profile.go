package config

import (
	"fmt"
	"strings"
)

// Profile 一组命名的链路参数，测量时依次应用
type Profile struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// ConfigError 配置错误（非法输入，整个运行中止）
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "配置错误: " + e.Message
}

// NewConfigError 创建配置错误
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ParseProfiles 解析 --profile 参数列表
// 格式: name=key:val[,key:val...]，不含冒号的参数视为 mtu 值的简写
// 例如: mtu1500=mtu:1500 或简写 mtu1500=1500
func ParseProfiles(specs []string) ([]Profile, error) {
	if len(specs) == 0 {
		return nil, NewConfigError("至少需要一个 --profile")
	}

	profiles := make([]Profile, 0, len(specs))
	seen := make(map[string]bool)

	for _, spec := range specs {
		name, rawParams, found := strings.Cut(spec, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, NewConfigError("无效的 profile 格式: %q (应为 name=key:val[,key:val...])", spec)
		}

		if seen[name] {
			return nil, NewConfigError("重复的 profile 名称: %s", name)
		}
		seen[name] = true

		params := make(map[string]string)
		for _, pair := range strings.Split(rawParams, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}

			key, val, hasKey := strings.Cut(pair, ":")
			if !hasKey {
				// 简写: 裸数值等同于 mtu:<val>
				key, val = "mtu", key
			}
			key = strings.TrimSpace(key)
			val = strings.TrimSpace(val)
			if key == "" || val == "" {
				return nil, NewConfigError("profile %s 含无效参数: %q", name, pair)
			}
			params[key] = val
		}

		profiles = append(profiles, Profile{Name: name, Params: params})
	}

	return profiles, nil
}
