package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteProfiles 远程 profile 配置结构（watch 模式定期拉取）
type RemoteProfiles struct {
	Target   string    `json:"target"`
	Profiles []Profile `json:"profiles"`
}

// FetchRemoteProfiles 从远程URL拉取 profile 配置
func FetchRemoteProfiles(url string) (*RemoteProfiles, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("请求远程 profile 配置失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("远程 profile 配置HTTP状态错误: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取远程 profile 配置失败: %w", err)
	}

	var remote RemoteProfiles
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, fmt.Errorf("解析远程 profile 配置JSON失败: %w", err)
	}

	if len(remote.Profiles) == 0 {
		return nil, NewConfigError("远程配置中 profiles 不能为空")
	}

	// 与本地解析同一套校验规则
	seen := make(map[string]bool)
	for _, p := range remote.Profiles {
		if p.Name == "" {
			return nil, NewConfigError("远程配置含未命名 profile")
		}
		if seen[p.Name] {
			return nil, NewConfigError("远程配置含重复的 profile 名称: %s", p.Name)
		}
		seen[p.Name] = true
	}

	return &remote, nil
}
