package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pathcompare/internal/logger"
)

// Write 将报告写入结果目录
// 目录布局沿用逐阶段逐profile一个文件的形式:
//
//	<dir>/<target>-<时间戳>/
//	    <profile>-latency.json
//	    <profile>-throughput.json
//	    <profile>-pathmtu.json
//	    summary.json
//
// 返回本次运行的结果目录路径
func Write(dir string, r *Report) (string, error) {
	runDir := filepath.Join(dir, fmt.Sprintf("%s-%s",
		sanitize(r.Target), r.StartedAt.Format("20060102-150405")))

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("创建结果目录失败: %w", err)
	}

	for i := range r.Results {
		res := &r.Results[i]
		name := sanitize(res.Profile.Name)

		if res.Latency != nil {
			if err := writeJSON(filepath.Join(runDir, name+"-latency.json"), res.Latency); err != nil {
				return "", err
			}
		}
		if res.Throughput != nil {
			if err := writeJSON(filepath.Join(runDir, name+"-throughput.json"), res.Throughput); err != nil {
				return "", err
			}
		}

		pathmtu := map[string]interface{}{
			"target":   r.Target,
			"path_mtu": res.PathMTU,
			"known":    res.PathMTU != 0,
		}
		if err := writeJSON(filepath.Join(runDir, name+"-pathmtu.json"), pathmtu); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(runDir, "summary.json"), r); err != nil {
		return "", err
	}

	logger.Infof("结果已写入: %s", runDir)
	return runDir, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitize 替换文件名中不安全的字符
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
