package cmd

import (
	"fmt"
	"sync"

	"pathcompare/internal/config"
	"pathcompare/internal/logger"
	"pathcompare/internal/storage"
)

var (
	globalConfig *config.Config
	globalStore  *storage.Storage
	initOnce     sync.Once
	initError    error
)

// InitSystem 初始化配置、日志和存储，进程内只执行一次
func InitSystem() error {
	initOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initError = fmt.Errorf("加载配置失败: %w", err)
			return
		}
		globalConfig = cfg

		// 根据配置决定是否启用文件日志
		if cfg.Log.Enabled {
			if err := logger.Init(cfg.Log.Level, cfg.Log.Path, cfg.Log.MaxDays); err != nil {
				initError = fmt.Errorf("日志初始化失败: %w", err)
				return
			}
			logger.Info("日志系统初始化成功（文件+控制台）")
		} else {
			logger.InitConsoleOnly(cfg.Log.Level)
			logger.Info("日志系统初始化成功（仅控制台）")
		}

		store, err := storage.Init(cfg.DBPath)
		if err != nil {
			initError = fmt.Errorf("初始化数据库失败: %w", err)
			return
		}
		globalStore = store

		logger.Info("系统初始化完成")
	})
	return initError
}

// GetConfig 获取全局配置
func GetConfig() *config.Config {
	return globalConfig
}

// GetStore 获取全局存储
func GetStore() *storage.Storage {
	return globalStore
}
