package schedule

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"pathcompare/internal/comparator"
	"pathcompare/internal/config"
	"pathcompare/internal/logger"
	"pathcompare/internal/report"
	"pathcompare/internal/storage"
)

// Manager watch 模式的定时比较管理器
// 按 cron 表达式周期性执行完整的比较运行，结果写入结果目录并持久化
type Manager struct {
	cron      *cron.Cron
	comp      *comparator.Comparator
	store     *storage.Storage
	outputDir string

	target      string
	profiles    []config.Profile
	profilesURL string // 非空时每轮运行前刷新 profile 配置

	mu        sync.Mutex
	runMu     sync.Mutex // 保证两轮运行不重叠
	isRunning bool
}

// NewManager 创建定时比较管理器
func NewManager(comp *comparator.Comparator, store *storage.Storage, outputDir string) *Manager {
	return &Manager{
		cron:      cron.New(cron.WithSeconds()), // 支持秒级精度
		comp:      comp,
		store:     store,
		outputDir: outputDir,
	}
}

// Schedule 注册定时比较任务
func (m *Manager) Schedule(spec, target string, profiles []config.Profile, profilesURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target = target
	m.profiles = profiles
	m.profilesURL = profilesURL

	if _, err := m.cron.AddFunc(spec, m.runOnce); err != nil {
		return config.NewConfigError("无效的 cron 表达式 %q: %v", spec, err)
	}

	logger.Infof("[Schedule] 已注册定时比较: %q -> %s (%d 个 profile)", spec, target, len(profiles))
	return nil
}

// Start 启动调度器
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return
	}

	m.cron.Start()
	m.isRunning = true
	logger.Info("[Schedule] 定时比较调度器已启动")
}

// Stop 停止调度器，等待进行中的运行结束
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return
	}

	ctx := m.cron.Stop()
	<-ctx.Done()
	m.isRunning = false
	logger.Info("[Schedule] 定时比较调度器已停止")
}

// runOnce 执行一轮比较
func (m *Manager) runOnce() {
	if !m.runMu.TryLock() {
		logger.Warn("[Schedule] 上一轮比较尚未结束，跳过本轮")
		return
	}
	defer m.runMu.Unlock()

	target, profiles := m.refreshProfiles()

	rep, err := m.comp.Run(context.Background(), target, profiles)
	if err != nil {
		logger.Errorf("[Schedule] 比较运行失败: %v", err)
		return
	}

	if _, err := report.Write(m.outputDir, rep); err != nil {
		logger.Errorf("[Schedule] 写入结果失败: %v", err)
	}

	if m.store != nil {
		if err := m.store.SaveReport(rep); err != nil {
			logger.Errorf("[Schedule] 持久化结果失败: %v", err)
		}
	}
}

// refreshProfiles 配置了远程地址时每轮运行前拉取最新 profile 集
// 拉取失败沿用上一轮配置
func (m *Manager) refreshProfiles() (string, []config.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.profilesURL == "" {
		return m.target, m.profiles
	}

	remote, err := config.FetchRemoteProfiles(m.profilesURL)
	if err != nil {
		logger.Warnf("[Schedule] 拉取远程 profile 配置失败，沿用当前配置: %v", err)
		return m.target, m.profiles
	}

	if remote.Target != "" {
		m.target = remote.Target
	}
	m.profiles = remote.Profiles
	logger.Infof("[Schedule] 远程 profile 配置已更新: %d 个 profile", len(m.profiles))

	return m.target, m.profiles
}
