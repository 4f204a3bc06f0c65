package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"pathcompare/internal/report"
)

const timeLayout = "2006-01-02 15:04:05"

// Storage SQLite 存储管理器
type Storage struct {
	db *sql.DB
	mu sync.RWMutex
}

// RunSummary 运行记录摘要
type RunSummary struct {
	ID           string `json:"id"`
	Target       string `json:"target"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	ProfileCount int    `json:"profile_count"`
	FailedCount  int    `json:"failed_count"`
}

// ProfileRow 单个 profile 的持久化结果
type ProfileRow struct {
	Position int     `json:"position"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Sent     int     `json:"sent"`
	Received int     `json:"received"`
	Loss     float64 `json:"loss"`
	AvgRttMs float64 `json:"avg_rtt_ms"`
	MinRttMs float64 `json:"min_rtt_ms"`
	MaxRttMs float64 `json:"max_rtt_ms"`
	AvgRate  float64 `json:"avg_rate"` // 字节/秒
	PathMTU  int     `json:"path_mtu"`
}

// RunDetail 运行记录及其全部 profile 结果
type RunDetail struct {
	RunSummary
	Profiles []ProfileRow `json:"profiles"`
}

var (
	instance *Storage
	once     sync.Once
)

// GetStorage 获取存储单例
func GetStorage() *Storage {
	return instance
}

// Init 初始化全局 SQLite 存储
func Init(dbPath string) (*Storage, error) {
	var err error
	once.Do(func() {
		instance, err = Open(dbPath)
	})

	if err != nil {
		return nil, fmt.Errorf("初始化 SQLite 失败: %w", err)
	}

	return instance, nil
}

// Open 打开一个独立的存储实例（测试用）
func Open(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, err
	}

	return s, nil
}

// createTables 创建数据库表
func (s *Storage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		profile_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		sent INTEGER DEFAULT 0,
		received INTEGER DEFAULT 0,
		loss REAL DEFAULT 0,
		avg_rtt_ms REAL DEFAULT 0,
		min_rtt_ms REAL DEFAULT 0,
		max_rtt_ms REAL DEFAULT 0,
		avg_rate REAL DEFAULT 0,
		path_mtu INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveReport 持久化一次完整的比较报告
func (s *Storage) SaveReport(rep *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	failed := 0
	for _, res := range rep.Results {
		if res.Status != report.StatusOK {
			failed++
		}
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs (id, target, started_at, finished_at, profile_count, failed_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rep.ID, rep.Target, rep.StartedAt.Format(timeLayout), rep.FinishedAt.Format(timeLayout),
		len(rep.Results), failed)
	if err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}

	for i, res := range rep.Results {
		row := ProfileRow{
			Position: i,
			Name:     res.Profile.Name,
			Status:   res.StatusString(),
			PathMTU:  res.PathMTU,
		}
		if res.Latency != nil {
			row.Sent = res.Latency.Sent
			row.Received = res.Latency.Received
			row.Loss = res.Latency.LossRatio()
			row.AvgRttMs = float64(res.Latency.AvgRtt.Microseconds()) / 1000
			row.MinRttMs = float64(res.Latency.MinRtt.Microseconds()) / 1000
			row.MaxRttMs = float64(res.Latency.MaxRtt.Microseconds()) / 1000
		}
		if res.Throughput != nil {
			row.AvgRate = res.Throughput.AvgRate()
		}

		_, err = tx.Exec(`
			INSERT OR REPLACE INTO profile_results
			(run_id, position, name, status, sent, received, loss, avg_rtt_ms, min_rtt_ms, max_rtt_ms, avg_rate, path_mtu)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rep.ID, row.Position, row.Name, row.Status, row.Sent, row.Received, row.Loss,
			row.AvgRttMs, row.MinRttMs, row.MaxRttMs, row.AvgRate, row.PathMTU)
		if err != nil {
			return fmt.Errorf("保存 profile 结果失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	return nil
}

// ListRuns 查询运行记录，target 为空时不过滤
func (s *Storage) ListRuns(limit int, target string) ([]*RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, target, started_at, finished_at, profile_count, failed_count
		FROM runs
	`
	args := []interface{}{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.Target, &run.StartedAt, &run.FinishedAt,
			&run.ProfileCount, &run.FailedCount); err != nil {
			return nil, fmt.Errorf("读取运行记录失败: %w", err)
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// GetRun 查询单次运行及其全部 profile 结果，不存在时返回 nil
func (s *Storage) GetRun(id string) (*RunDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var detail RunDetail
	err := s.db.QueryRow(`
		SELECT id, target, started_at, finished_at, profile_count, failed_count
		FROM runs WHERE id = ?
	`, id).Scan(&detail.ID, &detail.Target, &detail.StartedAt, &detail.FinishedAt,
		&detail.ProfileCount, &detail.FailedCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT position, name, status, sent, received, loss, avg_rtt_ms, min_rtt_ms, max_rtt_ms, avg_rate, path_mtu
		FROM profile_results WHERE run_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("查询 profile 结果失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row ProfileRow
		if err := rows.Scan(&row.Position, &row.Name, &row.Status, &row.Sent, &row.Received,
			&row.Loss, &row.AvgRttMs, &row.MinRttMs, &row.MaxRttMs, &row.AvgRate, &row.PathMTU); err != nil {
			return nil, fmt.Errorf("读取 profile 结果失败: %w", err)
		}
		detail.Profiles = append(detail.Profiles, row)
	}

	return &detail, rows.Err()
}
