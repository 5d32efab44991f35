package refresh

import (
	"context"
	"log/slog"
	"time"
)

// BatchRefresher はバッチリフレッシュの実行インターフェース。
type BatchRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Scheduler は一定間隔でバッチリフレッシュを実行する。
// 1サイクル内の並列制御はBatchRefresher側が行う。
type Scheduler struct {
	refresher BatchRefresher
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher BatchRefresher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リフレッシュスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// RunOnce はバッチリフレッシュを1回実行し、処理を試行した企業数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.refresher.RefreshAll(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("リフレッシュサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
