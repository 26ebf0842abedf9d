package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"go.uber.org/zap"
)

// matchLocker 매치 단위 락. Join, 상태 변경, 초대 생성이 같은 키를 쓴다.
type matchLocker struct {
	locker distributed.Locker
	logger *zap.Logger
}

func lockKey(matchID string) string {
	return "match:" + matchID
}

// acquire 반환된 함수로 해제한다. 만료가 있는 락은 해제할 때까지 연장된다.
func (l matchLocker) acquire(ctx context.Context, matchID string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, lockKey(matchID))
	if errors.Is(err, distributed.ErrLockNotAcquired) {
		return nil, ErrMatchBusy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock match: %w", err)
	}

	stop := distributed.KeepAlive(lock, func(err error) {
		l.logger.Warn("Failed to extend match lock", zap.String("matchId", matchID), zap.Error(err))
	})

	return func() {
		stop()
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			l.logger.Warn("Failed to release match lock", zap.String("matchId", matchID), zap.Error(err))
		}
	}, nil
}
