package service

import (
	"errors"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/state"
)

// Common service errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// Match service specific errors
var (
	ErrMatchNotFound = fmt.Errorf("match: %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user: %w", ErrNotFound)

	// ErrInvalidState 현재 상태에서 허용되지 않는 작업 (전이표와 무관)
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrInvalidTransition 전이표에 없는 상태 변경. 상태 객체가 거부한 경우도 같은 에러로 매칭된다.
	ErrInvalidTransition = state.ErrInvalidTransition

	ErrAlreadyJoined = errors.New("user already joined this match")
	ErrTeamFull      = errors.New("team is full")
	ErrMatchFull     = errors.New("match is full")
	ErrStateConflict = errors.New("match state was changed by another request")
	ErrMatchBusy     = errors.New("match is being modified, try again")
)

// Scheduler specific errors
var (
	ErrUnknownTimer = errors.New("unknown timer")
)
