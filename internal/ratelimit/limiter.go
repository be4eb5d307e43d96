// Package ratelimit ограничивает частоту создания фото в пределах процесса.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter - token bucket над golang.org/x/time/rate,
// который не ждет, а сообщает, через сколько можно повторить запрос.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	now     func() time.Time
}

// New создает лимитер: perSecond токенов в секунду, не больше burst подряд.
func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		now:     time.Now,
	}
}

// Allow забирает токен, если он есть. Иначе возвращает false
// и положительное время до появления следующего токена.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}

	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}
