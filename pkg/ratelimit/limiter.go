// Package ratelimit реализует token bucket rate limiter.
//
// Используется для ограничения частоты дорогих операций, в первую
// очередь bcrypt-проверок API токена: перебор токенов упирается
// в лимит запросов, а не в CPU сервера.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket limiter.
//
// Bucket вмещает burst токенов и пополняется со скоростью rate
// токенов в секунду. Каждая операция забирает один токен; пустой
// bucket означает отказ (Allow) или ожидание (Wait).
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // токенов в секунду
	burst      int     // максимум токенов в bucket
	tokens     float64 // текущее количество токенов
	lastRefill time.Time
}

// NewRateLimiter создает limiter с указанной скоростью пополнения
// и размером bucket. Bucket изначально полон: первые burst операций
// проходят без задержки.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// refill пополняет bucket пропорционально прошедшему времени.
// Вызывается под mutex.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.lastRefill = now

	rl.tokens += elapsed * rl.rate
	if rl.tokens > float64(rl.burst) {
		rl.tokens = float64(rl.burst)
	}
}

// Allow забирает токен, если он есть. Не блокирует: при пустом
// bucket сразу возвращает false.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait блокирует до появления токена или отмены контекста.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		// Сколько ждать до следующего токена
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tokens возвращает текущее количество токенов в bucket.
// Полезно в тестах и для диагностики.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return rl.tokens
}
