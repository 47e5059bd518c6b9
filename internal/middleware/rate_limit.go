package middleware

import (
	"sync"
	"time"

	"github.com/kataras/iris/v12"
)

// TokenBucket 令牌桶限流器
type TokenBucket struct {
	capacity   float64    // 桶容量
	tokens     float64    // 当前令牌数
	refillRate float64    // 每秒补充的令牌数
	lastRefill time.Time  // 上次补充时间
	mu         sync.Mutex // 互斥锁
}

// NewTokenBucket 创建令牌桶
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now())
}

func newTokenBucket(capacity int64, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	return tb.allowAt(time.Now())
}

func (tb *TokenBucket) allowAt(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// 按经过的时间补充令牌，不足一个的部分也累计
	if elapsed := now.Sub(tb.lastRefill); elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.refillRate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) full(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens+now.Sub(tb.lastRefill).Seconds()*tb.refillRate >= tb.capacity
}

// maxBuckets 超过后清理已经回满的桶
const maxBuckets = 10000

// Limiter 按 key（设备）分别限流
type Limiter struct {
	capacity   int64
	refillRate float64
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

func NewLimiter(capacity int64, refillRate float64) *Limiter {
	return &Limiter{
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
		buckets:    map[string]*TokenBucket{},
	}
}

func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			for k, old := range l.buckets {
				if old.full(now) {
					delete(l.buckets, k)
				}
			}
		}
		b = newTokenBucket(l.capacity, l.refillRate, now)
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.allowAt(now)
}

// RateLimitMiddleware 限流中间件，按设备标识分桶，没有设备标识时按来源地址
func RateLimitMiddleware(l *Limiter) iris.Handler {
	return func(ctx iris.Context) {
		key := DeviceID(ctx)
		if key == "" {
			key = ctx.RemoteAddr()
		}
		if !l.Allow(key) {
			Stop(ctx, iris.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		ctx.Next()
	}
}

// 全局限流器
var (
	signInRateLimiter   = NewLimiter(5, 0.1)  // 容量5，每10秒补充1个
	checkoutRateLimiter = NewLimiter(3, 0.05) // 容量3，每20秒补充1个
)

// SignInRateLimit 登录/注册接口限流
func SignInRateLimit() iris.Handler {
	return RateLimitMiddleware(signInRateLimiter)
}

// CheckoutRateLimit 下单接口限流
func CheckoutRateLimit() iris.Handler {
	return RateLimitMiddleware(checkoutRateLimiter)
}
