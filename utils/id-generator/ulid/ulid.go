package ulid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

/* ========================================================================
 * ULID Generator - 请求 ID 生成
 * ========================================================================
 * 职责: 为入站请求生成可按时间排序的 26 字符 ID
 * 说明: 使用 Monotonic 熵源，同一毫秒内按生成顺序递增
 * ======================================================================== */

var defaultGenerator = NewGenerator(nil)

// Generator ULID 生成器，并发安全
type Generator struct {
	entropy io.Reader
	now     func() time.Time
	mu      sync.Mutex
}

// NewGenerator entropy 为 nil 时使用 crypto/rand.Reader
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	// Monotonic 熵源本身不是并发安全的，由 mu 保护
	if _, ok := entropy.(ulid.MonotonicEntropy); !ok {
		entropy = ulid.Monotonic(entropy, 0)
	}
	return &Generator{entropy: entropy, now: time.Now}
}

// Generate 生成 ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateString 生成字符串形式的 ULID
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// Generate 使用全局生成器
func Generate() ulid.ULID {
	return defaultGenerator.Generate()
}

// GenerateString 使用全局生成器
func GenerateString() string {
	return defaultGenerator.GenerateString()
}

// Parse 严格解析（拒绝非法 Base32 字符）
func Parse(s string) (ulid.ULID, error) {
	return ulid.ParseStrict(s)
}

// IsValid 是否为合法 ULID 字符串
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time 提取时间戳
func Time(id ulid.ULID) time.Time {
	return ulid.Time(id.Time())
}
