package shutdown

import (
	"cmp"
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aisgo/vlog-gateway/logger"
)

/* ========================================================================
 * Shutdown Manager - 优雅关停管理器
 * ========================================================================
 * 职责: 收到信号后按阶段关停网关
 * 阶段:
 *   1. 标记 draining，/readyz 随即返回 503，负载均衡摘除本实例
 *   2. 等待 DrainDelay，让已摘除前发出的请求到达
 *   3. 按优先级分组执行钩子：入站 -> 在途排空 -> 底层资源
 * 约定:
 *   - 组内并行，组间串行；整体 Timeout 到期后跳过剩余分组
 *   - 每个钩子有独立的 HookTimeout，慢钩子不会拖住同组其它钩子
 * ======================================================================== */

// ShutdownHook 关停钩子
type ShutdownHook func(ctx context.Context) error

type hookEntry struct {
	name     string
	hook     ShutdownHook
	priority int
}

type hookResult struct {
	name     string
	err      error
	duration time.Duration
}

// Manager 优雅关停管理器
type Manager struct {
	config   Config
	logger   *logger.Logger
	hooks    []hookEntry
	mu       sync.Mutex
	draining atomic.Bool
	done     chan struct{}
	once     sync.Once
}

// ManagerParams 依赖参数
type ManagerParams struct {
	fx.In

	Logger *logger.Logger
	Config *Config `optional:"true"`
}

// NewManager 创建优雅关停管理器
func NewManager(p ManagerParams) *Manager {
	cfg := *DefaultConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Manager{
		config: cfg,
		logger: log,
		done:   make(chan struct{}),
	}
}

// RegisterHook 以 PriorityNormal 注册钩子
func (m *Manager) RegisterHook(name string, hook ShutdownHook) {
	m.RegisterHookWithPriority(name, hook, PriorityNormal)
}

// RegisterHookWithPriority 注册钩子，priority 越小越先执行，相同优先级并行执行
func (m *Manager) RegisterHookWithPriority(name string, hook ShutdownHook, priority int) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hookEntry{name: name, hook: hook, priority: priority})
	m.mu.Unlock()

	m.logger.Debug("Registered shutdown hook", zap.String("name", name), zap.Int("priority", priority))
}

// Wait 阻塞直到收到 SIGINT / SIGTERM / SIGQUIT，然后执行关停
func (m *Manager) Wait() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	<-ctx.Done()
	m.logger.Info("Received shutdown signal")
	m.Shutdown(context.Background())
}

// Shutdown 执行关停，可重复调用，只生效一次
func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.perform(ctx)
		close(m.done)
	})
}

// Draining 关停是否已经开始
func (m *Manager) Draining() bool {
	return m.draining.Load()
}

// Done 关停完成后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// IsShutdown 关停是否已完成
func (m *Manager) IsShutdown() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Manager) perform(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	m.draining.Store(true)
	m.logger.Info("Draining", zap.Duration("drain_delay", m.config.DrainDelay), zap.Duration("timeout", m.config.Timeout))
	if d := m.config.DrainDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()
	slices.SortStableFunc(hooks, func(a, b hookEntry) int { return cmp.Compare(a.priority, b.priority) })

	var results []hookResult
	for start := 0; start < len(hooks); {
		end := start + 1
		for end < len(hooks) && hooks[end].priority == hooks[start].priority {
			end++
		}
		if ctx.Err() != nil {
			m.logger.Warn("Shutdown timeout reached, skipping remaining hooks", zap.Int("priority", hooks[start].priority))
			break
		}
		results = append(results, m.runGroup(ctx, hooks[start:end])...)
		start = end
	}

	m.report(results, len(hooks))
	if ctx.Err() != nil {
		m.logger.Warn("Graceful shutdown finished after timeout")
		return
	}
	m.logger.Info("Graceful shutdown completed")
}

// runGroup 并行执行同一优先级的钩子，整体超时后不再等待未完成的钩子
func (m *Manager) runGroup(ctx context.Context, group []hookEntry) []hookResult {
	results := make([]hookResult, len(group))
	finished := make([]atomic.Bool, len(group))

	var g errgroup.Group
	for i, h := range group {
		g.Go(func() error {
			hookCtx, cancel := m.hookContext(ctx)
			defer cancel()

			start := time.Now()
			err := h.hook(hookCtx)
			results[i] = hookResult{name: h.name, err: err, duration: time.Since(start)}
			finished[i].Store(true)
			return nil
		})
	}

	waited := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return results
	case <-ctx.Done():
	}

	out := make([]hookResult, 0, len(group))
	for i := range group {
		if finished[i].Load() {
			out = append(out, results[i])
		} else {
			out = append(out, hookResult{name: group[i].name, err: ctx.Err()})
		}
	}
	return out
}

// hookContext HookTimeout 为 0 时只受整体超时约束
func (m *Manager) hookContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.HookTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.config.HookTimeout)
}

func (m *Manager) report(results []hookResult, total int) {
	ok := 0
	for _, r := range results {
		if r.err != nil {
			m.logger.Error("Shutdown hook failed", zap.String("name", r.name), zap.Duration("duration", r.duration), zap.Error(r.err))
			continue
		}
		ok++
		m.logger.Info("Shutdown hook completed", zap.String("name", r.name), zap.Duration("duration", r.duration))
	}
	m.logger.Info("Shutdown summary", zap.Int("succeeded", ok), zap.Int("total", total))
}
