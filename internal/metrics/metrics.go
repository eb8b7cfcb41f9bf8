// Package metrics 提供Prometheus文本格式的监控指标
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry 指标注册表
type Registry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

var (
	registry *Registry
	once     sync.Once
)

// Get 获取全局注册表
func Get() *Registry {
	once.Do(func() {
		registry = &Registry{
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
		initDefaultMetrics()
	})
	return registry
}

// initDefaultMetrics 初始化默认指标
func initDefaultMetrics() {
	registry.NewCounter("banbiao_http_requests_total", "HTTP请求总数", []string{"method", "path", "status"})
	registry.NewHistogram("banbiao_http_request_duration_seconds", "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0})

	registry.NewCounter("banbiao_solver_runs_total", "求解次数", []string{"status"})
	registry.NewHistogram("banbiao_solver_duration_seconds", "求解耗时",
		[]string{},
		[]float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0})
	registry.NewGauge("banbiao_solver_missing_minutes", "最近一次求解的欠覆盖分钟数", []string{"tenant"})

	registry.NewCounter("banbiao_demand_saves_total", "需求保存次数", []string{"kind"})
	registry.NewCounter("banbiao_index_races_total", "日索引并发冲突次数", []string{})
	registry.NewCounter("banbiao_transfer_requests_total", "换班请求数", []string{"action", "status"})
	registry.NewCounter("banbiao_notifications_total", "通知发送数", []string{"status"})
	registry.NewGauge("banbiao_db_connections", "数据库连接数", []string{"state"})
}

// NewCounter 创建计数器
func (r *Registry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.counters[name] = c
	return c
}

// NewGauge 创建仪表盘
func (r *Registry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.gauges[name] = g
	return g
}

// NewHistogram 创建直方图
func (r *Registry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &Histogram{
		Name: name, Help: help, Labels: labels, Buckets: buckets,
		counts: make(map[string][]int), sums: make(map[string]float64),
	}
	r.histograms[name] = h
	return h
}

// Counter 获取计数器
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Gauge 获取仪表盘
func (r *Registry) Gauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// Histogram 获取直方图
func (r *Registry) Histogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Add 增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] += value
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}
	for i, bucket := range h.Buckets {
		if value <= bucket {
			h.counts[key][i]++
		}
	}
	h.counts[key][len(h.Buckets)]++
	h.sums[key] += value
}

// labelKey 生成标签键
func labelKey(values []string) string {
	return strings.Join(values, "\x1f")
}

// formatLabels 格式化标签对
func formatLabels(names []string, key string) string {
	vals := strings.Split(key, "\x1f")
	pairs := make([]string, 0, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		pairs = append(pairs, fmt.Sprintf("%s=%q", name, val))
	}
	return strings.Join(pairs, ",")
}

// Handler 返回Prometheus文本格式的指标HTTP处理器
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		reg := Get()
		reg.mu.RLock()
		defer reg.mu.RUnlock()

		for _, name := range sortedKeys(reg.counters) {
			c := reg.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.Name, c.Help, c.Name)
			c.mu.RLock()
			for key, value := range c.values {
				writeSample(w, c.Name, c.Labels, key, value)
			}
			c.mu.RUnlock()
		}

		for _, name := range sortedKeys(reg.gauges) {
			g := reg.gauges[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n", g.Name, g.Help, g.Name)
			g.mu.RLock()
			for key, value := range g.values {
				writeSample(w, g.Name, g.Labels, key, value)
			}
			g.mu.RUnlock()
		}

		for _, name := range sortedKeys(reg.histograms) {
			h := reg.histograms[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.Name, h.Help, h.Name)
			h.mu.RLock()
			for key, counts := range h.counts {
				cumulative := 0
				labels := formatLabels(h.Labels, key)
				for i, bucket := range h.Buckets {
					cumulative += counts[i]
					fmt.Fprintf(w, "%s_bucket{%s} %d\n", h.Name, bucketLabels(labels, fmt.Sprintf("%g", bucket)), cumulative)
				}
				cumulative += counts[len(h.Buckets)]
				fmt.Fprintf(w, "%s_bucket{%s} %d\n", h.Name, bucketLabels(labels, "+Inf"), cumulative)
				if labels == "" {
					fmt.Fprintf(w, "%s_sum %f\n%s_count %d\n", h.Name, h.sums[key], h.Name, cumulative)
				} else {
					fmt.Fprintf(w, "%s_sum{%s} %f\n%s_count{%s} %d\n", h.Name, labels, h.sums[key], h.Name, labels, cumulative)
				}
			}
			h.mu.RUnlock()
		}
	})
}

func writeSample(w http.ResponseWriter, name string, labelNames []string, key string, value float64) {
	if len(labelNames) == 0 {
		fmt.Fprintf(w, "%s %f\n", name, value)
		return
	}
	fmt.Fprintf(w, "%s{%s} %f\n", name, formatLabels(labelNames, key), value)
}

func bucketLabels(labels, le string) string {
	if labels == "" {
		return fmt.Sprintf("le=%q", le)
	}
	return fmt.Sprintf("%s,le=%q", labels, le)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordRequest 记录请求指标
func RecordRequest(method, path string, status int, duration time.Duration) {
	reg := Get()
	if c := reg.Counter("banbiao_http_requests_total"); c != nil {
		c.Inc(method, path, fmt.Sprintf("%d", status))
	}
	if h := reg.Histogram("banbiao_http_request_duration_seconds"); h != nil {
		h.Observe(duration.Seconds(), method, path)
	}
}

// RecordSolverRun 记录求解指标
func RecordSolverRun(tenant string, timedOut bool, duration time.Duration, missingMinutes int) {
	reg := Get()
	status := "ok"
	if timedOut {
		status = "timeout"
	}
	if c := reg.Counter("banbiao_solver_runs_total"); c != nil {
		c.Inc(status)
	}
	if h := reg.Histogram("banbiao_solver_duration_seconds"); h != nil {
		h.Observe(duration.Seconds())
	}
	if g := reg.Gauge("banbiao_solver_missing_minutes"); g != nil {
		g.Set(float64(missingMinutes), tenant)
	}
}

// RecordDemandSave 记录需求保存
func RecordDemandSave(kind string) {
	if c := Get().Counter("banbiao_demand_saves_total"); c != nil {
		c.Inc(kind)
	}
}

// RecordIndexRace 记录日索引并发冲突
func RecordIndexRace() {
	if c := Get().Counter("banbiao_index_races_total"); c != nil {
		c.Inc()
	}
}

// RecordTransfer 记录换班请求状态变化
func RecordTransfer(action, status string) {
	if c := Get().Counter("banbiao_transfer_requests_total"); c != nil {
		c.Inc(action, status)
	}
}

// RecordNotification 记录通知发送结果
func RecordNotification(ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	if c := Get().Counter("banbiao_notifications_total"); c != nil {
		c.Inc(status)
	}
}
