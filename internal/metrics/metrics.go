// Package metrics 提供Prometheus监控指标
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

// GetRegistry 获取全局注册表
func GetRegistry() *Registry {
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
	registry.NewCounter("canpai_http_requests_total", "HTTP请求总数", []string{"method", "path", "status"})
	registry.NewHistogram("canpai_http_request_duration_seconds", "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0})

	registry.NewCounter("canpai_solve_total", "排班求解次数", []string{"status"})
	registry.NewHistogram("canpai_solve_duration_seconds", "排班求解延迟",
		[]string{},
		[]float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0})
	registry.NewGauge("canpai_solve_confidence", "最近一次求解的整体信心值", []string{"biz_id"})

	registry.NewCounter("canpai_draft_changes_total", "草稿变更次数", []string{"change_type", "status"})
	registry.NewCounter("canpai_publish_total", "排班发布次数", []string{"status"})
	registry.NewCounter("canpai_notifications_total", "排班通知生成数", []string{"type"})

	registry.NewGauge("canpai_fairness_gini", "公平性基尼系数", []string{"biz_id", "metric_type"})
	registry.NewGauge("canpai_coverage_rate", "班次覆盖率", []string{"biz_id"})
	registry.NewGauge("canpai_db_connections", "数据库连接数", []string{"state"})
}

// NewCounter 创建计数器
func (r *Registry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *Registry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{Name: name, Help: help, Labels: labels, values: make(map[string]float64)}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *Registry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name: name, Help: help, Labels: labels, Buckets: buckets,
		counts: make(map[string][]int),
		sums:   make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *Registry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *Registry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *Registry) GetHistogram(name string) *Histogram {
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
	h.counts[key][len(h.Buckets)]++ // +Inf bucket
	h.sums[key] += value
}

// labelKey 生成标签键
func labelKey(labels []string) string {
	return strings.Join(labels, ",")
}

// Handler 返回Prometheus文本格式的指标HTTP处理器
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		r := GetRegistry()
		r.mu.RLock()
		defer r.mu.RUnlock()

		for _, name := range sortedKeys(r.counters) {
			counter := r.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n", counter.Name, counter.Help)
			fmt.Fprintf(w, "# TYPE %s counter\n", counter.Name)

			counter.mu.RLock()
			for key, value := range counter.values {
				writeSample(w, counter.Name, counter.Labels, key, value)
			}
			counter.mu.RUnlock()
		}

		for _, name := range sortedKeys(r.gauges) {
			gauge := r.gauges[name]
			fmt.Fprintf(w, "# HELP %s %s\n", gauge.Name, gauge.Help)
			fmt.Fprintf(w, "# TYPE %s gauge\n", gauge.Name)

			gauge.mu.RLock()
			for key, value := range gauge.values {
				writeSample(w, gauge.Name, gauge.Labels, key, value)
			}
			gauge.mu.RUnlock()
		}

		for _, name := range sortedKeys(r.histograms) {
			h := r.histograms[name]
			fmt.Fprintf(w, "# HELP %s %s\n", h.Name, h.Help)
			fmt.Fprintf(w, "# TYPE %s histogram\n", h.Name)

			h.mu.RLock()
			for key, counts := range h.counts {
				labels := formatLabels(h.Labels, key)
				cumulative := 0
				for i, bucket := range h.Buckets {
					cumulative += counts[i]
					fmt.Fprintf(w, "%s_bucket{%s} %d\n", h.Name, joinLabel(labels, fmt.Sprintf("le=\"%g\"", bucket)), cumulative)
				}
				cumulative += counts[len(h.Buckets)]
				fmt.Fprintf(w, "%s_bucket{%s} %d\n", h.Name, joinLabel(labels, `le="+Inf"`), cumulative)
				if labels == "" {
					fmt.Fprintf(w, "%s_sum %f\n", h.Name, h.sums[key])
					fmt.Fprintf(w, "%s_count %d\n", h.Name, cumulative)
				} else {
					fmt.Fprintf(w, "%s_sum{%s} %f\n", h.Name, labels, h.sums[key])
					fmt.Fprintf(w, "%s_count{%s} %d\n", h.Name, labels, cumulative)
				}
			}
			h.mu.RUnlock()
		}
	})
}

// writeSample 输出单条样本
func writeSample(w http.ResponseWriter, name string, labelNames []string, key string, value float64) {
	labels := formatLabels(labelNames, key)
	if labels == "" {
		fmt.Fprintf(w, "%s %f\n", name, value)
		return
	}
	fmt.Fprintf(w, "%s{%s} %f\n", name, labels, value)
}

// formatLabels 格式化标签
func formatLabels(names []string, key string) string {
	if len(names) == 0 {
		return ""
	}
	vals := strings.Split(key, ",")
	parts := make([]string, 0, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", name, val))
	}
	return strings.Join(parts, ",")
}

// joinLabel 拼接标签片段
func joinLabel(labels, extra string) string {
	if labels == "" {
		return extra
	}
	return labels + "," + extra
}

// sortedKeys 按名称排序，保证输出稳定
func sortedKeys[T any](m map[string]*T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordRequest 记录请求指标
func RecordRequest(method, path string, status int, duration time.Duration) {
	r := GetRegistry()
	if c := r.GetCounter("canpai_http_requests_total"); c != nil {
		c.Inc(method, path, fmt.Sprintf("%d", status))
	}
	if h := r.GetHistogram("canpai_http_request_duration_seconds"); h != nil {
		h.Observe(duration.Seconds(), method, path)
	}
}

// RecordSolve 记录求解指标
func RecordSolve(bizID string, success bool, duration time.Duration, confidence float64) {
	r := GetRegistry()
	status := "success"
	if !success {
		status = "failure"
	}
	if c := r.GetCounter("canpai_solve_total"); c != nil {
		c.Inc(status)
	}
	if h := r.GetHistogram("canpai_solve_duration_seconds"); h != nil {
		h.Observe(duration.Seconds())
	}
	if g := r.GetGauge("canpai_solve_confidence"); g != nil {
		g.Set(confidence, bizID)
	}
}

// RecordDraftChange 记录草稿变更指标
func RecordDraftChange(changeType string, success bool) {
	status := "success"
	if !success {
		status = "rejected"
	}
	if c := GetRegistry().GetCounter("canpai_draft_changes_total"); c != nil {
		c.Inc(changeType, status)
	}
}

// RecordPublish 记录发布指标
func RecordPublish(success bool, notifications int, notifyType string) {
	r := GetRegistry()
	status := "success"
	if !success {
		status = "failure"
	}
	if c := r.GetCounter("canpai_publish_total"); c != nil {
		c.Inc(status)
	}
	if notifications > 0 {
		if c := r.GetCounter("canpai_notifications_total"); c != nil {
			c.Add(float64(notifications), notifyType)
		}
	}
}

// SetFairnessGini 设置公平性基尼系数
func SetFairnessGini(bizID, metricType string, gini float64) {
	if g := GetRegistry().GetGauge("canpai_fairness_gini"); g != nil {
		g.Set(gini, bizID, metricType)
	}
}

// SetCoverageRate 设置覆盖率
func SetCoverageRate(bizID string, rate float64) {
	if g := GetRegistry().GetGauge("canpai_coverage_rate"); g != nil {
		g.Set(rate, bizID)
	}
}
