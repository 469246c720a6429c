// Package web 提供报告的 HTTP 接口、Excel 下载以及实时日志页面
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BikeDashboard/src/datapush"
	"BikeDashboard/src/processor"
	"BikeDashboard/src/schema"
	"BikeDashboard/src/storage"
	"BikeDashboard/src/utils"

	"golang.org/x/time/rate"
)

// Options 服务参数
type Options struct {
	Addr      string
	RateLimit float64 // 每秒允许的 /api 请求数，<=0 表示不限流
	Burst     int
	Labels    func(code string) string // 天气代码 -> 展示名称
}

// Server 报告服务
type Server struct {
	store   *processor.Store
	logger  *storage.Logger
	labels  func(string) string
	limiter *rate.Limiter
	server  *http.Server
}

// WeatherOption 天气多选框的一个选项
type WeatherOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// BoundsResponse /api/bounds 的返回内容
type BoundsResponse struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Weather []WeatherOption `json:"weather"`
}

// NewServer 创建服务并注册路由
func NewServer(store *processor.Store, logger *storage.Logger, opts Options) *Server {
	s := &Server{
		store:  store,
		logger: logger,
		labels: opts.Labels,
	}
	if s.labels == nil {
		s.labels = func(code string) string { return code }
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	api := http.NewServeMux()
	api.HandleFunc("/api/health", s.handleHealthCheck)
	api.HandleFunc("/api/bounds", s.handleBounds)
	api.HandleFunc("/api/report", s.handleReport)
	api.HandleFunc("/api/export", s.handleExport)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.limit(api))
	mux.HandleFunc("/logs", s.handleLogs)

	s.server = &http.Server{
		Addr:        opts.Addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	return s
}

// Handler 返回路由，便于测试
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start 启动服务，阻塞直到服务关闭
func (s *Server) Start() error {
	s.logger.Info("HTTP服务启动: " + s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// limit 令牌桶限流，超出时返回 429
func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warning("请求过于频繁: " + r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if snap := s.store.Get(); snap != nil {
		resp["loaded_at"] = snap.LoadedAt.Format(time.RFC3339)
		resp["daily_rows"] = snap.Day.Len()
		resp["hourly_rows"] = snap.Hour.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Get()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "数据尚未加载")
		return
	}
	b, ok := processor.DataBounds(snap.Day)
	if !ok {
		writeError(w, http.StatusNotFound, "数据集为空")
		return
	}

	resp := BoundsResponse{
		From:    utils.FormatDate(b.From),
		To:      utils.FormatDate(b.To),
		Weather: make([]WeatherOption, len(b.Weather)),
	}
	for i, code := range b.Weather {
		resp.Weather[i] = WeatherOption{Code: code, Label: s.labels(code)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.buildReport(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	report, status, err := s.buildReport(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := datapush.WriteReport(&buf, report); err != nil {
		s.logger.Error("导出报告失败: " + err.Error())
		writeError(w, http.StatusInternalServerError, "导出报告失败")
		return
	}

	name := fmt.Sprintf("bike_report_%s_%s.xlsx",
		utils.FormatDate(report.Selection.From), utils.FormatDate(report.Selection.To))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// buildReport 解析查询参数并生成报告，出错时同时返回应答状态码
func (s *Server) buildReport(r *http.Request) (*processor.Report, int, error) {
	snap := s.store.Get()
	if snap == nil {
		return nil, http.StatusServiceUnavailable, fmt.Errorf("数据尚未加载")
	}

	bounds, _ := processor.DataBounds(snap.Day)
	sel, err := ParseSelection(r.URL.Query(), bounds)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	t1 := time.Now()
	report, err := processor.BuildReport(snap, sel)
	if err != nil {
		s.logger.Error("生成报告失败: " + err.Error())
		return nil, http.StatusInternalServerError, fmt.Errorf("生成报告失败")
	}
	s.logger.Debug(fmt.Sprintf("生成报告 %s ~ %s 天气%v，耗时 %v",
		utils.FormatDate(sel.From), utils.FormatDate(sel.To), sel.Weather, time.Since(t1)))
	return report, http.StatusOK, nil
}

// ParseSelection 从查询参数解析选择条件
// 参数:
//
//	q: 查询参数 from、to(YYYY-MM-DD) 与 weather(逗号分隔的天气代码)
//	defaults: 缺省参数时使用的数据范围
//
// 返回值:
//
//	Selection: 选择条件。weather 参数存在但为空时不选任何天气
//	error: 日期格式错误
func ParseSelection(q url.Values, defaults processor.Bounds) (processor.Selection, error) {
	sel := defaults.DefaultSelection()

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &sel.From}, {"to", &sel.To}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		t, err := time.Parse(utils.DateLayout, v)
		if err != nil {
			return processor.Selection{}, fmt.Errorf("参数 %s 不是有效日期(YYYY-MM-DD): %q", p.name, v)
		}
		*p.dst = t
	}

	if values, ok := q["weather"]; ok {
		sel.Weather = []string{}
		for _, v := range values {
			for _, code := range strings.Split(v, ",") {
				if strings.TrimSpace(code) == "" {
					continue
				}
				// 与加载时一致，"1.0" 与 "1" 是同一天气
				if code = schema.CanonicalCode(code); !utils.Contains(sel.Weather, code) {
					sel.Weather = append(sel.Weather, code)
				}
			}
		}
	}
	return sel, nil
}

// handleLogs 以分块传输的纯文本持续推送日志
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Transfer-Encoding", "chunked")

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	flusher, _ := w.(http.Flusher)
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 写入失败(如客户端断开)时退出
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
