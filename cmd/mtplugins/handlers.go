package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mtplugins/host"
	"github.com/BaSui01/mtplugins/internal/ctxkeys"
	"github.com/BaSui01/mtplugins/lang"
	"github.com/BaSui01/mtplugins/plugin"
)

// maxBodyBytes 限制请求体大小
const maxBodyBytes = 1 << 20

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// TranslateRequest 是两个翻译接口的请求体
type TranslateRequest struct {
	ID string `json:"id,omitempty"`
	// Plugins 为空表示全部已加载插件
	Plugins []string   `json:"plugins,omitempty"`
	Text    string     `json:"text"`
	From    lang.Lang  `json:"from"`
	To      *lang.Lang `json:"to"`
}

// TranslateResponse 是 /api/v1/translate 的 data 字段
type TranslateResponse struct {
	Results []*host.Outcome `json:"results"`
}

// StreamDelta 是流式接口每个 data 事件的内容
type StreamDelta struct {
	Plugin string `json:"plugin"`
	Delta  string `json:"delta"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, data any) {
	id, _ := ctxkeys.RequestID(r.Context())
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Timestamp: time.Now(), RequestID: id})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := plugin.CodeOf(err)
	status := statusForCode(code)
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	msg := err.Error()
	var perr *plugin.Error
	if errors.As(err, &perr) {
		msg = perr.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("API error", zap.String("code", string(code)), zap.Error(err))
	}

	id, _ := ctxkeys.RequestID(r.Context())
	writeJSON(w, status, Response{
		Error:     &ErrorInfo{Code: string(code), Message: msg, Retryable: plugin.IsRetryable(err)},
		Timestamp: time.Now(),
		RequestID: id,
	})
}

// statusForCode 错误码到 HTTP 状态码映射
func statusForCode(code plugin.ErrorCode) int {
	switch code {
	case plugin.ErrInvalidRequest, plugin.ErrUnsupportedLanguage:
		return http.StatusBadRequest
	case plugin.ErrPluginNotFound:
		return http.StatusNotFound
	case plugin.ErrUnauthorized:
		return http.StatusUnauthorized
	case plugin.ErrForbidden:
		return http.StatusForbidden
	case plugin.ErrRateLimited:
		return http.StatusTooManyRequests
	case plugin.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case plugin.ErrUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeTranslateRequest 校验 Content-Type 并严格解码请求体
func decodeTranslateRequest(w http.ResponseWriter, r *http.Request) (TranslateRequest, error) {
	var req TranslateRequest
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return req, plugin.NewError(plugin.ErrInvalidRequest, "Content-Type must be application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, plugin.NewError(plugin.ErrInvalidRequest, "invalid JSON body: "+err.Error()).WithCause(err)
	}
	if req.To == nil {
		return req, plugin.NewError(plugin.ErrInvalidRequest, "to is required")
	}
	return req, nil
}

func (req TranslateRequest) pluginRequest() plugin.Request {
	return plugin.Request{ID: req.ID, Text: req.Text, SourceLang: req.From, TargetLang: *req.To}
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if d := s.app.cfg.Server.RequestTimeout; d > 0 {
		return context.WithTimeout(r.Context(), d)
	}
	return context.WithCancel(r.Context())
}

// =============================================================================
// 🎯 Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, map[string]any{"status": "healthy", "plugins": len(s.app.host.IDs())})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, s.app.host.Plugins())
}

// handleTranslate 对请求的插件并发翻译，按请求顺序返回结果。
// 插件失败体现在各自的结果里，不影响 HTTP 状态码。
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTranslateRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	outcomes, err := s.app.host.TranslateAll(ctx, req.Plugins, req.pluginRequest(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, TranslateResponse{Results: outcomes})
}

// sseWriter 在第一次写入时才发送 SSE 响应头，之前仍可返回普通 JSON 错误
type sseWriter struct {
	w       http.ResponseWriter
	f       http.Flusher
	started bool
	err     error
}

func (s *sseWriter) send(event string, v any) {
	if s.err != nil {
		return
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	var payload []byte
	switch v := v.(type) {
	case string:
		payload = []byte(v)
	default:
		if payload, s.err = json.Marshal(v); s.err != nil {
			return
		}
	}

	var b strings.Builder
	if event != "" {
		b.WriteString("event: " + event + "\n")
	}
	b.WriteString("data: ")
	b.Write(payload)
	b.WriteString("\n\n")
	if _, s.err = s.w.Write([]byte(b.String())); s.err == nil {
		s.f.Flush()
	}
}

// handleTranslateStream 以 SSE 转发每个插件追加的文本：
//
//	data: {"plugin":"thinking","delta":"..."}
//	event: result
//	data: {<host.Outcome>}
//	data: [DONE]
func (s *Server) handleTranslateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New("streaming not supported"))
		return
	}
	req, err := decodeTranslateRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	sse := &sseWriter{w: w, f: flusher}
	outcomes, err := s.app.host.TranslateAll(ctx, req.Plugins, req.pluginRequest(), func(pluginID, delta string) {
		sse.send("", StreamDelta{Plugin: pluginID, Delta: delta})
	})
	if err != nil {
		// 宿主只在分发前拒绝请求，此时尚未开始输出
		s.writeError(w, r, err)
		return
	}
	for _, out := range outcomes {
		sse.send("result", out)
	}
	sse.send("", "[DONE]")
	if sse.err != nil {
		s.logger.Debug("stream aborted by client", zap.Error(sse.err))
	}
}
