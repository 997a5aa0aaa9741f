package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/blingmoon/simple-goflow/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UserHeader 调用方身份, 前面的网关负责认证
const UserHeader = "X-Goflow-User"

type ApiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type Server struct {
	service workflow.ProcessService
	logger  *zap.Logger
	server  *http.Server
}

// NewServer gatherer 为 nil 的时候 /metrics 用默认的 registry
func NewServer(service workflow.ProcessService, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		service: service,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Route("/processes", func(r chi.Router) {
		r.Get("/", s.listProcesses)
		r.Post("/", s.addProcess)
		r.Get("/{name}", s.getProcess)
		r.Post("/{name}/instances", s.startInstance)
	})
	r.Route("/workitems/{id}", func(r chi.Router) {
		r.Get("/", s.getWorkItem)
		r.Post("/activate", s.activateWorkItem)
		r.Post("/complete", s.completeWorkItem)
		r.Post("/claim", s.claimWorkItem)
		r.Get("/events", s.listWorkItemEvents)
	})
	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	s.server = &http.Server{
		ReadHeaderTimeout: 3 * time.Second,
		Handler:           r,
		Addr:              addr,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start 监听失败直接返回错误, serve 在后台 goroutine 里面
func (s *Server) Start() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen failed, addr: %s", s.server.Addr)
	}
	s.logger.Info("goflow http server listening", zap.String("addr", listener.Addr().String()))
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return listener, nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) listProcesses(w http.ResponseWriter, r *http.Request) {
	params := &workflow.QueryProcessParams{}
	if enabled := r.URL.Query().Get("enabled"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			s.writeError(w, r, errors.Wrapf(workflow.ErrWorkflowParamInvalid, "invalid enabled: %s", enabled))
			return
		}
		params.Enabled = &b
	}
	processes, err := s.service.ListProcesses(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]*ProcessView, 0, len(processes))
	for _, process := range processes {
		views = append(views, NewProcessView(process))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) addProcess(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	req := &workflow.AddProcessReq{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.writeError(w, r, errors.Wrapf(workflow.ErrWorkflowParamInvalid, "decode body failed, err: %v", err))
		return
	}
	process, err := s.service.AddProcess(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, NewProcessView(process))
}

func (s *Server) getProcess(w http.ResponseWriter, r *http.Request) {
	process, err := s.service.GetProcess(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewProcessView(process))
}

type StartInstanceBody struct {
	Item  workflow.Item `json:"item"`
	Title string        `json:"title"`
}

// startInstance 先检查启动权限再启动
func (s *Server) startInstance(w http.ResponseWriter, r *http.Request) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	body := &StartInstanceBody{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(body); err != nil {
			s.writeError(w, r, errors.Wrapf(workflow.ErrWorkflowParamInvalid, "decode body failed, err: %v", err))
			return
		}
	}
	processName := chi.URLParam(r, "name")
	if err := s.service.CheckStartInstancePerm(r.Context(), processName, username); err != nil {
		s.writeError(w, r, err)
		return
	}
	workItem, err := s.service.Start(r.Context(), &workflow.StartProcessReq{
		ProcessName: processName,
		Username:    username,
		Item:        body.Item,
		Title:       body.Title,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, NewWorkItemView(workItem))
}

func (s *Server) getWorkItem(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := s.workItemID(w, r)
	if !ok {
		return
	}
	workItem, err := s.service.GetWorkItem(r.Context(), workItemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewWorkItemView(workItem))
}

func (s *Server) activateWorkItem(w http.ResponseWriter, r *http.Request) {
	s.workItemAction(w, r, s.service.ActivateWorkItem)
}

func (s *Server) completeWorkItem(w http.ResponseWriter, r *http.Request) {
	s.workItemAction(w, r, s.service.CompleteWorkItem)
}

func (s *Server) claimWorkItem(w http.ResponseWriter, r *http.Request) {
	s.workItemAction(w, r, s.service.ClaimWorkItem)
}

func (s *Server) workItemAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, workItemID int64, username string) (*workflow.WorkItem, error)) {
	username, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	workItemID, ok := s.workItemID(w, r)
	if !ok {
		return
	}
	workItem, err := action(r.Context(), workItemID, username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewWorkItemView(workItem))
}

func (s *Server) listWorkItemEvents(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := s.workItemID(w, r)
	if !ok {
		return
	}
	if _, err := s.service.GetWorkItem(r.Context(), workItemID); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.service.ListWorkItemEvents(r.Context(), workItemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]*EventView, 0, len(events))
	for _, event := range events {
		views = append(views, NewEventView(event))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := r.Header.Get(UserHeader)
	if username == "" {
		s.writeJSON(w, http.StatusUnauthorized, ApiError{Message: UserHeader + " header is required", Type: "UNAUTHORIZED"})
		return "", false
	}
	return username, true
}

func (s *Server) workItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	workItemID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || workItemID <= 0 {
		s.writeError(w, r, errors.Wrapf(workflow.ErrWorkflowParamInvalid, "invalid work item id: %s", raw))
		return 0, false
	}
	return workItemID, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := StatusFromError(err)
	if !workflow.IsClientError(err) {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, ApiError{Message: err.Error(), Type: errType})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// StatusFromError 错误到 http 状态码
func StatusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, workflow.ErrProcessDisabled):
		return http.StatusForbidden, "PROCESS_DISABLED"
	case errors.Is(err, workflow.ErrProcessNotFound),
		errors.Is(err, workflow.ErrProcessNotFoundOrDisabled),
		errors.Is(err, workflow.ErrActivityNotFound),
		errors.Is(err, workflow.ErrProcessInstanceNotFound),
		errors.Is(err, workflow.ErrWorkItemNotFound),
		errors.Is(err, workflow.ErrUserNotFound),
		errors.Is(err, workflow.ErrGroupNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, workflow.ErrProcessAlreadyExists),
		errors.Is(err, workflow.ErrInvalidWorkItemStatus),
		errors.Is(err, workflow.ErrProcessInstanceNotRunning),
		errors.Is(err, workflow.ErrLockFailed):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, workflow.ErrWorkflowParamInvalid):
		return http.StatusBadRequest, "BAD_REQUEST"
	}
	return http.StatusInternalServerError, "ERROR"
}
