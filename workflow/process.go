package workflow

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type AddProcessReq struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

type AddActivityReq struct {
	ProcessTitle       string   `json:"process_title" validate:"required"`
	Title              string   `json:"title" validate:"required"`
	Description        string   `json:"description"`
	Kind               string   `json:"kind" validate:"omitempty,oneof=standard dummy subflow"`
	Autostart          bool     `json:"autostart"`
	Autofinish         bool     `json:"autofinish"`
	ApplicationURL     string   `json:"application_url"`
	AppParam           string   `json:"app_param"`
	PushApplicationURL string   `json:"push_application_url"`
	PushAppParam       string   `json:"pushapp_param"`
	Roles              []string `json:"roles"`
	JoinMode           string   `json:"join_mode" validate:"omitempty,oneof=and xor"`
	SplitMode          string   `json:"split_mode" validate:"omitempty,oneof=and xor"`
}

type UpdateActivityReq struct {
	ActivityID int64                `json:"activity_id" validate:"gt=0"`
	Fields     *UpdateActivityField `json:"fields" validate:"required"`
}

type AddApplicationReq struct {
	URL  string          `json:"url" validate:"required"`
	Kind ApplicationKind `json:"kind" validate:"required,oneof=application push"`
	Test bool            `json:"test"`
}

func (s *ProcessServiceImpl) AddProcess(ctx context.Context, req *AddProcessReq) (*Process, error) {
	if err := validatorUtil.Struct(req); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "AddProcess failed, req: %v,err: %v", req, err)
	}
	var ret *Process
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		existed, err := s.repo.QueryProcess(ctx, &QueryProcessParams{Title: &req.Title, Page: firstPage(1)})
		if err != nil {
			return errors.WithMessagef(err, "QueryProcess failed, title: %s", req.Title)
		}
		if len(existed) > 0 {
			return errors.WithMessagef(ErrProcessAlreadyExists, "title: %s", req.Title)
		}
		processPo, err := s.repo.CreateProcess(ctx, &ProcessPo{
			Title:       req.Title,
			Description: req.Description,
			Enabled:     true,
		})
		if err != nil {
			return errors.WithMessagef(err, "CreateProcess failed, title: %s", req.Title)
		}
		beginPo, err := s.repo.CreateActivity(ctx, &ActivityPo{
			ProcessID: processPo.ID,
			Title:     beginActivityTitle,
			Kind:      ActivityKindStandard,
			Roles:     encodeStringList(nil),
			JoinMode:  JoinSplitModeXor,
			SplitMode: JoinSplitModeAnd,
		})
		if err != nil {
			return errors.WithMessagef(err, "CreateActivity failed, process: %s", req.Title)
		}
		// TODO: 结束活动目前不创建, 等流程图执行做完之后再定义 end 的语义
		processPo.BeginID = beginPo.ID
		err = s.repo.UpdateProcess(ctx, &UpdateProcessParams{
			Where:    &UpdateProcessWhere{IDIn: []int64{processPo.ID}},
			Fields:   &UpdateProcessField{BeginID: &beginPo.ID},
			LimitMax: 1,
		})
		if err != nil {
			return errors.WithMessagef(err, "UpdateProcess failed, process: %s", req.Title)
		}
		ret = newProcessFromPo(processPo, newActivityFromPo(beginPo))
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "AddProcess failed, title: %s", req.Title)
	}
	s.logger.Info("process added", zap.String("process", ret.Title), zap.Int64("begin_id", ret.Begin.ID))
	return ret, nil
}

func (s *ProcessServiceImpl) GetProcess(ctx context.Context, title string) (*Process, error) {
	processPo, err := s.getProcessPo(ctx, title)
	if err != nil {
		return nil, err
	}
	begin, err := s.getActivity(ctx, processPo.BeginID)
	if err != nil {
		return nil, errors.WithMessagef(err, "get begin activity failed, process: %s", title)
	}
	return newProcessFromPo(processPo, begin), nil
}

func (s *ProcessServiceImpl) ListProcesses(ctx context.Context, params *QueryProcessParams) ([]*Process, error) {
	if params == nil {
		params = &QueryProcessParams{}
	}
	if params.Page == nil {
		params.Page = noLimitPage()
	}
	processPos, err := s.repo.QueryProcess(ctx, params)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryProcess failed")
	}
	beginIDs := make([]int64, 0, len(processPos))
	for _, processPo := range processPos {
		beginIDs = append(beginIDs, processPo.BeginID)
	}
	beginMap := make(map[int64]*Activity)
	if len(beginIDs) > 0 {
		activityPos, err := s.repo.QueryActivity(ctx, &QueryActivityParams{IDIn: beginIDs, Page: noLimitPage()})
		if err != nil {
			return nil, errors.WithMessage(err, "QueryActivity failed")
		}
		for _, activityPo := range activityPos {
			beginMap[activityPo.ID] = newActivityFromPo(activityPo)
		}
	}
	ret := make([]*Process, 0, len(processPos))
	for _, processPo := range processPos {
		ret = append(ret, newProcessFromPo(processPo, beginMap[processPo.BeginID]))
	}
	return ret, nil
}

func (s *ProcessServiceImpl) SetProcessEnabled(ctx context.Context, title string, enabled bool) error {
	processPo, err := s.getProcessPo(ctx, title)
	if err != nil {
		return err
	}
	err = s.repo.UpdateProcess(ctx, &UpdateProcessParams{
		Where:    &UpdateProcessWhere{IDIn: []int64{processPo.ID}},
		Fields:   &UpdateProcessField{Enabled: &enabled},
		LimitMax: 1,
	})
	if err != nil {
		return errors.WithMessagef(err, "UpdateProcess failed, title: %s", title)
	}
	s.logger.Info("process enabled changed", zap.String("process", title), zap.Bool("enabled", enabled))
	return nil
}

func (s *ProcessServiceImpl) AddActivity(ctx context.Context, req *AddActivityReq) (*Activity, error) {
	if err := validatorUtil.Struct(req); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "AddActivity failed, req: %v,err: %v", req, err)
	}
	processPo, err := s.getProcessPo(ctx, req.ProcessTitle)
	if err != nil {
		return nil, err
	}
	err = s.checkActivityBindings(ctx, &req.ApplicationURL, &req.AppParam, &req.PushApplicationURL, &req.PushAppParam, req.Roles)
	if err != nil {
		return nil, errors.WithMessagef(err, "AddActivity failed, title: %s", req.Title)
	}
	kind := req.Kind
	if kind == "" {
		kind = ActivityKindStandard
	}
	joinMode, splitMode := req.JoinMode, req.SplitMode
	if joinMode == "" {
		joinMode = JoinSplitModeXor
	}
	if splitMode == "" {
		splitMode = JoinSplitModeAnd
	}
	activityPo, err := s.repo.CreateActivity(ctx, &ActivityPo{
		ProcessID:          processPo.ID,
		Title:              req.Title,
		Description:        req.Description,
		Kind:               kind,
		Autostart:          req.Autostart,
		Autofinish:         req.Autofinish,
		ApplicationURL:     req.ApplicationURL,
		AppParam:           req.AppParam,
		PushApplicationURL: req.PushApplicationURL,
		PushAppParam:       req.PushAppParam,
		Roles:              encodeStringList(req.Roles),
		JoinMode:           joinMode,
		SplitMode:          splitMode,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "CreateActivity failed, title: %s", req.Title)
	}
	return newActivityFromPo(activityPo), nil
}

func (s *ProcessServiceImpl) UpdateActivity(ctx context.Context, req *UpdateActivityReq) (*Activity, error) {
	if err := validatorUtil.Struct(req); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "UpdateActivity failed, req: %v,err: %v", req, err)
	}
	f := req.Fields
	if f.Kind != nil && *f.Kind != ActivityKindStandard && *f.Kind != ActivityKindDummy && *f.Kind != ActivityKindSubflow {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "UpdateActivity failed, unknown kind: %s", *f.Kind)
	}
	if _, err := s.getActivity(ctx, req.ActivityID); err != nil {
		return nil, err
	}
	err := s.checkActivityBindings(ctx, f.ApplicationURL, f.AppParam, f.PushApplicationURL, f.PushAppParam, f.Roles)
	if err != nil {
		return nil, errors.WithMessagef(err, "UpdateActivity failed, activityID: %d", req.ActivityID)
	}
	err = s.repo.UpdateActivity(ctx, &UpdateActivityParams{
		Where:    &UpdateActivityWhere{IDIn: []int64{req.ActivityID}},
		Fields:   f,
		LimitMax: 1,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "UpdateActivity failed, activityID: %d", req.ActivityID)
	}
	return s.getActivity(ctx, req.ActivityID)
}

func (s *ProcessServiceImpl) AddApplication(ctx context.Context, req *AddApplicationReq) error {
	if err := validatorUtil.Struct(req); err != nil {
		return errors.Wrapf(ErrWorkflowParamInvalid, "AddApplication failed, req: %v,err: %v", req, err)
	}
	_, err := s.repo.CreateApplication(ctx, &ApplicationPo{URL: req.URL, Kind: req.Kind, Test: req.Test})
	if err != nil {
		return errors.WithMessagef(err, "CreateApplication failed, url: %s", req.URL)
	}
	return nil
}

func (s *ProcessServiceImpl) ProcessIsEnabled(ctx context.Context, title string) (bool, error) {
	processPo, err := s.getProcessPo(ctx, title)
	if err != nil {
		return false, err
	}
	return processPo.Enabled, nil
}

func (s *ProcessServiceImpl) CheckStartInstancePerm(ctx context.Context, processName string, username string) error {
	enabled, err := s.ProcessIsEnabled(ctx, processName)
	if err != nil {
		return err
	}
	if !enabled {
		return errors.WithMessagef(ErrProcessDisabled, "process %s disabled", processName)
	}
	if _, err := s.directory.GetUserByUsername(ctx, username); err != nil {
		return err
	}
	ok, err := s.policy.HasCapability(ctx, username, CapabilityInstantiate)
	if err != nil {
		return errors.WithMessagef(err, "HasCapability failed, username: %s", username)
	}
	if !ok {
		return &PermissionError{Reason: PermissionReasonMissingCapability, ProcessName: processName, Username: username}
	}
	// 用户需要在流程同名的组里, 而且这个组有 can_instantiate
	ok, err = s.policy.IsGroupMember(ctx, username, processName)
	if err != nil {
		return errors.WithMessagef(err, "IsGroupMember failed, username: %s", username)
	}
	if ok {
		ok, err = s.policy.GroupHasCapability(ctx, processName, ScopedPermissionInstantiate)
		if err != nil {
			return errors.WithMessagef(err, "GroupHasCapability failed, group: %s", processName)
		}
	}
	if !ok {
		return &PermissionError{Reason: PermissionReasonMissingScopedPermission, ProcessName: processName, Username: username}
	}
	return nil
}

// checkActivityBindings nil 的字段不检查
func (s *ProcessServiceImpl) checkActivityBindings(ctx context.Context, appURL, appParam, pushURL, pushParam *string, roles []string) error {
	if appURL != nil && *appURL != "" {
		if err := s.checkApplicationExists(ctx, *appURL, ApplicationKindApplication); err != nil {
			return err
		}
	}
	if pushURL != nil && *pushURL != "" {
		if err := s.checkApplicationExists(ctx, *pushURL, ApplicationKindPush); err != nil {
			return err
		}
	}
	for _, param := range []*string{appParam, pushParam} {
		if param == nil {
			continue
		}
		if _, err := ParseJSONParams(*param); err != nil {
			return err
		}
	}
	for _, role := range roles {
		if _, err := s.directory.GetGroupByName(ctx, role); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProcessServiceImpl) checkApplicationExists(ctx context.Context, url string, kind ApplicationKind) error {
	pos, err := s.repo.QueryApplication(ctx, &QueryApplicationParams{URL: &url, Kind: &kind, Page: firstPage(1)})
	if err != nil {
		return errors.WithMessagef(err, "QueryApplication failed, url: %s", url)
	}
	if len(pos) > 0 {
		return nil
	}
	if kind == ApplicationKindPush {
		return errors.WithMessagef(ErrPushApplicationNotFound, "url: %s", url)
	}
	return errors.WithMessagef(ErrApplicationNotFound, "url: %s", url)
}

func (s *ProcessServiceImpl) getProcessPo(ctx context.Context, title string) (*ProcessPo, error) {
	pos, err := s.repo.QueryProcess(ctx, &QueryProcessParams{Title: &title, Page: firstPage(1)})
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryProcess failed, title: %s", title)
	}
	if len(pos) == 0 {
		return nil, errors.WithMessagef(ErrProcessNotFound, "title: %s", title)
	}
	return pos[0], nil
}

func (s *ProcessServiceImpl) getActivity(ctx context.Context, activityID int64) (*Activity, error) {
	pos, err := s.repo.QueryActivity(ctx, &QueryActivityParams{ActivityID: &activityID, Page: firstPage(1)})
	if err != nil {
		return nil, errors.WithMessagef(err, "QueryActivity failed, activityID: %d", activityID)
	}
	if len(pos) == 0 {
		return nil, errors.WithMessagef(ErrActivityNotFound, "activityID: %d", activityID)
	}
	return newActivityFromPo(pos[0]), nil
}
