package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ProcessPo struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"column:title;uniqueIndex" json:"title"`
	Description string `gorm:"column:description" json:"description"`
	Enabled     bool   `gorm:"column:enabled" json:"enabled"`
	BeginID     int64  `gorm:"column:begin_id" json:"begin_id"` // 开始活动
	CreatedAt   int64  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   int64  `gorm:"column:updated_at" json:"updated_at"`
}

func (ProcessPo) TableName() string {
	return "workflow_process"
}

type ActivityPo struct {
	ID                 int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ProcessID          int64  `gorm:"column:process_id;index"`
	Title              string `gorm:"column:title"`
	Description        string `gorm:"column:description"`
	Kind               string `gorm:"column:kind"`
	Autostart          bool   `gorm:"column:autostart"`
	Autofinish         bool   `gorm:"column:autofinish"`
	ApplicationURL     string `gorm:"column:application_url"`
	AppParam           string `gorm:"column:app_param"`
	PushApplicationURL string `gorm:"column:push_application_url"`
	PushAppParam       string `gorm:"column:pushapp_param"`
	Roles              []byte `gorm:"column:roles"` // json 数组, 组名
	JoinMode           string `gorm:"column:join_mode"`
	SplitMode          string `gorm:"column:split_mode"`
	CreatedAt          int64  `gorm:"column:created_at"`
	UpdatedAt          int64  `gorm:"column:updated_at"`
}

func (ActivityPo) TableName() string {
	return "workflow_activity"
}

type ApplicationKind = string

const (
	ApplicationKindApplication ApplicationKind = "application"
	ApplicationKindPush        ApplicationKind = "push"
)

type ApplicationPo struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	URL       string `gorm:"column:url;uniqueIndex:idx_application_url_kind"`
	Kind      string `gorm:"column:kind;uniqueIndex:idx_application_url_kind"`
	Test      bool   `gorm:"column:test"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (ApplicationPo) TableName() string {
	return "workflow_application"
}

type ProcessInstancePo struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ProcessID int64  `gorm:"column:process_id;index"`
	Title     string `gorm:"column:title"`
	ItemType  string `gorm:"column:item_type"`
	ItemID    string `gorm:"column:item_id"`
	ItemLabel string `gorm:"column:item_label"`
	Username  string `gorm:"column:username"` // 创建者
	Status    string `gorm:"column:status"`
	CreatedAt int64  `gorm:"column:created_at"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (ProcessInstancePo) TableName() string {
	return "process_instance"
}

type WorkItemPo struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	InstanceID int64  `gorm:"column:instance_id;index"`
	ActivityID int64  `gorm:"column:activity_id"`
	Username   string `gorm:"column:username"`
	Status     string `gorm:"column:status"`
	PullRoles  []byte `gorm:"column:pull_roles"` // json 数组, 组名
	CreatedAt  int64  `gorm:"column:created_at"`
	UpdatedAt  int64  `gorm:"column:updated_at"`
}

func (WorkItemPo) TableName() string {
	return "work_item"
}

type EventPo struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	WorkItemID int64  `gorm:"column:work_item_id;index"`
	Message    string `gorm:"column:message"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (EventPo) TableName() string {
	return "work_item_event"
}

// AllModels AutoMigrate 需要的所有表
func AllModels() []any {
	return []any{
		&ProcessPo{}, &ActivityPo{}, &ApplicationPo{}, &ProcessInstancePo{}, &WorkItemPo{}, &EventPo{},
		&UserPo{}, &GroupPo{}, &UserGroupPo{}, &UserPermissionPo{}, &GroupPermissionPo{},
	}
}

type Pager struct {
	IsNoLimit *bool `json:"is_no_limit"`
	Page      int64 `json:"page"`
	Size      int64 `json:"size"`
}

type QueryProcessParams struct {
	ProcessID *int64  `json:"process_id"`
	Title     *string `json:"title"`
	Enabled   *bool   `json:"enabled"`
	IDIn      []int64 `json:"id_in"`
	Page      *Pager  `json:"page"`
}

type UpdateProcessParams struct {
	Where    *UpdateProcessWhere `json:"where" validate:"required"`
	Fields   *UpdateProcessField `json:"fields" validate:"required"`
	LimitMax int                 `json:"limit_max"`
}

type UpdateProcessWhere struct {
	IDIn []int64 `json:"id_in"`
}

type UpdateProcessField struct {
	Enabled     *bool   `json:"enabled"`
	BeginID     *int64  `json:"begin_id"`
	Description *string `json:"description"`
}

type QueryActivityParams struct {
	ActivityID *int64  `json:"activity_id"`
	ProcessID  *int64  `json:"process_id"`
	IDIn       []int64 `json:"id_in"`
	Page       *Pager  `json:"page"`
}

type UpdateActivityParams struct {
	Where    *UpdateActivityWhere `json:"where" validate:"required"`
	Fields   *UpdateActivityField `json:"fields" validate:"required"`
	LimitMax int                  `json:"limit_max"`
}

type UpdateActivityWhere struct {
	IDIn []int64 `json:"id_in"`
}

type UpdateActivityField struct {
	Title              *string  `json:"title"`
	Description        *string  `json:"description"`
	Kind               *string  `json:"kind"`
	Autostart          *bool    `json:"autostart"`
	Autofinish         *bool    `json:"autofinish"`
	ApplicationURL     *string  `json:"application_url"`
	AppParam           *string  `json:"app_param"`
	PushApplicationURL *string  `json:"push_application_url"`
	PushAppParam       *string  `json:"pushapp_param"`
	Roles              []string `json:"roles"` // nil 表示不更新
	JoinMode           *string  `json:"join_mode"`
	SplitMode          *string  `json:"split_mode"`
}

type QueryApplicationParams struct {
	URL  *string `json:"url"`
	Kind *string `json:"kind"`
	Page *Pager  `json:"page"`
}

type QueryProcessInstanceParams struct {
	InstanceID *int64   `json:"instance_id"`
	ProcessID  *int64   `json:"process_id"`
	StatusIn   []string `json:"status_in"`
	Page       *Pager   `json:"page"`
}

type UpdateProcessInstanceParams struct {
	Where    *UpdateProcessInstanceWhere `json:"where" validate:"required"`
	Fields   *UpdateProcessInstanceField `json:"fields" validate:"required"`
	LimitMax int                         `json:"limit_max"`
}

type UpdateProcessInstanceWhere struct {
	IDIn     []int64  `json:"id_in"`
	StatusIn []string `json:"status_in"`
}

type UpdateProcessInstanceField struct {
	Status *string `json:"status"`
}

type QueryWorkItemParams struct {
	WorkItemID *int64   `json:"work_item_id"`
	InstanceID *int64   `json:"instance_id"`
	Username   *string  `json:"username"`
	StatusIn   []string `json:"status_in"`
	Page       *Pager   `json:"page"`
}

type UpdateWorkItemParams struct {
	Where    *UpdateWorkItemWhere `json:"where" validate:"required"`
	Fields   *UpdateWorkItemField `json:"fields" validate:"required"`
	LimitMax int                  `json:"limit_max"`
}

type UpdateWorkItemWhere struct {
	IDIn     []int64  `json:"id_in"`
	StatusIn []string `json:"status_in"`
}

type UpdateWorkItemField struct {
	Status    *string  `json:"status"`
	Username  *string  `json:"username"`
	PullRoles []string `json:"pull_roles"` // nil 表示不更新, 空数组表示清空
}

type QueryEventParams struct {
	WorkItemID *int64 `json:"work_item_id"`
	Page       *Pager `json:"page"`
}

type processRepo struct {
	db *gorm.DB
}

func NewProcessRepo(db *gorm.DB) ProcessRepo {
	return &processRepo{
		db: db,
	}
}

func (r *processRepo) CreateProcess(ctx context.Context, process *ProcessPo) (*ProcessPo, error) {
	if process == nil {
		return nil, errors.New("nil ProcessPo")
	}
	process.CreatedAt = time.Now().Unix()
	process.UpdatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(process).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateProcess failed")
	}
	return process, nil
}

func (r *processRepo) QueryProcess(ctx context.Context, param *QueryProcessParams) ([]*ProcessPo, error) {
	if param == nil {
		return nil, errors.New("nil QueryProcessParams")
	}
	db := getDBWithContext(ctx, r.db).Model(&ProcessPo{})
	if param.ProcessID != nil {
		db = db.Where("id = ?", *param.ProcessID)
	}
	if param.Title != nil {
		db = db.Where("title = ?", *param.Title)
	}
	if param.Enabled != nil {
		db = db.Where("enabled = ?", *param.Enabled)
	}
	if len(param.IDIn) != 0 {
		db = db.Where("id IN ?", param.IDIn)
	}
	db, err := withPager(db.Order("id asc"), param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryProcess failed")
	}
	pos := make([]*ProcessPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryProcess failed")
	}
	return pos, nil
}

func (r *processRepo) UpdateProcess(ctx context.Context, param *UpdateProcessParams) error {
	if err := validatorUtil.Struct(param); err != nil {
		return errors.Wrapf(ErrWorkflowParamInvalid, "UpdateProcess failed, err: %v", err)
	}
	if len(param.Where.IDIn) == 0 {
		return errors.New("update process need where condition")
	}
	updateFields := make(map[string]any)
	if param.Fields.Enabled != nil {
		updateFields["enabled"] = *param.Fields.Enabled
	}
	if param.Fields.BeginID != nil {
		updateFields["begin_id"] = *param.Fields.BeginID
	}
	if param.Fields.Description != nil {
		updateFields["description"] = *param.Fields.Description
	}
	if len(updateFields) == 0 {
		return errors.New("no fields to update")
	}
	updateFields["updated_at"] = time.Now().Unix()
	db := getDBWithContext(ctx, r.db).Model(&ProcessPo{}).Where("id IN ?", param.Where.IDIn)
	if err := withLimit(db, param.LimitMax).Updates(updateFields).Error; err != nil {
		return errors.WithMessage(err, "UpdateProcess failed")
	}
	return nil
}

func (r *processRepo) CreateActivity(ctx context.Context, activity *ActivityPo) (*ActivityPo, error) {
	if activity == nil {
		return nil, errors.New("nil ActivityPo")
	}
	activity.CreatedAt = time.Now().Unix()
	activity.UpdatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(activity).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateActivity failed")
	}
	return activity, nil
}

func (r *processRepo) QueryActivity(ctx context.Context, param *QueryActivityParams) ([]*ActivityPo, error) {
	if param == nil {
		return nil, errors.New("nil QueryActivityParams")
	}
	db := getDBWithContext(ctx, r.db).Model(&ActivityPo{})
	if param.ActivityID != nil {
		db = db.Where("id = ?", *param.ActivityID)
	}
	if param.ProcessID != nil {
		db = db.Where("process_id = ?", *param.ProcessID)
	}
	if len(param.IDIn) != 0 {
		db = db.Where("id IN ?", param.IDIn)
	}
	db, err := withPager(db.Order("id asc"), param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryActivity failed")
	}
	pos := make([]*ActivityPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryActivity failed")
	}
	return pos, nil
}

func buildUpdateActivityFields(fields *UpdateActivityField) (map[string]any, error) {
	updateFields := make(map[string]any)
	if fields.Title != nil {
		updateFields["title"] = *fields.Title
	}
	if fields.Description != nil {
		updateFields["description"] = *fields.Description
	}
	if fields.Kind != nil {
		updateFields["kind"] = *fields.Kind
	}
	if fields.Autostart != nil {
		updateFields["autostart"] = *fields.Autostart
	}
	if fields.Autofinish != nil {
		updateFields["autofinish"] = *fields.Autofinish
	}
	if fields.ApplicationURL != nil {
		updateFields["application_url"] = *fields.ApplicationURL
	}
	if fields.AppParam != nil {
		updateFields["app_param"] = *fields.AppParam
	}
	if fields.PushApplicationURL != nil {
		updateFields["push_application_url"] = *fields.PushApplicationURL
	}
	if fields.PushAppParam != nil {
		updateFields["pushapp_param"] = *fields.PushAppParam
	}
	if fields.Roles != nil {
		roles, err := json.Marshal(fields.Roles)
		if err != nil {
			return nil, errors.WithMessage(err, "Marshal fields.Roles failed")
		}
		updateFields["roles"] = roles
	}
	if fields.JoinMode != nil {
		updateFields["join_mode"] = *fields.JoinMode
	}
	if fields.SplitMode != nil {
		updateFields["split_mode"] = *fields.SplitMode
	}
	if len(updateFields) == 0 {
		return nil, errors.New("no fields to update")
	}
	updateFields["updated_at"] = time.Now().Unix()
	return updateFields, nil
}

func (r *processRepo) UpdateActivity(ctx context.Context, param *UpdateActivityParams) error {
	if err := validatorUtil.Struct(param); err != nil {
		return errors.Wrapf(ErrWorkflowParamInvalid, "UpdateActivity failed, err: %v", err)
	}
	if len(param.Where.IDIn) == 0 {
		return errors.New("update activity need where condition")
	}
	updateFields, err := buildUpdateActivityFields(param.Fields)
	if err != nil {
		return errors.WithMessage(err, "buildUpdateActivityFields failed")
	}
	db := getDBWithContext(ctx, r.db).Model(&ActivityPo{}).Where("id IN ?", param.Where.IDIn)
	if err := withLimit(db, param.LimitMax).Updates(updateFields).Error; err != nil {
		return errors.WithMessage(err, "UpdateActivity failed")
	}
	return nil
}

func (r *processRepo) CreateApplication(ctx context.Context, application *ApplicationPo) (*ApplicationPo, error) {
	if application == nil {
		return nil, errors.New("nil ApplicationPo")
	}
	application.CreatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(application).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateApplication failed")
	}
	return application, nil
}

func (r *processRepo) QueryApplication(ctx context.Context, param *QueryApplicationParams) ([]*ApplicationPo, error) {
	if param == nil {
		return nil, errors.New("nil QueryApplicationParams")
	}
	db := getDBWithContext(ctx, r.db).Model(&ApplicationPo{})
	if param.URL != nil {
		db = db.Where("url = ?", *param.URL)
	}
	if param.Kind != nil {
		db = db.Where("kind = ?", *param.Kind)
	}
	db, err := withPager(db.Order("id asc"), param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryApplication failed")
	}
	pos := make([]*ApplicationPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryApplication failed")
	}
	return pos, nil
}

func (r *processRepo) CreateProcessInstance(ctx context.Context, instance *ProcessInstancePo) (*ProcessInstancePo, error) {
	if instance == nil {
		return nil, errors.New("nil ProcessInstancePo")
	}
	instance.CreatedAt = time.Now().Unix()
	instance.UpdatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(instance).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateProcessInstance failed")
	}
	return instance, nil
}

func (r *processRepo) QueryProcessInstance(ctx context.Context, param *QueryProcessInstanceParams) ([]*ProcessInstancePo, error) {
	if param == nil {
		return nil, errors.New("nil QueryProcessInstanceParams")
	}
	db := getDBWithContext(ctx, r.db).Model(&ProcessInstancePo{})
	if param.InstanceID != nil {
		db = db.Where("id = ?", *param.InstanceID)
	}
	if param.ProcessID != nil {
		db = db.Where("process_id = ?", *param.ProcessID)
	}
	if len(param.StatusIn) != 0 {
		db = db.Where("status IN ?", param.StatusIn)
	}
	db, err := withPager(db.Order("id asc"), param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryProcessInstance failed")
	}
	pos := make([]*ProcessInstancePo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryProcessInstance failed")
	}
	return pos, nil
}

func (r *processRepo) UpdateProcessInstance(ctx context.Context, param *UpdateProcessInstanceParams) error {
	if err := validatorUtil.Struct(param); err != nil {
		return errors.Wrapf(ErrWorkflowParamInvalid, "UpdateProcessInstance failed, err: %v", err)
	}
	if len(param.Where.IDIn) == 0 {
		return errors.New("update process instance need where condition")
	}
	if param.Fields.Status == nil {
		return errors.New("no fields to update")
	}
	db := getDBWithContext(ctx, r.db).Model(&ProcessInstancePo{}).Where("id IN ?", param.Where.IDIn)
	if len(param.Where.StatusIn) > 0 {
		db = db.Where("status IN ?", param.Where.StatusIn)
	}
	result := withLimit(db, param.LimitMax).Updates(map[string]any{
		"status":     *param.Fields.Status,
		"updated_at": time.Now().Unix(),
	})
	if result.Error != nil {
		return errors.WithMessage(result.Error, "UpdateProcessInstance failed")
	}
	if len(param.Where.StatusIn) > 0 && result.RowsAffected == 0 {
		return errors.WithMessagef(ErrProcessInstanceNotRunning, "UpdateProcessInstance failed, ids: %v, status not in %v", param.Where.IDIn, param.Where.StatusIn)
	}
	return nil
}

func (r *processRepo) CreateWorkItem(ctx context.Context, workItem *WorkItemPo) (*WorkItemPo, error) {
	if workItem == nil {
		return nil, errors.New("nil WorkItemPo")
	}
	workItem.CreatedAt = time.Now().Unix()
	workItem.UpdatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(workItem).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateWorkItem failed")
	}
	return workItem, nil
}

func (r *processRepo) QueryWorkItem(ctx context.Context, param *QueryWorkItemParams) ([]*WorkItemPo, error) {
	if param == nil {
		return nil, errors.New("nil QueryWorkItemParams")
	}
	db := getDBWithContext(ctx, r.db).Model(&WorkItemPo{})
	if param.WorkItemID != nil {
		db = db.Where("id = ?", *param.WorkItemID)
	}
	if param.InstanceID != nil {
		db = db.Where("instance_id = ?", *param.InstanceID)
	}
	if param.Username != nil {
		db = db.Where("username = ?", *param.Username)
	}
	if len(param.StatusIn) != 0 {
		db = db.Where("status IN ?", param.StatusIn)
	}
	db, err := withPager(db.Order("id asc"), param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryWorkItem failed")
	}
	pos := make([]*WorkItemPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryWorkItem failed")
	}
	return pos, nil
}

func buildUpdateWorkItemFields(fields *UpdateWorkItemField) (map[string]any, error) {
	updateFields := make(map[string]any)
	if fields.Status != nil {
		updateFields["status"] = *fields.Status
	}
	if fields.Username != nil {
		updateFields["username"] = *fields.Username
	}
	if fields.PullRoles != nil {
		pullRoles, err := json.Marshal(fields.PullRoles)
		if err != nil {
			return nil, errors.WithMessage(err, "Marshal fields.PullRoles failed")
		}
		updateFields["pull_roles"] = pullRoles
	}
	if len(updateFields) == 0 {
		return nil, errors.New("no fields to update")
	}
	updateFields["updated_at"] = time.Now().Unix()
	return updateFields, nil
}

func (r *processRepo) UpdateWorkItem(ctx context.Context, param *UpdateWorkItemParams) error {
	if err := validatorUtil.Struct(param); err != nil {
		return errors.Wrapf(ErrWorkflowParamInvalid, "UpdateWorkItem failed, err: %v", err)
	}
	if len(param.Where.IDIn) == 0 {
		return errors.New("update work item need where condition")
	}
	updateFields, err := buildUpdateWorkItemFields(param.Fields)
	if err != nil {
		return errors.WithMessage(err, "buildUpdateWorkItemFields failed")
	}
	db := getDBWithContext(ctx, r.db).Model(&WorkItemPo{}).Where("id IN ?", param.Where.IDIn)
	if len(param.Where.StatusIn) > 0 {
		db = db.Where("status IN ?", param.Where.StatusIn)
	}
	result := withLimit(db, param.LimitMax).Updates(updateFields)
	if result.Error != nil {
		return errors.WithMessage(result.Error, "UpdateWorkItem failed")
	}
	// 带了状态条件却没有更新到, 说明状态已经被别人改了
	if len(param.Where.StatusIn) > 0 && result.RowsAffected == 0 {
		return errors.WithMessagef(ErrInvalidWorkItemStatus, "UpdateWorkItem failed, ids: %v, status not in %v", param.Where.IDIn, param.Where.StatusIn)
	}
	return nil
}

func (r *processRepo) CreateEvent(ctx context.Context, event *EventPo) (*EventPo, error) {
	if event == nil {
		return nil, errors.New("nil EventPo")
	}
	event.CreatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(event).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateEvent failed")
	}
	return event, nil
}

func (r *processRepo) QueryEvent(ctx context.Context, param *QueryEventParams) ([]*EventPo, error) {
	if param == nil {
		return nil, errors.New("nil QueryEventParams")
	}
	db := getDBWithContext(ctx, r.db).Model(&EventPo{})
	if param.WorkItemID != nil {
		db = db.Where("work_item_id = ?", *param.WorkItemID)
	}
	db, err := withPager(db.Order("id asc"), param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryEvent failed")
	}
	pos := make([]*EventPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryEvent failed")
	}
	return pos, nil
}

func (r *processRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(transactionContextKey) != nil {
		// 已经在事务里面了
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, transactionContextKey, tx))
	})
}

func withPager(db *gorm.DB, page *Pager) (*gorm.DB, error) {
	if page == nil {
		return nil, errors.New("page is nil")
	}
	if page.IsNoLimit != nil && *page.IsNoLimit {
		return db, nil
	}
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.Size <= 0 {
		page.Size = 10
	}
	return db.Offset(int(page.Page-1) * int(page.Size)).Limit(int(page.Size)), nil
}

func withLimit(db *gorm.DB, limitMax int) *gorm.DB {
	if limitMax > 0 {
		return db.Limit(limitMax)
	}
	return db
}

func firstPage(size int64) *Pager {
	return &Pager{Page: 1, Size: size}
}

func noLimitPage() *Pager {
	return &Pager{IsNoLimit: Bool(true)}
}

type contextKey string

const (
	transactionContextKey contextKey = "transaction"
)

// getDBWithContext ctx 里面有事务就用事务, 目录和流程两个repo共用同一个事务
func getDBWithContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	tx, ok := ctx.Value(transactionContextKey).(*gorm.DB)
	if !ok || tx == nil {
		return db.WithContext(ctx)
	}
	return tx
}

func decodeStringList(b []byte) []string {
	ret := make([]string, 0)
	if len(b) == 0 {
		return ret
	}
	if err := json.Unmarshal(b, &ret); err != nil {
		return make([]string, 0)
	}
	return ret
}

func encodeStringList(list []string) []byte {
	if list == nil {
		list = make([]string, 0)
	}
	b, _ := json.Marshal(list)
	return b
}
