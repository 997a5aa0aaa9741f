package workflow

import (
	"fmt"
)

func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }
func Int64(i int64) *int64    { return &i }

// Item 触发流程的业务对象引用, 引擎不关心内容
type Item struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"` // 展示用, 为空的时候用 Type#ID
}

func (i Item) String() string {
	if i.Label != "" {
		return i.Label
	}
	if i.Type == "" {
		return i.ID
	}
	if i.ID == "" {
		return i.Type
	}
	return fmt.Sprintf("%s#%s", i.Type, i.ID)
}

// Process 流程定义entity
type Process struct {
	ID          int64
	Title       string
	Description string
	Enabled     bool
	Begin       *Activity
	CreatedAt   int64
	UpdatedAt   int64
}

// Activity 流程中的一个节点
type Activity struct {
	ID                 int64
	ProcessID          int64
	Title              string
	Description        string
	Kind               ActivityKind
	Autostart          bool
	Autofinish         bool
	ApplicationURL     string
	AppParams          *JSONParams
	PushApplicationURL string
	PushAppParams      *JSONParams
	Roles              []string
	JoinMode           JoinSplitMode
	SplitMode          JoinSplitMode
}

// DispatchMode 开始节点按 autostart > push > pull 的优先级决定分发方式
func (a *Activity) DispatchMode() DispatchMode {
	if a.Autostart {
		return DispatchModeAutostart
	}
	if a.PushApplicationURL != "" {
		return DispatchModePush
	}
	return DispatchModePull
}

type ProcessInstance struct {
	ID        int64
	ProcessID int64
	Title     string
	Item      Item
	Username  string
	Status    ProcessInstanceStatus
	CreatedAt int64
	UpdatedAt int64
}

type WorkItem struct {
	ID         int64
	InstanceID int64
	Instance   *ProcessInstance
	ActivityID int64
	Activity   *Activity
	Username   string
	Status     WorkItemStatus
	PullRoles  []string
	CreatedAt  int64
	UpdatedAt  int64
}

type Event struct {
	ID         int64
	WorkItemID int64
	Message    string
	CreatedAt  int64
}

func newProcessFromPo(po *ProcessPo, begin *Activity) *Process {
	return &Process{
		ID:          po.ID,
		Title:       po.Title,
		Description: po.Description,
		Enabled:     po.Enabled,
		Begin:       begin,
		CreatedAt:   po.CreatedAt,
		UpdatedAt:   po.UpdatedAt,
	}
}

func newActivityFromPo(po *ActivityPo) *Activity {
	appParams, err := ParseJSONParams(po.AppParam)
	if err != nil {
		// 写入的时候校验过, 这里只会是脏数据
		appParams = NewJSONParamsFromMap(nil)
	}
	pushAppParams, err := ParseJSONParams(po.PushAppParam)
	if err != nil {
		pushAppParams = NewJSONParamsFromMap(nil)
	}
	return &Activity{
		ID:                 po.ID,
		ProcessID:          po.ProcessID,
		Title:              po.Title,
		Description:        po.Description,
		Kind:               po.Kind,
		Autostart:          po.Autostart,
		Autofinish:         po.Autofinish,
		ApplicationURL:     po.ApplicationURL,
		AppParams:          appParams,
		PushApplicationURL: po.PushApplicationURL,
		PushAppParams:      pushAppParams,
		Roles:              decodeStringList(po.Roles),
		JoinMode:           po.JoinMode,
		SplitMode:          po.SplitMode,
	}
}

func newProcessInstanceFromPo(po *ProcessInstancePo) *ProcessInstance {
	return &ProcessInstance{
		ID:        po.ID,
		ProcessID: po.ProcessID,
		Title:     po.Title,
		Item:      Item{Type: po.ItemType, ID: po.ItemID, Label: po.ItemLabel},
		Username:  po.Username,
		Status:    po.Status,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
}

func newWorkItemFromPo(po *WorkItemPo, instance *ProcessInstance, activity *Activity) *WorkItem {
	return &WorkItem{
		ID:         po.ID,
		InstanceID: po.InstanceID,
		Instance:   instance,
		ActivityID: po.ActivityID,
		Activity:   activity,
		Username:   po.Username,
		Status:     po.Status,
		PullRoles:  decodeStringList(po.PullRoles),
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}
}
