package api

import "github.com/blingmoon/simple-goflow/workflow"

type ActivityView struct {
	ID                 int64    `json:"id"`
	Title              string   `json:"title"`
	Kind               string   `json:"kind"`
	Autostart          bool     `json:"autostart"`
	ApplicationURL     string   `json:"application_url,omitempty"`
	PushApplicationURL string   `json:"push_application_url,omitempty"`
	Roles              []string `json:"roles"`
	DispatchMode       string   `json:"dispatch_mode"`
}

type ProcessView struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Enabled     bool          `json:"enabled"`
	Begin       *ActivityView `json:"begin,omitempty"`
}

type WorkItemView struct {
	ID            int64    `json:"id"`
	InstanceID    int64    `json:"instance_id"`
	InstanceTitle string   `json:"instance_title"`
	Activity      string   `json:"activity"`
	Username      string   `json:"username"`
	Status        string   `json:"status"`
	PullRoles     []string `json:"pull_roles"`
}

type EventView struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"created_at"`
}

func NewActivityView(activity *workflow.Activity) *ActivityView {
	if activity == nil {
		return nil
	}
	return &ActivityView{
		ID:                 activity.ID,
		Title:              activity.Title,
		Kind:               activity.Kind,
		Autostart:          activity.Autostart,
		ApplicationURL:     activity.ApplicationURL,
		PushApplicationURL: activity.PushApplicationURL,
		Roles:              activity.Roles,
		DispatchMode:       activity.DispatchMode(),
	}
}

func NewProcessView(process *workflow.Process) *ProcessView {
	return &ProcessView{
		ID:          process.ID,
		Title:       process.Title,
		Description: process.Description,
		Enabled:     process.Enabled,
		Begin:       NewActivityView(process.Begin),
	}
}

func NewWorkItemView(workItem *workflow.WorkItem) *WorkItemView {
	view := &WorkItemView{
		ID:         workItem.ID,
		InstanceID: workItem.InstanceID,
		Username:   workItem.Username,
		Status:     workItem.Status,
		PullRoles:  workItem.PullRoles,
	}
	if workItem.Instance != nil {
		view.InstanceTitle = workItem.Instance.Title
	}
	if workItem.Activity != nil {
		view.Activity = workItem.Activity.Title
	}
	return view
}

func NewEventView(event *workflow.Event) *EventView {
	return &EventView{ID: event.ID, Message: event.Message, CreatedAt: event.CreatedAt}
}
