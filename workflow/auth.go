package workflow

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AuthorizationPolicy 权限判断, 只返回是否有权限, 错误只代表查询失败
type AuthorizationPolicy interface {
	// HasCapability 用户自己或者所在的任意一个组有 capability
	HasCapability(ctx context.Context, username string, capability string) (bool, error)
	IsGroupMember(ctx context.Context, username string, group string) (bool, error)
	GroupHasCapability(ctx context.Context, group string, capability string) (bool, error)
}

type gormAuthorizationPolicy struct {
	db *gorm.DB
}

func NewAuthorizationPolicy(db *gorm.DB) AuthorizationPolicy {
	return &gormAuthorizationPolicy{db: db}
}

func (p *gormAuthorizationPolicy) HasCapability(ctx context.Context, username string, capability string) (bool, error) {
	var count int64
	err := getDBWithContext(ctx, p.db).Model(&UserPermissionPo{}).
		Joins("JOIN auth_user ON auth_user.id = auth_user_permission.user_id").
		Where("auth_user.username = ? AND auth_user_permission.codename = ?", username, capability).
		Count(&count).Error
	if err != nil {
		return false, errors.WithMessagef(err, "HasCapability failed, username: %s", username)
	}
	if count > 0 {
		return true, nil
	}
	err = getDBWithContext(ctx, p.db).Model(&GroupPermissionPo{}).
		Joins("JOIN auth_user_group ON auth_user_group.group_id = auth_group_permission.group_id").
		Joins("JOIN auth_user ON auth_user.id = auth_user_group.user_id").
		Where("auth_user.username = ? AND auth_group_permission.codename = ?", username, capability).
		Count(&count).Error
	if err != nil {
		return false, errors.WithMessagef(err, "HasCapability failed, username: %s", username)
	}
	return count > 0, nil
}

func (p *gormAuthorizationPolicy) IsGroupMember(ctx context.Context, username string, group string) (bool, error) {
	var count int64
	err := getDBWithContext(ctx, p.db).Model(&UserGroupPo{}).
		Joins("JOIN auth_user ON auth_user.id = auth_user_group.user_id").
		Joins("JOIN auth_group ON auth_group.id = auth_user_group.group_id").
		Where("auth_user.username = ? AND auth_group.name = ?", username, group).
		Count(&count).Error
	if err != nil {
		return false, errors.WithMessagef(err, "IsGroupMember failed, username: %s, group: %s", username, group)
	}
	return count > 0, nil
}

func (p *gormAuthorizationPolicy) GroupHasCapability(ctx context.Context, group string, capability string) (bool, error) {
	var count int64
	err := getDBWithContext(ctx, p.db).Model(&GroupPermissionPo{}).
		Joins("JOIN auth_group ON auth_group.id = auth_group_permission.group_id").
		Where("auth_group.name = ? AND auth_group_permission.codename = ?", group, capability).
		Count(&count).Error
	if err != nil {
		return false, errors.WithMessagef(err, "GroupHasCapability failed, group: %s", group)
	}
	return count > 0, nil
}
