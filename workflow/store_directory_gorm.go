package workflow

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type UserPo struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Username  string `gorm:"column:username;uniqueIndex"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (UserPo) TableName() string {
	return "auth_user"
}

type GroupPo struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string `gorm:"column:name;uniqueIndex"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (GroupPo) TableName() string {
	return "auth_group"
}

type UserGroupPo struct {
	UserID  int64 `gorm:"column:user_id;primaryKey"`
	GroupID int64 `gorm:"column:group_id;primaryKey"`
}

func (UserGroupPo) TableName() string {
	return "auth_user_group"
}

type UserPermissionPo struct {
	UserID   int64  `gorm:"column:user_id;primaryKey"`
	Codename string `gorm:"column:codename;primaryKey"`
}

func (UserPermissionPo) TableName() string {
	return "auth_user_permission"
}

type GroupPermissionPo struct {
	GroupID  int64  `gorm:"column:group_id;primaryKey"`
	Codename string `gorm:"column:codename;primaryKey"`
}

func (GroupPermissionPo) TableName() string {
	return "auth_group_permission"
}

type directoryRepo struct {
	db *gorm.DB
}

func NewDirectoryRepo(db *gorm.DB) DirectoryRepo {
	return &directoryRepo{db: db}
}

func (r *directoryRepo) CreateUser(ctx context.Context, user *UserPo) (*UserPo, error) {
	if user == nil || user.Username == "" {
		return nil, errors.Wrap(ErrWorkflowParamInvalid, "empty username")
	}
	user.CreatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(user).Error; err != nil {
		return nil, errors.WithMessagef(err, "CreateUser failed, username: %s", user.Username)
	}
	return user, nil
}

func (r *directoryRepo) GetUserByUsername(ctx context.Context, username string) (*UserPo, error) {
	pos := make([]*UserPo, 0)
	err := getDBWithContext(ctx, r.db).Model(&UserPo{}).Where("username = ?", username).Limit(1).Find(&pos).Error
	if err != nil {
		return nil, errors.WithMessagef(err, "GetUserByUsername failed, username: %s", username)
	}
	if len(pos) == 0 {
		return nil, errors.WithMessagef(ErrUserNotFound, "username: %s", username)
	}
	return pos[0], nil
}

func (r *directoryRepo) CreateGroup(ctx context.Context, group *GroupPo) (*GroupPo, error) {
	if group == nil || group.Name == "" {
		return nil, errors.Wrap(ErrWorkflowParamInvalid, "empty group name")
	}
	group.CreatedAt = time.Now().Unix()
	if err := getDBWithContext(ctx, r.db).Create(group).Error; err != nil {
		return nil, errors.WithMessagef(err, "CreateGroup failed, name: %s", group.Name)
	}
	return group, nil
}

func (r *directoryRepo) GetGroupByName(ctx context.Context, name string) (*GroupPo, error) {
	pos := make([]*GroupPo, 0)
	err := getDBWithContext(ctx, r.db).Model(&GroupPo{}).Where("name = ?", name).Limit(1).Find(&pos).Error
	if err != nil {
		return nil, errors.WithMessagef(err, "GetGroupByName failed, name: %s", name)
	}
	if len(pos) == 0 {
		return nil, errors.WithMessagef(ErrGroupNotFound, "group: %s", name)
	}
	return pos[0], nil
}

func (r *directoryRepo) AddUserToGroup(ctx context.Context, userID int64, groupID int64) error {
	err := getDBWithContext(ctx, r.db).
		Where(UserGroupPo{UserID: userID, GroupID: groupID}).
		FirstOrCreate(&UserGroupPo{UserID: userID, GroupID: groupID}).Error
	if err != nil {
		return errors.WithMessagef(err, "AddUserToGroup failed, userID: %d, groupID: %d", userID, groupID)
	}
	return nil
}

func (r *directoryRepo) GrantUserPermission(ctx context.Context, userID int64, codename string) error {
	err := getDBWithContext(ctx, r.db).
		Where(UserPermissionPo{UserID: userID, Codename: codename}).
		FirstOrCreate(&UserPermissionPo{UserID: userID, Codename: codename}).Error
	if err != nil {
		return errors.WithMessagef(err, "GrantUserPermission failed, userID: %d, codename: %s", userID, codename)
	}
	return nil
}

func (r *directoryRepo) GrantGroupPermission(ctx context.Context, groupID int64, codename string) error {
	err := getDBWithContext(ctx, r.db).
		Where(GroupPermissionPo{GroupID: groupID, Codename: codename}).
		FirstOrCreate(&GroupPermissionPo{GroupID: groupID, Codename: codename}).Error
	if err != nil {
		return errors.WithMessagef(err, "GrantGroupPermission failed, groupID: %d, codename: %s", groupID, codename)
	}
	return nil
}
