package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// 群成员角色
const (
	RoleMember = "member" // 普通成员
	RoleAdmin  = "admin"  // 管理员
)

// GroupMember 群成员关联表
// (group_uuid, user_id) 唯一；未读计数恒等于入群后未读的群消息数
type GroupMember struct {
	gorm.Model
	GroupUuid   string       `gorm:"column:group_uuid;index:idx_group_user,unique;type:char(20);not null;comment:群聊uuid"`
	UserId      string       `gorm:"column:user_id;index:idx_group_user,unique;type:char(20);not null;comment:用户id"`
	Role        string       `gorm:"column:role;type:varchar(10);default:member;not null;comment:角色 admin/member"`
	UnreadCount int          `gorm:"column:unread_count;default:0;not null;comment:未读数"`
	LastReadAt  sql.NullTime `gorm:"column:last_read_at;type:datetime;comment:最近已读时间"`
}

// TableName 指定表名
func (GroupMember) TableName() string {
	return "group_member"
}

// IsAdmin 判断该成员是否为管理员
func (m *GroupMember) IsAdmin() bool {
	return m.Role == RoleAdmin
}
