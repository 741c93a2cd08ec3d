package request

// CreateGroupRequest 创建群聊请求
// AdminIds 与 MemberIds 可以重叠，同时出现的用户按管理员处理；
// 创建者无须出现在任一列表中，总是自动成为管理员
type CreateGroupRequest struct {
	CreatorId          string   `json:"creatorId"`          // 创建者 ID
	Name               string   `json:"name"`               // 群名称
	Type               string   `json:"type"`               // 群类型 class/announcement/custom
	ClassId            string   `json:"classId"`            // 班级 ID，type=class 时必填
	IsAnnouncementOnly bool     `json:"isAnnouncementOnly"` // 仅管理员可发言
	AdminIds           []string `json:"adminIds"`           // 初始管理员列表
	MemberIds          []string `json:"memberIds"`          // 初始成员列表
}

// UpdateGroupRequest 更新群聊信息请求
// 指针字段为 nil 表示不修改
type UpdateGroupRequest struct {
	OperatorId         string  `json:"operatorId"`         // 操作者 ID，必须是管理员
	GroupId            string  `json:"groupId"`            // 群聊 UUID
	Name               *string `json:"name"`               // 新群名称
	IsAnnouncementOnly *bool   `json:"isAnnouncementOnly"` // 新仅公告标志
}
