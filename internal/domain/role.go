package domain

type Role string

const (
	RoleAdmin      Role = "admin"      // 管理设备与全部数据
	RoleManager    Role = "manager"    // 审批可用性申请
	RoleDispatcher Role = "dispatcher" // 安排与调整预约
	RoleAppraiser  Role = "appraiser"  // 外勤评估师，只能为自己打卡
)
