package flow

import "time"

// ScheduleStatus 交期状态
type ScheduleStatus string

const (
	ScheduleNoData  ScheduleStatus = "no_data"
	ScheduleOnTrack ScheduleStatus = "on_track"
	ScheduleAtRisk  ScheduleStatus = "at_risk"
	ScheduleOverdue ScheduleStatus = "overdue"
)

// BufferDays 缓冲天数 = ceil((交期 − 预计完成) / 1天)。
// 预测本身由排产侧提供，这里只做分类。
func BufferDays(deadline, estimatedFinish time.Time) int {
	diff := deadline.Sub(estimatedFinish)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// ClassifyBuffer 按缓冲天数分类
func ClassifyBuffer(buffer int) ScheduleStatus {
	switch {
	case buffer > 0:
		return ScheduleOnTrack
	case buffer == 0:
		return ScheduleAtRisk
	default:
		return ScheduleOverdue
	}
}

// ClassifySchedule 无预测数据时返回 no_data
func ClassifySchedule(deadline time.Time, estimatedFinish *time.Time) (ScheduleStatus, int) {
	if estimatedFinish == nil {
		return ScheduleNoData, 0
	}
	buffer := BufferDays(deadline, *estimatedFinish)
	return ClassifyBuffer(buffer), buffer
}
