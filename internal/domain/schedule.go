package domain

// Schedule запись расписания, как её отдаёт backend
type Schedule struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	BellType     BellType `json:"bell_type"`
	ScheduleDate string   `json:"schedule_date"`
	ScheduleTime string   `json:"schedule_time"`
	DisplayDate  string   `json:"display_date,omitempty"`
	DisplayTime  string   `json:"display_time,omitempty"`
}

type BellLog struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	BellType   BellType `json:"bell_type"`
	DateLogged string   `json:"date_logged"`
	RingTime   *string  `json:"ring_time"`
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)
