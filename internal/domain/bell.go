package domain

import "time"

// Endpoint адрес устройства звонка: host или host:port
type Endpoint string

// EndpointOutcome результат обращения к одному устройству
type EndpointOutcome struct {
	Endpoint  Endpoint `json:"endpoint"`
	Succeeded bool     `json:"succeeded"`
	Error     string   `json:"error,omitempty"`
}

// BroadcastResult агрегированный результат рассылки
type BroadcastResult struct {
	SucceededCount int      `json:"succeeded_count"`
	TotalCount     int      `json:"total_count"`
	FailureDetails []string `json:"failure_details"`
}

type BellType int

const (
	BellTypeSupravatam1 BellType = 0
	BellTypeSupravatam2 BellType = 1
	BellTypeNormal      BellType = 2
)

// Path returns the device path that rings this kind of bell.
func (t BellType) Path() (string, bool) {
	switch t {
	case BellTypeSupravatam1:
		return "supravatam1", true
	case BellTypeSupravatam2:
		return "supravatam2", true
	case BellTypeNormal:
		return "normal", true
	}
	return "", false
}

type RingSource string

const (
	RingSourceManual   RingSource = "manual"
	RingSourceSchedule RingSource = "schedule"
	RingSourceCommand  RingSource = "command"
)

type RingEvent struct {
	ID         string     `json:"id"`
	Source     RingSource `json:"source"`
	ScheduleID int        `json:"schedule_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	BellType   *BellType  `json:"bell_type,omitempty"`
	Requester  string     `json:"requester,omitempty"`
	Triggered  int        `json:"triggered"`
	Total      int        `json:"total"`
	Failed     []string   `json:"failed,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// RingCommand запрос на звонок, пришедший из Kafka
type RingCommand struct {
	Name      string    `json:"name,omitempty"`
	BellType  *BellType `json:"bell_type,omitempty"`
	Requester string    `json:"requester,omitempty"`
}
