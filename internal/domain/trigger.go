package domain

type TriggerDetails struct {
	Triggered int      `json:"triggered"`
	Total     int      `json:"total"`
	Failed    []string `json:"failed,omitempty"`
}

// TriggerReport ответ на ручной запуск звонка
type TriggerReport struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details TriggerDetails `json:"details"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
