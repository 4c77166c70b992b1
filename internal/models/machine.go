package models

import "time"

// Machine 受监控的机台（淬火炉）
type Machine struct {
	MachineID         string    `json:"machine_id" db:"machine_id"`
	MachineName       string    `json:"machine_name" db:"machine_name"`
	ProductionLine    string    `json:"production_line" db:"production_line"`
	MonitoringEnabled bool      `json:"monitoring_enabled" db:"monitoring_enabled"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
