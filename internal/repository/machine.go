package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// MachineRepository 机台仓库
type MachineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMachineRepository 创建机台仓库
func NewMachineRepository(db *sql.DB, logger *zap.Logger) *MachineRepository {
	return &MachineRepository{
		db:     db,
		logger: logger,
	}
}

// GetActiveMachines 获取所有启用监控的机台
// 轮询消费者每个周期调用一次，决定本周期的评分对象
func (r *MachineRepository) GetActiveMachines(ctx context.Context) ([]models.Machine, error) {
	query := `
		SELECT
			machine_id,
			machine_name,
			production_line,
			monitoring_enabled,
			created_at,
			updated_at
		FROM machines
		WHERE monitoring_enabled = true
		ORDER BY machine_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active machines: %w", err)
	}
	defer rows.Close()

	var machines []models.Machine
	for rows.Next() {
		var m models.Machine
		if err := rows.Scan(
			&m.MachineID,
			&m.MachineName,
			&m.ProductionLine,
			&m.MonitoringEnabled,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate machines: %w", err)
	}

	return machines, nil
}

// GetMachine 根据 machine_id 获取单个机台
func (r *MachineRepository) GetMachine(ctx context.Context, machineID string) (*models.Machine, error) {
	if machineID == "" {
		return nil, fmt.Errorf("machine_id is required")
	}

	query := `
		SELECT
			machine_id,
			machine_name,
			production_line,
			monitoring_enabled,
			created_at,
			updated_at
		FROM machines
		WHERE machine_id = $1
	`

	var m models.Machine
	err := r.db.QueryRowContext(ctx, query, machineID).Scan(
		&m.MachineID,
		&m.MachineName,
		&m.ProductionLine,
		&m.MonitoringEnabled,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get machine %s: %w", machineID, err)
	}

	return &m, nil
}
