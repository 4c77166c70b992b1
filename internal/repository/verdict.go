package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// VerdictRepository 风险裁决仓库
type VerdictRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVerdictRepository 创建风险裁决仓库
func NewVerdictRepository(db *sql.DB, logger *zap.Logger) *VerdictRepository {
	return &VerdictRepository{
		db:     db,
		logger: logger,
	}
}

// VerdictFilters 裁决查询过滤条件
type VerdictFilters struct {
	MachineID *string    // 机台ID
	Status    *string    // 状态（OPTIMAL/WARNING/CRITICAL_FAILURE/STANDBY）
	Statuses  []string   // 状态列表（IN 查询）
	RootCause *string    // 根因
	StartTime *time.Time // 开始时间（sample_timestamp >= StartTime）
	EndTime   *time.Time // 结束时间（sample_timestamp <= EndTime）
	Limit     int        // 返回条数上限，0 表示默认 100
}

// CreateVerdict 保存一条风险裁决（意见列表存 JSONB）
func (r *VerdictRepository) CreateVerdict(ctx context.Context, verdict *models.RiskVerdict) error {
	if verdict.VerdictID == "" {
		return fmt.Errorf("verdict_id is required")
	}
	if verdict.MachineID == "" {
		return fmt.Errorf("machine_id is required")
	}

	opinionsJSON, err := json.Marshal(verdict.Opinions)
	if err != nil {
		return fmt.Errorf("failed to marshal opinions: %w", err)
	}

	query := `
		INSERT INTO risk_verdicts (
			verdict_id,
			machine_id,
			risk_score,
			status,
			root_cause,
			opinions,
			drift_velocity,
			confidence,
			sample_timestamp,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		verdict.VerdictID,
		verdict.MachineID,
		verdict.RiskScore,
		string(verdict.Status),
		string(verdict.RootCause),
		opinionsJSON,
		verdict.DriftVelocity,
		verdict.Confidence,
		verdict.Timestamp,
		verdict.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}

	return nil
}

// GetVerdict 根据 verdict_id 获取单条裁决
func (r *VerdictRepository) GetVerdict(ctx context.Context, verdictID string) (*models.RiskVerdict, error) {
	if verdictID == "" {
		return nil, fmt.Errorf("verdict_id is required")
	}

	query := verdictSelectColumns + `
		FROM risk_verdicts
		WHERE verdict_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, verdictID)
	verdict, err := scanVerdict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verdict %s: %w", verdictID, err)
	}

	return verdict, nil
}

// GetLatestVerdict 获取某机台最近一条裁决
func (r *VerdictRepository) GetLatestVerdict(ctx context.Context, machineID string) (*models.RiskVerdict, error) {
	if machineID == "" {
		return nil, fmt.Errorf("machine_id is required")
	}

	query := verdictSelectColumns + `
		FROM risk_verdicts
		WHERE machine_id = $1
		ORDER BY sample_timestamp DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, machineID)
	verdict, err := scanVerdict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest verdict for %s: %w", machineID, err)
	}

	return verdict, nil
}

// ListVerdicts 按过滤条件查询裁决列表（倒序，最近的在前）
func (r *VerdictRepository) ListVerdicts(ctx context.Context, filters VerdictFilters) ([]models.RiskVerdict, error) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	addCondition := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filters.MachineID != nil {
		addCondition("machine_id = $%d", *filters.MachineID)
	}
	if filters.Status != nil {
		addCondition("status = $%d", *filters.Status)
	}
	if len(filters.Statuses) > 0 {
		placeholders := make([]string, len(filters.Statuses))
		for i, s := range filters.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args = append(args, s)
			argIdx++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filters.RootCause != nil {
		addCondition("root_cause = $%d", *filters.RootCause)
	}
	if filters.StartTime != nil {
		addCondition("sample_timestamp >= $%d", *filters.StartTime)
	}
	if filters.EndTime != nil {
		addCondition("sample_timestamp <= $%d", *filters.EndTime)
	}

	query := verdictSelectColumns + `
		FROM risk_verdicts
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY sample_timestamp DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []models.RiskVerdict
	for rows.Next() {
		verdict, err := scanVerdict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		verdicts = append(verdicts, *verdict)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verdicts: %w", err)
	}

	return verdicts, nil
}

const verdictSelectColumns = `
		SELECT
			verdict_id,
			machine_id,
			risk_score,
			status,
			root_cause,
			opinions,
			drift_velocity,
			confidence,
			sample_timestamp,
			created_at
`

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVerdict(row rowScanner) (*models.RiskVerdict, error) {
	var verdict models.RiskVerdict
	var status, rootCause string
	var opinionsJSON []byte

	err := row.Scan(
		&verdict.VerdictID,
		&verdict.MachineID,
		&verdict.RiskScore,
		&status,
		&rootCause,
		&opinionsJSON,
		&verdict.DriftVelocity,
		&verdict.Confidence,
		&verdict.Timestamp,
		&verdict.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	verdict.Status = models.Status(status)
	verdict.RootCause = models.RootCause(rootCause)
	if len(opinionsJSON) > 0 {
		if err := json.Unmarshal(opinionsJSON, &verdict.Opinions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal opinions: %w", err)
		}
	}

	return &verdict, nil
}
