package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

// ShiftReportHeader 班次报告表头
var ShiftReportHeader = []string{
	"Machine ID",
	"Sample Time",
	"Risk Score",
	"Status",
	"Root Cause",
	"Drift Velocity",
	"Confidence",
	"Verdict ID",
}

// GenerateShiftReport 生成班次风险报告 Excel 文件
// verdicts: 裁决列表，为空时只生成表头
func GenerateShiftReport(verdicts []models.RiskVerdict, shiftStart, shiftEnd time.Time) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Shift Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 报告抬头：班次时间范围
	if err := f.SetCellValue(sheetName, "A1", fmt.Sprintf("Shift %s — %s",
		shiftStart.Format("2006-01-02 15:04"), shiftEnd.Format("2006-01-02 15:04"))); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set title cell: %w", err)
	}

	// 写入表头（第2行）
	for col, header := range ShiftReportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{15, 22, 12, 20, 18, 14, 12, 38}
	for i := range ShiftReportHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据（第3行开始）
	for rowIdx, v := range verdicts {
		row := rowIdx + 3
		values := []interface{}{
			v.MachineID,
			v.Timestamp.Format("2006-01-02 15:04:05"),
			v.RiskScore,
			string(v.Status),
			string(v.RootCause),
			v.DriftVelocity,
			v.Confidence,
			v.VerdictID,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel: %w", err)
	}

	return buf.Bytes(), nil
}
