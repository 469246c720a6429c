package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// DateLayout 是数据集中日期列统一使用的格式
const DateLayout = "2006-01-02"

// 数据文件中可能出现的日期格式
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns 返回 df 中缺少的列名
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	for _, name := range names {
		if !HasColumn(df, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ParseDate 按常见格式解析日期，只保留年月日(UTC)
func ParseDate(s string) (time.Time, error) {
	str := strings.TrimSpace(s)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, str); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
}

// ParseSheetDate 解析 xlsx 单元格中的日期，除 ParseDate 的格式外还接受 Excel 日期序列号
func ParseSheetDate(s string) (time.Time, error) {
	if t, err := ParseDate(s); err == nil {
		return t, nil
	}
	if days, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && days > 0 && days < 2958466 {
		return excelToTime(days), nil
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
}

// excelToTime 将Excel日期序列号转换为日期
func excelToTime(excelDays float64) time.Time {
	days := int(excelDays)
	// 1900 年闰年错误: 序列号 61 起以 1899-12-30 为基准
	if days >= 61 {
		return time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	}
	return time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// FormatDate 将日期格式化为 DateLayout
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WriteFrameSheet 将DataFrame写入工作簿的指定工作表(不存在时创建)
func WriteFrameSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("创建工作表 %s 失败: %w", sheetName, err)
	}

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, col.Val(rowIdx))
		}
	}

	return nil
}
