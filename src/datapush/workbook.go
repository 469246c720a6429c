// Package datapush 把分析报告导出为 Excel 工作簿，供下载或定时归档
package datapush

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"BikeDashboard/src/processor"
	"BikeDashboard/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// 工作表名称
const (
	SheetMetrics        = "关键指标"
	SheetDailyPreview   = "日数据预览"
	SheetHourlyPreview  = "小时数据预览"
	SheetWeatherDaily   = "天气_日"
	SheetWeatherHourly  = "天气_小时"
	SheetTemperature    = "温度"
	SheetWeekdayDaily   = "星期_日"
	SheetWeekdayHourly  = "星期_小时"
	SheetHourWorkingDay = "小时_工作日"
	SheetWeekdayCluster = "星期_时段"

	defaultSheet = "Sheet1"
)

const (
	RetryTimes     = 3
	RetryInterval  = time.Second
	fileTimeLayout = "20060102_150405"
)

// BuildWorkbook 每个视图一张工作表
func BuildWorkbook(r *processor.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, SheetMetrics); err != nil {
		f.Close()
		return nil, fmt.Errorf("重命名工作表失败: %w", err)
	}

	steps := []func() error{
		func() error { return writeMetrics(f, r.Metrics) },
		func() error { return writeRecords(f, SheetDailyPreview, r.DailyPreview) },
		func() error { return writeRecords(f, SheetHourlyPreview, r.HourlyPreview) },
		func() error { return writeAggregation(f, SheetWeatherDaily, r.WeatherEffect.Daily) },
		func() error { return writeAggregation(f, SheetWeatherHourly, r.WeatherEffect.Hourly) },
		func() error { return writeTemperature(f, r.Temperature) },
		func() error { return writeAggregation(f, SheetWeekdayDaily, r.Weekday.Daily) },
		func() error { return writeAggregation(f, SheetWeekdayHourly, r.Weekday.Hourly) },
		func() error { return writePivot(f, SheetHourWorkingDay, r.HourlyByWorkingDay.Table) },
		func() error { return writePivot(f, SheetWeekdayCluster, r.WeekdayTimeCluster.Table) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteReport 将报告工作簿写入 w
func WriteReport(w io.Writer, r *processor.Report) error {
	f, err := BuildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("写入工作簿失败: %w", err)
	}
	return nil
}

// SaveReport 将报告工作簿保存到 path
func SaveReport(r *processor.Report, path string) error {
	f, err := BuildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存工作簿 %s 失败: %w", path, err)
	}
	return nil
}

// ExportToDir 在 dir 下按时间生成文件名保存报告，失败时重试
// 参数:
//
//	r: 分析报告
//	dir: 导出目录(不存在时创建)
//	now: 用于生成文件名的时间
//
// 返回值:
//
//	导出文件的路径
func ExportToDir(r *processor.Report, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建导出目录失败: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("bike_report_%s.xlsx", now.Format(fileTimeLayout)))

	var err error
	for i := 0; i < RetryTimes; i++ {
		if err = SaveReport(r, path); err == nil {
			return path, nil
		}
		if i < RetryTimes-1 {
			time.Sleep(RetryInterval)
		}
	}
	return "", fmt.Errorf("导出报告失败(已重试 %d 次): %w", RetryTimes, err)
}

func writeMetrics(f *excelize.File, m processor.Metrics) error {
	rows := [][]interface{}{
		{"指标", "值"},
		{"总租借量", m.TotalRentals},
		{"平均温度", nil},
		{"日数据行数", m.DailyRows},
		{"小时数据行数", m.HourlyRows},
	}
	if m.MeanTemperature != nil {
		rows[2][1] = *m.MeanTemperature
	}
	return writeRows(f, SheetMetrics, rows)
}

// writeRecords 预览记录第一行是表头
func writeRecords(f *excelize.File, sheet string, records [][]string) error {
	if len(records) > 1 {
		df := dataframe.LoadRecords(records, dataframe.DetectTypes(true))
		if df.Err != nil {
			return fmt.Errorf("转换 %s 失败: %w", sheet, df.Err)
		}
		return utils.WriteFrameSheet(f, sheet, df)
	}

	rows := make([][]interface{}, 0, 1)
	for _, record := range records {
		row := make([]interface{}, len(record))
		for i, v := range record {
			row[i] = v
		}
		rows = append(rows, row)
	}
	return writeRows(f, sheet, rows)
}

func writeAggregation(f *excelize.File, sheet string, agg *processor.Aggregation) error {
	rows := agg.Rows()
	first := make([]string, len(rows))
	second := make([]string, len(rows))
	means := make([]float64, len(rows))
	counts := make([]int, len(rows))
	for i, r := range rows {
		first[i], second[i], means[i], counts[i] = r.First, r.Second, r.Mean, r.Count
	}

	cols := []series.Series{series.New(first, series.String, agg.By[0])}
	if len(agg.By) == 2 {
		cols = append(cols, series.New(second, series.String, agg.By[1]))
	}
	cols = append(cols,
		series.New(means, series.Float, "mean_"+agg.Measure),
		series.New(counts, series.Int, "rows"),
	)

	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("转换 %s 失败: %w", sheet, df.Err)
	}
	return utils.WriteFrameSheet(f, sheet, df)
}

func writeTemperature(f *excelize.File, t processor.TemperatureView) error {
	rows := [][]interface{}{{"粒度", "temperature", "total_rentals"}}
	for _, p := range t.Daily {
		rows = append(rows, []interface{}{"day", p.Temperature, p.TotalRentals})
	}
	for _, p := range t.Hourly {
		rows = append(rows, []interface{}{"hour", p.Temperature, p.TotalRentals})
	}
	if err := writeRows(f, SheetTemperature, rows); err != nil {
		return err
	}

	// 相关系数写在右侧
	summary := [][]interface{}{
		{"粒度", "相关系数"},
		{"day", correlationValue(t.DailyCorrelation)},
		{"hour", correlationValue(t.HourlyCorrelation)},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(5, i+1)
		if err := f.SetSheetRow(SheetTemperature, cell, &row); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", SheetTemperature, err)
		}
	}
	return nil
}

func correlationValue(r *float64) interface{} {
	if r == nil {
		return nil
	}
	return *r
}

// writePivot 缺失的组合留空
func writePivot(f *excelize.File, sheet string, p processor.PivotTable) error {
	header := []interface{}{p.RowKey}
	for _, c := range p.Columns {
		header = append(header, c)
	}
	rows := [][]interface{}{header}
	for i, key := range p.Rows {
		row := []interface{}{key}
		for _, cell := range p.Cells[i] {
			if cell == nil {
				row = append(row, nil)
				continue
			}
			row = append(row, *cell)
		}
		rows = append(rows, row)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("创建工作表 %s 失败: %w", sheet, err)
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", sheet, err)
		}
	}
	return nil
}
