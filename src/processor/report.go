package processor

import (
	"fmt"
	"time"

	"BikeDashboard/src/schema"
)

// PreviewRows 过滤结果预览的行数
const PreviewRows = 5

// View 同一问题在日、小时两个粒度上的聚合结果
type View struct {
	Daily  *Aggregation `json:"daily"`
	Hourly *Aggregation `json:"hourly"`
}

// TemperatureView 温度与租借量的散点以及相关系数
type TemperatureView struct {
	Daily             []Point  `json:"daily"`
	Hourly            []Point  `json:"hourly"`
	DailyCorrelation  *float64 `json:"daily_correlation"`
	HourlyCorrelation *float64 `json:"hourly_correlation"`
}

// PivotView 双键聚合及其二维表
type PivotView struct {
	Aggregation *Aggregation `json:"aggregation"`
	Table       PivotTable   `json:"table"`
}

// Report 一次过滤后交给展示层的全部结果
type Report struct {
	Selection     Selection  `json:"selection"`
	Metrics       Metrics    `json:"metrics"`
	DailyPreview  [][]string `json:"daily_preview"`
	HourlyPreview [][]string `json:"hourly_preview"`

	WeatherEffect      View            `json:"weather_effect"`        // 问题1: 天气对租借量的影响
	Temperature        TemperatureView `json:"temperature"`           // 问题2: 温度与租借量
	Weekday            View            `json:"weekday"`               // 问题3: 一周各天的租借量
	HourlyByWorkingDay PivotView       `json:"hourly_by_working_day"` // 问题4: 工作日与非工作日的小时分布
	WeekdayTimeCluster PivotView       `json:"weekday_time_cluster"`  // 问题5: 星期 x 时段

	GeneratedAt time.Time `json:"generated_at"`
}

// BuildReport 对快照执行 过滤 -> 指标 -> 聚合 -> 分段 的完整计算
func BuildReport(snap *Snapshot, sel Selection) (*Report, error) {
	if snap == nil {
		return nil, fmt.Errorf("数据尚未加载")
	}

	day := FilterRange(snap.Day, sel)
	hour := FilterRange(snap.Hour, sel)
	if day.Frame.Err != nil {
		return nil, fmt.Errorf("过滤日粒度数据失败: %w", day.Frame.Err)
	}
	if hour.Frame.Err != nil {
		return nil, fmt.Errorf("过滤小时粒度数据失败: %w", hour.Frame.Err)
	}

	r := &Report{
		Selection:     sel,
		DailyPreview:  day.Preview(PreviewRows),
		HourlyPreview: hour.Preview(PreviewRows),
		GeneratedAt:   time.Now(),
	}

	var err error
	if r.Metrics, err = ComputeMetrics(day, hour); err != nil {
		return nil, err
	}

	if r.WeatherEffect, err = bothGranularities(day, hour, schema.Weather); err != nil {
		return nil, err
	}

	if r.Temperature.Daily, err = TemperaturePoints(day); err != nil {
		return nil, err
	}
	if r.Temperature.Hourly, err = TemperaturePoints(hour); err != nil {
		return nil, err
	}
	r.Temperature.DailyCorrelation = Correlation(r.Temperature.Daily)
	r.Temperature.HourlyCorrelation = Correlation(r.Temperature.Hourly)

	if r.Weekday, err = bothGranularities(day, hour, schema.DayOfWeek); err != nil {
		return nil, err
	}

	if r.HourlyByWorkingDay, err = pivot(hour, schema.Hour, schema.WorkingDay); err != nil {
		return nil, err
	}

	clustered, err := WithTimeCluster(hour)
	if err != nil {
		return nil, err
	}
	if r.WeekdayTimeCluster, err = pivot(clustered, schema.DayOfWeek, schema.TimeCluster); err != nil {
		return nil, err
	}

	return r, nil
}

func bothGranularities(day, hour Dataset, key string) (View, error) {
	d, err := Aggregate(day, schema.TotalRentals, key)
	if err != nil {
		return View{}, err
	}
	h, err := Aggregate(hour, schema.TotalRentals, key)
	if err != nil {
		return View{}, err
	}
	return View{Daily: d, Hourly: h}, nil
}

func pivot(ds Dataset, rowKey, colKey string) (PivotView, error) {
	agg, err := Aggregate(ds, schema.TotalRentals, rowKey, colKey)
	if err != nil {
		return PivotView{}, err
	}
	return PivotView{Aggregation: agg, Table: agg.Table()}, nil
}
