package processor

import (
	"fmt"
	"math"

	"BikeDashboard/src/schema"
	"BikeDashboard/src/utils"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics 过滤后日粒度数据的关键指标
type Metrics struct {
	DailyRows       int      `json:"daily_rows"`
	HourlyRows      int      `json:"hourly_rows"`
	TotalRentals    int      `json:"total_rentals"`
	MeanTemperature *float64 `json:"mean_temperature"` // 没有数据时为 nil
}

// ComputeMetrics 计算 total_rentals 之和与 temperature 平均值
func ComputeMetrics(day, hour Dataset) (Metrics, error) {
	m := Metrics{DailyRows: day.Len(), HourlyRows: hour.Len()}
	if day.Len() == 0 {
		return m, nil
	}
	if missing := utils.MissingColumns(day.Frame, schema.TotalRentals, schema.Temperature); len(missing) > 0 {
		return m, fmt.Errorf("%s 数据集缺少列: %v", day.Granularity, missing)
	}

	m.TotalRentals = int(floats.Sum(day.Frame.Col(schema.TotalRentals).Float()))
	mean := stat.Mean(day.Frame.Col(schema.Temperature).Float(), nil)
	m.MeanTemperature = &mean
	return m, nil
}

// Point 散点图上的一个点
type Point struct {
	Temperature  float64 `json:"temperature"`
	TotalRentals float64 `json:"total_rentals"`
}

// TemperaturePoints 返回每行的 (temperature, total_rentals)
func TemperaturePoints(ds Dataset) ([]Point, error) {
	points := []Point{}
	if ds.Len() == 0 {
		return points, nil
	}
	if missing := utils.MissingColumns(ds.Frame, schema.TotalRentals, schema.Temperature); len(missing) > 0 {
		return nil, fmt.Errorf("%s 数据集缺少列: %v", ds.Granularity, missing)
	}

	temps := ds.Frame.Col(schema.Temperature).Float()
	totals := ds.Frame.Col(schema.TotalRentals).Float()
	for i := range temps {
		points = append(points, Point{Temperature: temps[i], TotalRentals: totals[i]})
	}
	return points, nil
}

// Correlation 皮尔逊相关系数；点数少于 2 或方差为 0 时返回 nil
func Correlation(points []Point) *float64 {
	if len(points) < 2 {
		return nil
	}
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i], y[i] = p.Temperature, p.TotalRentals
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}
