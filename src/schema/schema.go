// Package schema 负责把原始数据集的短列名映射为语义列名，并完成类型转换与校验。
package schema

import (
	"fmt"
	"sort"
)

// 语义列名
const (
	InstanceID         = "instance_id"
	Date               = "date"
	Year               = "year"
	Month              = "month"
	Hour               = "hour"
	Holiday            = "holiday"
	DayOfWeek          = "day_of_week"
	WorkingDay         = "working_day"
	Weather            = "weather_condition"
	Temperature        = "temperature"
	FeelingTemperature = "feeling_temperature"
	Humidity           = "humidity"
	WindSpeed          = "wind_speed"
	CasualRiders       = "casual_riders"
	RegisteredRiders   = "registered_riders"
	TotalRentals       = "total_rentals"

	// TimeCluster 是过滤后的小时数据上追加的派生列
	TimeCluster = "time_cluster"
)

// Kind 描述列归一化后的类型
type Kind int

const (
	Int Kind = iota
	Float
	Bool
	DateKind
	Text
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case DateKind:
		return "date"
	default:
		return "text"
	}
}

// Column 一条重命名规则: 原始列名 Source -> 语义列名 Name
type Column struct {
	Source string
	Name   string
	Kind   Kind
}

// Table 一个数据集的完整重命名表
type Table struct {
	Granularity string
	Columns     []Column
	SerialDates bool // 日期列允许 Excel 序列号(xlsx 数据源)
}

// DayTable 日粒度数据集的重命名表
func DayTable() Table {
	return Table{
		Granularity: "day",
		Columns: []Column{
			{"instant", InstanceID, Int},
			{"dteday", Date, DateKind},
			{"yr", Year, Int},
			{"mnth", Month, Int},
			{"holiday", Holiday, Bool},
			{"weekday", DayOfWeek, Int},
			{"workingday", WorkingDay, Bool},
			{"weathersit", Weather, Text},
			{"temp", Temperature, Float},
			{"atemp", FeelingTemperature, Float},
			{"hum", Humidity, Float},
			{"windspeed", WindSpeed, Float},
			{"casual", CasualRiders, Int},
			{"registered", RegisteredRiders, Int},
			{"cnt", TotalRentals, Int},
		},
	}
}

// HourTable 小时粒度数据集的重命名表，比日粒度多一列 hr -> hour
func HourTable() Table {
	day := DayTable()
	cols := make([]Column, 0, len(day.Columns)+1)
	for _, c := range day.Columns {
		cols = append(cols, c)
		if c.Name == Month {
			cols = append(cols, Column{"hr", Hour, Int})
		}
	}
	return Table{Granularity: "hour", Columns: cols}
}

// Override 按配置(原始列名 -> 语义列名)替换原始列名，返回新的表
func (t Table) Override(renames map[string]string) (Table, error) {
	out := t
	out.Columns = append([]Column(nil), t.Columns...)

	// 排序保证报错信息稳定
	sources := make([]string, 0, len(renames))
	for src := range renames {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		name := renames[src]
		idx := out.index(name)
		if idx < 0 {
			return Table{}, fmt.Errorf("%s 数据集没有语义列 %q (原始列 %q)", t.Granularity, name, src)
		}
		out.Columns[idx].Source = src
	}
	return out, nil
}

// Sources 返回所有必需的原始列名
func (t Table) Sources() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Source
	}
	return names
}

// Names 返回所有语义列名
func (t Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Has 判断表中是否定义了语义列 name
func (t Table) Has(name string) bool {
	return t.index(name) >= 0
}

func (t Table) index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t Table) bySource() map[string]Column {
	m := make(map[string]Column, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Source] = c
	}
	return m
}
