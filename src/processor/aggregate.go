package processor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"BikeDashboard/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// GroupKey 分组键的取值(文本形式)。单键分组时 Second 为空
type GroupKey struct {
	First  string
	Second string
}

// Aggregation 每组 Measure 的平均值。没有行的组不会出现在 Means 中
type Aggregation struct {
	By      []string
	Measure string
	Means   map[GroupKey]float64
	Counts  map[GroupKey]int
}

// AggregateRow 一组的结果
type AggregateRow struct {
	First  string  `json:"first"`
	Second string  `json:"second,omitempty"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
}

// Aggregate 按 by(一到两列)分组计算 measure 的算术平均值
func Aggregate(ds Dataset, measure string, by ...string) (*Aggregation, error) {
	if len(by) < 1 || len(by) > 2 {
		return nil, fmt.Errorf("分组列数必须为 1 或 2，实际为 %d", len(by))
	}
	cols := append(append([]string(nil), by...), measure)
	if missing := utils.MissingColumns(ds.Frame, cols...); len(missing) > 0 {
		return nil, fmt.Errorf("%s 数据集缺少列: %s", ds.Granularity, strings.Join(missing, ", "))
	}

	agg := &Aggregation{
		By:      append([]string(nil), by...),
		Measure: measure,
		Means:   make(map[GroupKey]float64),
		Counts:  make(map[GroupKey]int),
	}
	if ds.Len() == 0 {
		return agg, nil
	}

	groups := groupingFrame(ds.Frame, measure, by).GroupBy(groupKeyColumn)
	if groups.Err != nil {
		return nil, fmt.Errorf("%s 数据集分组失败: %w", ds.Granularity, groups.Err)
	}

	for _, group := range groups.GetGroups() {
		if group.Nrow() == 0 {
			continue
		}
		parts := strings.SplitN(group.Col(groupKeyColumn).Elem(0).String(), keySeparator, 2)
		key := GroupKey{First: parts[0], Second: parts[1]}
		agg.Means[key] = stat.Mean(group.Col(measure).Float(), nil)
		agg.Counts[key] = group.Nrow()
	}
	return agg, nil
}

const (
	groupKeyColumn = "\x00group_key"
	// gota 用 "_" 拼接多列分组键，取值本身含 "_" 时会串组，因此自行拼成单列
	keySeparator = "\x00"
)

// groupingFrame 只保留合成的分组键列与度量列(浮点)
func groupingFrame(df dataframe.DataFrame, measure string, by []string) dataframe.DataFrame {
	first := df.Col(by[0]).Records()
	second := make([]string, len(first))
	if len(by) == 2 {
		second = df.Col(by[1]).Records()
	}
	keys := make([]string, len(first))
	for i := range first {
		keys[i] = first[i] + keySeparator + second[i]
	}
	return dataframe.New(
		series.New(keys, series.String, groupKeyColumn),
		series.New(df.Col(measure).Float(), series.Float, measure),
	)
}

// Len 返回组数
func (a *Aggregation) Len() int { return len(a.Means) }

// Mean 返回某组的平均值
func (a *Aggregation) Mean(first string, second ...string) (float64, bool) {
	key := GroupKey{First: first}
	if len(second) > 0 {
		key.Second = second[0]
	}
	v, ok := a.Means[key]
	return v, ok
}

// Keys 按确定的顺序返回所有分组键
func (a *Aggregation) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(a.Means))
	for k := range a.Means {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := compareValues(keys[i].First, keys[j].First); c != 0 {
			return c < 0
		}
		return compareValues(keys[i].Second, keys[j].Second) < 0
	})
	return keys
}

// Rows 按 Keys 的顺序返回全部分组结果
func (a *Aggregation) Rows() []AggregateRow {
	keys := a.Keys()
	rows := make([]AggregateRow, len(keys))
	for i, k := range keys {
		rows[i] = AggregateRow{First: k.First, Second: k.Second, Mean: a.Means[k], Count: a.Counts[k]}
	}
	return rows
}

func (a *Aggregation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		By      []string       `json:"by"`
		Measure string         `json:"measure"`
		Rows    []AggregateRow `json:"rows"`
	}{a.By, a.Measure, a.Rows()})
}

// PivotTable 双键分组的二维视图: 行为第一键取值，列为第二键取值，缺失组合为 nil
type PivotTable struct {
	RowKey    string       `json:"row_key"`
	ColumnKey string       `json:"column_key"`
	Rows      []string     `json:"rows"`
	Columns   []string     `json:"columns"`
	Cells     [][]*float64 `json:"cells"`
}

// Table 将聚合结果转为二维表。单键分组时只有一列，列名为 Measure
func (a *Aggregation) Table() PivotTable {
	t := PivotTable{RowKey: a.By[0], Rows: []string{}, Columns: []string{}, Cells: [][]*float64{}}
	if len(a.By) == 2 {
		t.ColumnKey = a.By[1]
	}

	rowIdx := map[string]int{}
	colIdx := map[string]int{}
	for _, k := range a.Keys() {
		if _, ok := rowIdx[k.First]; !ok {
			rowIdx[k.First] = len(t.Rows)
			t.Rows = append(t.Rows, k.First)
		}
		col := k.Second
		if len(a.By) == 1 {
			col = a.Measure
		}
		if _, ok := colIdx[col]; !ok {
			colIdx[col] = -1
			t.Columns = append(t.Columns, col)
		}
	}
	sort.Slice(t.Columns, func(i, j int) bool { return compareValues(t.Columns[i], t.Columns[j]) < 0 })
	for i, c := range t.Columns {
		colIdx[c] = i
	}

	for range t.Rows {
		t.Cells = append(t.Cells, make([]*float64, len(t.Columns)))
	}
	for k, v := range a.Means {
		col := k.Second
		if len(a.By) == 1 {
			col = a.Measure
		}
		mean := v
		t.Cells[rowIdx[k.First]][colIdx[col]] = &mean
	}
	return t
}

// compareValues 比较两个分组取值: 数值按大小，时段按一天中的顺序，布尔值 false 在前，其余按字典序
func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	ra, okA := clusterRank(a)
	rb, okB := clusterRank(b)
	if okA && okB {
		return ra - rb
	}

	ba, errA := strconv.ParseBool(a)
	bb, errB := strconv.ParseBool(b)
	if errA == nil && errB == nil {
		switch {
		case !ba && bb:
			return -1
		case ba && !bb:
			return 1
		}
		return 0
	}

	return strings.Compare(a, b)
}
