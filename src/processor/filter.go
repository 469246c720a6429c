package processor

import (
	"encoding/json"
	"sort"
	"time"

	"BikeDashboard/src/schema"
	"BikeDashboard/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Selection 用户在界面上选择的日期区间(含两端)与天气编码
type Selection struct {
	From    time.Time
	To      time.Time
	Weather []string
}

// IsEmpty 判断选择是否必然得到空结果
func (s Selection) IsEmpty() bool {
	return len(s.Weather) == 0 || s.From.After(s.To)
}

func (s Selection) MarshalJSON() ([]byte, error) {
	weather := s.Weather
	if weather == nil {
		weather = []string{}
	}
	return json.Marshal(struct {
		From    string   `json:"from"`
		To      string   `json:"to"`
		Weather []string `json:"weather"`
	}{utils.FormatDate(s.From), utils.FormatDate(s.To), weather})
}

// FilterRange 保留 From <= date <= To 且天气编码在 Weather 中的行。
// 不修改 ds；天气编码为空或区间颠倒时返回空视图
func FilterRange(ds Dataset, sel Selection) Dataset {
	if sel.IsEmpty() {
		return emptyView(ds)
	}

	// 日期列已统一为 YYYY-MM-DD，字符串比较与日期比较一致
	filtered := ds.Frame.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: schema.Date, Comparator: series.GreaterEq, Comparando: utils.FormatDate(sel.From)},
		dataframe.F{Colname: schema.Date, Comparator: series.LessEq, Comparando: utils.FormatDate(sel.To)},
		dataframe.F{Colname: schema.Weather, Comparator: series.In, Comparando: sel.Weather},
	)
	return Dataset{Granularity: ds.Granularity, Frame: filtered}
}

func emptyView(ds Dataset) Dataset {
	empty := ds.Frame.Filter(
		dataframe.F{
			Colname:    schema.Date,
			Comparator: series.CompFunc,
			Comparando: func(series.Element) bool { return false },
		},
	)
	return Dataset{Granularity: ds.Granularity, Frame: empty}
}

// Bounds 日期选择器的范围与天气多选框的候选值，取自日粒度数据
type Bounds struct {
	From    time.Time
	To      time.Time
	Weather []string
}

// DataBounds 计算数据集的最小/最大日期以及全部天气编码。空数据集返回 ok=false
func DataBounds(ds Dataset) (Bounds, bool) {
	if ds.Len() == 0 {
		return Bounds{}, false
	}

	dates := ds.Frame.Col(schema.Date).Records()
	minDate, maxDate := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d < minDate {
			minDate = d
		}
		if d > maxDate {
			maxDate = d
		}
	}

	seen := make(map[string]bool)
	var codes []string
	for _, code := range ds.Frame.Col(schema.Weather).Records() {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return compareValues(codes[i], codes[j]) < 0 })

	from, _ := utils.ParseDate(minDate)
	to, _ := utils.ParseDate(maxDate)
	return Bounds{From: from, To: to, Weather: codes}, true
}

// DefaultSelection 全部日期与全部天气编码
func (b Bounds) DefaultSelection() Selection {
	return Selection{From: b.From, To: b.To, Weather: append([]string(nil), b.Weather...)}
}
