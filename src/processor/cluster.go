package processor

import (
	"fmt"

	"BikeDashboard/src/schema"
	"BikeDashboard/src/utils"

	"github.com/go-gota/gota/series"
)

// 一天的四个时段，左闭右开；最后一段同时包含 24 点
var clusterBins = []struct {
	lo, hi int
	label  string
}{
	{0, 6, "Night"},
	{6, 12, "Morning"},
	{12, 18, "Afternoon"},
	{18, 24, "Evening"},
}

// TimeCluster 返回小时所属的时段。hour 不在 [0,24] 时 ok 为 false
func TimeCluster(hour int) (label string, ok bool) {
	last := len(clusterBins) - 1
	for i, b := range clusterBins {
		if hour >= b.lo && (hour < b.hi || (i == last && hour == b.hi)) {
			return b.label, true
		}
	}
	return "", false
}

// ClusterLabels 按一天中的顺序返回全部时段名称
func ClusterLabels() []string {
	labels := make([]string, len(clusterBins))
	for i, b := range clusterBins {
		labels[i] = b.label
	}
	return labels
}

func clusterRank(label string) (int, bool) {
	for i, b := range clusterBins {
		if b.label == label {
			return i, true
		}
	}
	return 0, false
}

// WithTimeCluster 为小时数据追加 time_cluster 列，返回新的 Dataset
func WithTimeCluster(ds Dataset) (Dataset, error) {
	if !utils.HasColumn(ds.Frame, schema.Hour) {
		return Dataset{}, fmt.Errorf("%s 数据集没有 %s 列", ds.Granularity, schema.Hour)
	}
	hours, err := ds.Frame.Col(schema.Hour).Int()
	if err != nil {
		return Dataset{}, fmt.Errorf("%s 数据集 %s 列不可用: %w", ds.Granularity, schema.Hour, err)
	}

	labels := make([]string, len(hours))
	for i, h := range hours {
		label, ok := TimeCluster(h)
		if !ok {
			return Dataset{}, fmt.Errorf("%s 数据集第 %d 行 %s 超出范围: %d", ds.Granularity, i+1, schema.Hour, h)
		}
		labels[i] = label
	}

	out := ds.Frame.Mutate(series.New(labels, series.String, schema.TimeCluster))
	if out.Err != nil {
		return Dataset{}, fmt.Errorf("追加 %s 列失败: %w", schema.TimeCluster, out.Err)
	}
	return Dataset{Granularity: ds.Granularity, Frame: out}, nil
}
