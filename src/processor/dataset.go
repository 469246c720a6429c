package processor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"BikeDashboard/src/datasource/file"
	"BikeDashboard/src/schema"

	"github.com/go-gota/gota/dataframe"
	"github.com/hashicorp/go-multierror"
)

// Granularity 数据集粒度
type Granularity string

const (
	Daily  Granularity = "day"
	Hourly Granularity = "hour"
)

// Dataset 一个归一化后的数据集或其过滤视图。Frame 只读，所有操作都返回新的 Dataset
type Dataset struct {
	Granularity Granularity
	Frame       dataframe.DataFrame
}

// Len 返回行数
func (d Dataset) Len() int { return d.Frame.Nrow() }

// Preview 返回前 n 行记录(含表头)
func (d Dataset) Preview(n int) [][]string {
	if n > d.Len() {
		n = d.Len()
	}
	if n <= 0 {
		return [][]string{d.Frame.Names()}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return d.Frame.Subset(idx).Records()
}

// Snapshot 启动(或热加载)时读入的两份数据集，加载后不再修改
type Snapshot struct {
	Day      Dataset
	Hour     Dataset
	LoadedAt time.Time
}

// Source 描述两份数据文件的位置与字段映射
type Source struct {
	DayPath   string
	HourPath  string
	DayTable  schema.Table
	HourTable schema.Table
	Options   file.Options
}

// LoadSnapshot 读取、归一化并校验两份数据集。任一步失败都返回错误
func LoadSnapshot(src Source) (*Snapshot, error) {
	type result struct {
		ds  Dataset
		err error
	}

	dayChan := make(chan result, 1)
	hourChan := make(chan result, 1)

	load := func(g Granularity, path string, table schema.Table, out chan<- result) {
		ds, err := loadDataset(g, path, table, src.Options)
		out <- result{ds, err}
	}
	go load(Daily, src.DayPath, src.DayTable, dayChan)
	go load(Hourly, src.HourPath, src.HourTable, hourChan)

	day, hour := <-dayChan, <-hourChan

	var errs *multierror.Error
	if day.err != nil {
		errs = multierror.Append(errs, day.err)
	}
	if hour.err != nil {
		errs = multierror.Append(errs, hour.err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Snapshot{Day: day.ds, Hour: hour.ds, LoadedAt: time.Now()}, nil
}

func loadDataset(g Granularity, path string, table schema.Table, opts file.Options) (Dataset, error) {
	raw, err := file.ReadToDataFrame(path, opts)
	if err != nil {
		return Dataset{}, fmt.Errorf("读取 %s 失败: %w", path, err)
	}

	// xlsx 中的日期单元格可能读出为序列号，csv 中的纯数字不是日期
	table.SerialDates = strings.EqualFold(filepath.Ext(path), ".xlsx")
	df, err := schema.Normalize(raw, table)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}

	if err := schema.Validate(df, table); err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}

	return Dataset{Granularity: g, Frame: df}, nil
}

// Store 保存当前快照，热加载时整体替换
type Store struct {
	snap *Snapshot
	mu   sync.RWMutex
}

func NewStore(snap *Snapshot) *Store {
	return &Store{snap: snap}
}

// Get 获取当前快照(线程安全)
func (s *Store) Get() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Set 替换当前快照(线程安全)
func (s *Store) Set(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Reload 重新加载数据；失败时保留原快照
func (s *Store) Reload(src Source) error {
	snap, err := LoadSnapshot(src)
	if err != nil {
		return err
	}
	s.Set(snap)
	return nil
}
