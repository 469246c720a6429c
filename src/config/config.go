package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Data struct {
		Dir       string `json:"dir"`        // 数据文件所在目录
		DayFile   string `json:"day_file"`   // 日粒度数据文件名(.csv/.xlsx)
		HourFile  string `json:"hour_file"`  // 小时粒度数据文件名(.csv/.xlsx)
		SheetName string `json:"sheet_name"` // xlsx 工作表名，为空时取第一个
		Encoding  string `json:"encoding"`   // 文件编码，例如 utf-8、gbk
		Watch     bool   `json:"watch"`      // 数据文件变化时是否热加载
	} `json:"data"`

	Server struct {
		Addr      string  `json:"addr"`       // 监听地址
		RateLimit float64 `json:"rate_limit"` // 每秒允许的请求数，负数表示不限流
		Burst     int     `json:"burst"`      // 令牌桶容量
	} `json:"server"`

	Export struct {
		Dir      string `json:"dir"`      // 定时导出目录
		Schedule string `json:"schedule"` // cron 表达式，为空则不导出
	} `json:"export"`

	LogName     string   `json:"log_name"`
	LogMaxSize  string   `json:"log_max_size"` // 例如 "10 * 1024 * 1024"
	LogLevel    string   `json:"log_level"`
	RotateCheck Duration `json:"rotate_check"` // 日志轮转检查间隔
}

// DataConfig 描述数据集字段映射(原始列名 -> 语义列名)以及天气编码的展示名称
type DataConfig struct {
	Day           map[string]string `json:"day"`
	Hour          map[string]string `json:"hour"`
	WeatherLabels map[string]string `json:"weather_labels"`
}

// 环境变量覆盖项
const (
	EnvDataDir    = "BIKE_DATA_DIR"
	EnvServerAddr = "BIKE_SERVER_ADDR"
	EnvLogLevel   = "BIKE_LOG_LEVEL"
	EnvExportDir  = "BIKE_EXPORT_DIR"
)

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
)

// LoadConfig 只加载一次配置，后续调用返回同一份结果
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	// .env 文件可选，不存在时直接使用进程环境变量
	_ = godotenv.Load(filepath.Join(jsonFolder, ".env"))

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg  *Config
		dcfg *DataConfig
		errs *multierror.Error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, nil, fmt.Errorf("配置加载失败: %w", err)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

// applyDefaults 为未设置的字段填充默认值
func (c *Config) applyDefaults() {
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.DayFile == "" {
		c.Data.DayFile = "final_day.csv"
	}
	if c.Data.HourFile == "" {
		c.Data.HourFile = "final_hour.csv"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	// 未配置时默认限流，显式配置为负数时关闭限流
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 20
	}
	if c.Server.Burst <= 0 {
		c.Server.Burst = 40
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.RotateCheck <= 0 {
		c.RotateCheck = Duration(time.Minute)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvExportDir); v != "" {
		c.Export.Dir = v
	}
}

// DayPath 返回日粒度数据文件的完整路径
func (c *Config) DayPath() string { return filepath.Join(c.Data.Dir, c.Data.DayFile) }

// HourPath 返回小时粒度数据文件的完整路径
func (c *Config) HourPath() string { return filepath.Join(c.Data.Dir, c.Data.HourFile) }

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// GetWeatherLabel 返回天气代码的展示名称，未配置时返回代码本身。
// 配置加载后只读，可并发调用
func (dc *DataConfig) GetWeatherLabel(code string) string {
	if label, ok := dc.WeatherLabels[code]; ok {
		return label
	}
	return code
}
