package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BikeDashboard/src/config"
	"BikeDashboard/src/datapush"
	"BikeDashboard/src/datasource/file"
	"BikeDashboard/src/processor"
	"BikeDashboard/src/render"
	"BikeDashboard/src/schema"
	"BikeDashboard/src/storage"
	"BikeDashboard/src/web"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := flag.String("config", "./config", "配置文件目录")
	report := flag.Bool("report", false, "输出一次控制台报告后退出")
	from := flag.String("from", "", "起始日期 YYYY-MM-DD，缺省为数据最早日期")
	to := flag.String("to", "", "结束日期 YYYY-MM-DD，缺省为数据最晚日期")
	weather := flag.String("weather", "", "天气代码，逗号分隔，缺省为全部")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*jsonFolder, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	logger.SetLevel(storage.ParseLevel(cfg.LogLevel))

	src, err := newSource(cfg, dcfg)
	if err != nil {
		fatal(logger, "字段映射配置错误: "+err.Error())
	}

	t1 := time.Now()
	snap, err := processor.LoadSnapshot(src)
	if err != nil {
		fatal(logger, "加载数据失败: "+err.Error())
	}
	logger.Info(fmt.Sprintf("数据加载完成: 日数据 %d 行，小时数据 %d 行，耗时 %v",
		snap.Day.Len(), snap.Hour.Len(), time.Since(t1)))
	store := processor.NewStore(snap)

	if *report {
		weatherSet := false
		flag.Visit(func(f *flag.Flag) { weatherSet = weatherSet || f.Name == "weather" })
		err := printReport(os.Stdout, store, selectionQuery(*from, *to, *weather, weatherSet), dcfg.GetWeatherLabel)
		logger.Close()
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置定时任务
	c := cron.New()
	if err := scheduleJobs(c, cfg, store, logger); err != nil {
		fatal(logger, "创建定时任务失败: "+err.Error())
	}
	c.Start()
	defer c.Stop()

	if cfg.Data.Watch {
		go watchData(ctx, cfg, src, store, logger)
	}

	server := web.NewServer(store, logger, web.Options{
		Addr:      cfg.Server.Addr,
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
		Labels:    dcfg.GetWeatherLabel,
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP服务异常退出: " + err.Error())
			cancel()
		}
	}()

	waitForShutdown(ctx, server, logger)
}

// newSource 按数据配置覆盖默认字段映射
func newSource(cfg *config.Config, dcfg *config.DataConfig) (processor.Source, error) {
	day, err := schema.DayTable().Override(dcfg.Day)
	if err != nil {
		return processor.Source{}, err
	}
	hour, err := schema.HourTable().Override(dcfg.Hour)
	if err != nil {
		return processor.Source{}, err
	}
	return processor.Source{
		DayPath:   cfg.DayPath(),
		HourPath:  cfg.HourPath(),
		DayTable:  day,
		HourTable: hour,
		Options:   file.Options{SheetName: cfg.Data.SheetName, Encoding: cfg.Data.Encoding},
	}, nil
}

// selectionQuery 把命令行参数转换为与 HTTP 接口相同的查询参数
func selectionQuery(from, to, weather string, weatherSet bool) url.Values {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	if weatherSet {
		q.Set("weather", weather)
	}
	return q
}

func printReport(w io.Writer, store *processor.Store, q url.Values, labels render.LabelFunc) error {
	r, err := currentReport(store, q)
	if err != nil {
		return err
	}
	return render.NewConsole(w, labels).Report(r)
}

func currentReport(store *processor.Store, q url.Values) (*processor.Report, error) {
	snap := store.Get()
	if snap == nil {
		return nil, fmt.Errorf("数据尚未加载")
	}
	bounds, _ := processor.DataBounds(snap.Day)
	sel, err := web.ParseSelection(q, bounds)
	if err != nil {
		return nil, err
	}
	return processor.BuildReport(snap, sel)
}

// scheduleJobs 注册日志轮转检查与定时导出
func scheduleJobs(c *cron.Cron, cfg *config.Config, store *processor.Store, logger *storage.Logger) error {
	rotateSpec := fmt.Sprintf("@every %s", time.Duration(cfg.RotateCheck).String())
	if err := c.AddFunc(rotateSpec, func() {
		if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
			logger.Error("日志轮转失败: " + err.Error())
		}
	}); err != nil {
		return fmt.Errorf("日志轮转任务 %q: %w", rotateSpec, err)
	}

	if cfg.Export.Schedule == "" {
		return nil
	}
	if err := c.AddFunc(cfg.Export.Schedule, func() {
		exportReport(store, cfg.Export.Dir, logger)
	}); err != nil {
		return fmt.Errorf("导出任务 %q: %w", cfg.Export.Schedule, err)
	}
	logger.Info(fmt.Sprintf("定时导出已启用(%s)，目录: %s", cfg.Export.Schedule, cfg.Export.Dir))
	return nil
}

// exportReport 导出全部日期、全部天气的报告
func exportReport(store *processor.Store, dir string, logger *storage.Logger) string {
	r, err := currentReport(store, url.Values{})
	if err != nil {
		logger.Error("生成导出报告失败: " + err.Error())
		return ""
	}
	path, err := datapush.ExportToDir(r, dir, time.Now())
	if err != nil {
		logger.Error(err.Error())
		return ""
	}
	logger.Info("报告已导出: " + path)
	return path
}

// watchData 数据文件变化时重新加载，失败则保留原数据
func watchData(ctx context.Context, cfg *config.Config, src processor.Source, store *processor.Store, logger *storage.Logger) {
	monitor, err := file.NewFileMonitor(cfg.Data.Dir, cfg.Data.DayFile, cfg.Data.HourFile)
	if err != nil {
		logger.Error("创建文件监控失败: " + err.Error())
		return
	}

	err = monitor.Watch(ctx, func(name string) {
		logger.Info("检测到数据文件变化: " + name)
		if err := store.Reload(src); err != nil {
			logger.Error("重新加载数据失败，继续使用原数据: " + err.Error())
			return
		}
		logger.Info("数据已重新加载")
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("文件监控异常退出: " + err.Error())
	}
}

func fatal(logger *storage.Logger, msg string) {
	logger.Fatal(msg)
	logger.Close()
	log.Fatal(msg)
}

func waitForShutdown(ctx context.Context, server *web.Server, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭HTTP服务失败: " + err.Error())
	}
	logger.Close()
}
