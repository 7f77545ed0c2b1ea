package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/config"
	"github.com/appraisal-ops/field-scheduler/backend/internal/repository"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/seed"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type app struct {
	cfg    *config.Config
	dbpool *sql.DB
	repo   *repository.Repository
	logger *slog.Logger
	rng    *rand.Rand
}

func main() {
	a := &app{logger: slog.New(slog.NewTextHandler(os.Stdout, nil))}
	slog.SetDefault(a.logger)

	if err := a.rootCmd().Execute(); err != nil {
		a.logger.Error("执行失败", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	var randomSeed int64

	root := &cobra.Command{
		Use:           "seed",
		Short:         "向数据库写入初始化数据或随机测试数据",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if randomSeed == 0 {
				randomSeed = time.Now().UnixNano()
			}
			a.rng = rand.New(rand.NewSource(randomSeed))
			return a.connect(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.dbpool != nil {
				_ = a.dbpool.Close()
			}
		},
	}
	root.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "随机数种子，0 表示使用当前时间")

	root.AddCommand(a.fixtureCmd(), a.resourcesCmd(), a.bookingsCmd())
	return root
}

func (a *app) connect(ctx context.Context) error {
	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return err
	}
	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)
	a.dbpool = dbpool

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(pingCtx); err != nil {
		return err
	}

	a.repo = repository.NewRepository(cfg, dbpool)
	if cfg.Database.Migrate {
		return a.repo.Migrate(ctx)
	}
	return nil
}

func (a *app) fixtureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixture <file.yaml>",
		Short: "按 YAML 文件写入区域、技能、设备与资源",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.LoadFixtureFile(args[0])
			if err != nil {
				return err
			}

			rdb := redis.NewClient(&redis.Options{
				Addr:        fmt.Sprintf("%s:%d", a.cfg.Redis.Host, a.cfg.Redis.Port),
				Password:    a.cfg.Redis.Password,
				DialTimeout: time.Duration(a.cfg.Redis.ConnectTimeout) * time.Second,
			})
			defer rdb.Close()

			// 新写入的邮编可能已被缓存为空结果
			cache := repository.NewTerritoryCache(
				a.repo,
				rdb,
				time.Duration(a.cfg.Scheduling.TerritoryCacheTTL)*time.Second,
				time.Duration(a.cfg.Redis.OperationTimeout)*time.Second,
				a.logger,
			)
			_, err = seed.Apply(cmd.Context(), a.repo, cache, f)
			return err
		},
	}
}

func (a *app) resourcesCmd() *cobra.Command {
	var (
		orgID        int64
		n            int
		territoryIDs []int64
		emailDomain  string
	)

	cmd := &cobra.Command{
		Use:   "resources",
		Short: "插入随机的外勤评估师",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return errors.New("请输入合法的资源数量")
			}
			seed.SeedRandomResources(cmd.Context(), a.repo, a.rng, orgID, n, emailDomain, territoryIDs)
			return nil
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 1, "组织 ID")
	cmd.Flags().IntVarP(&n, "count", "n", 5, "要插入的资源数量")
	cmd.Flags().Int64SliceVar(&territoryIDs, "territories", nil, "资源随机服务的区域 ID 列表")
	cmd.Flags().StringVar(&emailDomain, "email-domain", "example.com", "生成邮箱使用的域名")
	return cmd
}

func (a *app) bookingsCmd() *cobra.Command {
	var (
		orgID       int64
		n           int
		days        int
		starting    string
		postalCodes []string
	)

	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "通过自动分配为随机时段插入预约",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return errors.New("请输入合法的预约数量")
			}
			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			start, err := seed.ParseStart(starting, time.Now(), loc)
			if err != nil {
				return err
			}

			sched := scheduler.New(a.repo,
				scheduler.WithLogger(a.logger),
				scheduler.WithDefaultLocation(loc),
				scheduler.WithParallelism(a.cfg.Scheduling.Parallelism),
			)
			_, err = seed.SeedBookings(cmd.Context(), sched, a.rng, seed.BookingPlan{
				OrganizationID: orgID,
				PostalCodes:    postalCodes,
				Start:          start,
				Days:           days,
				Count:          n,
				Location:       loc,
			})
			return err
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 1, "组织 ID")
	cmd.Flags().IntVarP(&n, "count", "n", 20, "尝试插入的预约数量")
	cmd.Flags().IntVar(&days, "days", 5, "预约分布的天数")
	cmd.Flags().StringVar(&starting, "starting", "tomorrow", "第一天，例如 2026-03-02 或 \"next monday\"")
	cmd.Flags().StringSliceVar(&postalCodes, "postal-codes", nil, "预约地址使用的邮编")
	_ = cmd.MarkFlagRequired("postal-codes")
	return cmd
}
