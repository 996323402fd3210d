package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/CampusBite/CampusBite-Backend/db"
	"github.com/CampusBite/CampusBite-Backend/models"
	"github.com/CampusBite/CampusBite-Backend/services/account"
	"github.com/CampusBite/CampusBite-Backend/services/cache"
	"github.com/CampusBite/CampusBite-Backend/services/ledger"
	"github.com/CampusBite/CampusBite-Backend/services/monitoring/logging"
	"github.com/CampusBite/CampusBite-Backend/services/monitoring/tasks"
	"github.com/CampusBite/CampusBite-Backend/services/notification"
	"github.com/CampusBite/CampusBite-Backend/services/order"
	"github.com/CampusBite/CampusBite-Backend/services/pickup"
	"github.com/CampusBite/CampusBite-Backend/services/vendor"
	"github.com/CampusBite/CampusBite-Backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// / If there's a better place to access this
// / TODO, I feel the config should be the one accessible like this
var TokenController *utils.JWTToken

type Server struct {
	router    *gin.Engine
	config    *utils.Config
	logger    *logging.Logger
	scheduler *tasks.TaskScheduler

	accounts      *account.Store
	ledgerService *ledger.LedgerService
	queryEngine   *ledger.QueryEngine
	orderService  *order.OrderService
	vendorService *vendor.VendorService
}

func NewServer(envPath string) *Server {
	c, err := utils.LoadConfig(envPath)
	if err != nil {
		panic(fmt.Sprintf("Could not load config: %v", err))
	}

	conn, err := db.Connect(utils.GetDBSource(c, c.DBName))
	if err != nil {
		panic(fmt.Sprintf("Could not load DB: %v", err))
	}

	m, err := migrate.New(
		"file://db/migrations",
		utils.GetDBSource(c, c.DBName),
	)
	if err != nil {
		log.Fatalf("Unable to instantiate the database schema migrator - %v", err)
	}

	if err := m.Up(); err != nil {
		if err != migrate.ErrNoChange {
			log.Fatalf("Unable to migrate up to the latest database schema - %v", err)
		}
	}

	g := gin.Default()
	l := logging.NewLogger()

	g.Use(CORSMiddleware())
	g.Use(l.LoggingMiddleWare())

	TokenController = utils.NewJWTToken(c)

	store := db.NewStore(conn)
	accounts := account.NewStore(conn)
	shardRouter := ledger.NewShardRouter(conn, l)
	transactions := ledger.NewTransactionStore(conn)

	var publisher notification.EventPublisher
	if c.KafkaBrokers != "" {
		publisher = notification.NewKafkaPublisher(strings.Split(c.KafkaBrokers, ","), c.KafkaEventsTopic)
	}
	notifier := notification.NewDispatcher(conn, publisher, c.KafkaEventsTopic, l)

	ledgerService := ledger.NewLedgerService(store, accounts, transactions, shardRouter, notifier, l)
	queryEngine := ledger.NewQueryEngine(shardRouter, transactions, l)

	qrService := pickup.NewQRService(c.QRSecret, time.Duration(c.QRMaxAgeHours)*time.Hour)

	var guard order.RedemptionGuard
	redisService, err := cache.NewRedisService(&cache.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
	})
	if err != nil {
		l.Error(fmt.Sprintf("Redis unavailable, pickup replay guard disabled: %v", err))
	} else {
		guard = redisService
	}

	orderService := order.NewOrderService(store, order.NewStore(conn), ledgerService, order.NewSQLCatalog(conn), qrService, guard, notifier, l)
	vendorService := vendor.NewVendorService(store, vendor.NewStore(conn), shardRouter, transactions, l)

	scheduler := tasks.NewTaskScheduler(l)
	if _, err := scheduler.AddTask("vendor-settlement", "Monthly vendor settlement", vendorService.SettlePreviousMonth, 24*time.Hour); err == nil {
		_ = scheduler.ScheduleTask("vendor-settlement", time.Minute)
	}

	return &Server{
		router:        g,
		config:        c,
		logger:        l,
		scheduler:     scheduler,
		accounts:      accounts,
		ledgerService: ledgerService,
		queryEngine:   queryEngine,
		orderService:  orderService,
		vendorService: vendorService,
	}
}

func (s *Server) Start() {

	dr := models.SuccessResponse{
		Status:  "success",
		Message: "Welcome to CampusBite!",
		Version: utils.REVISION,
	}

	s.router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, dr)
	})

	/// Register Object Routers Below
	Wallet{}.router(s)
	Orders{}.router(s)
	VendorTransfers{}.router(s)

	s.router.Run(fmt.Sprintf(":%v", s.config.ServerPort))
}
