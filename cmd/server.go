// Server = state host + ledgers + locker registry + routers + btc relay +
// optional btc header syncer + http reporter. All components are configured via environment variables
// (strings!) or a config file.

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/btcrelay"
	"github.com/TEENet-io/teleport-bridge/btcsync"
	"github.com/TEENet-io/teleport-bridge/ccrouter"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/database"
	"github.com/TEENet-io/teleport-bridge/exchange"
	"github.com/TEENet-io/teleport-bridge/ledger"
	"github.com/TEENet-io/teleport-bridge/lockers"
	"github.com/TEENet-io/teleport-bridge/pricehealth"
	"github.com/TEENet-io/teleport-bridge/reporter"
	"github.com/TEENet-io/teleport-bridge/state"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	frequencyToRefreshPrice = 30 * time.Second
	relayHeaderCacheSize    = 1024

	priceFeedHandle   = "BTC/TDT"
	priceFeedDecimals = 8

	DB_BACKEND_SQLITE  = "sqlite"
	DB_BACKEND_LEVELDB = "leveldb"
	DB_BACKEND_MEMORY  = "memory"
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type BridgeServerConfig struct {
	// state side
	DbBackend  string // sqlite, leveldb or memory
	DbFilePath string // db file (sqlite) or directory (leveldb)

	// governance
	OwnerAddress    string // owns every component, hex
	TreasuryAddress string // receives protocol and treasury fees, hex

	// routers
	ChainID               uint16
	TransferAppID         uint16
	ExchangeAppID         uint16
	ProtocolPercentageFee uint64
	StartingBlockHeight   uint64

	// lockers
	LockerPercentageFee   uint64
	TreasuryPercentageFee uint64
	MinRequiredTDT        string // base-10, smallest unit
	MinRequiredNative     string // base-10, smallest unit
	CollateralRatio       uint64
	SlashPenaltyRatio     uint64

	// price
	AcceptablePriceDelay time.Duration
	PriceTdtPerBtc       string // TDT per BTC, base-10 with 8 decimals

	// btc side
	MinConfirmations uint64
	BtcChainConfig   *chaincfg.Params // regtest, testnet, mainnet? lockers are looked up by address on it

	// btc node, headers are synced into the relay when BtcRpcServer is set
	BtcRpcServer   string
	BtcRpcPort     string
	BtcRpcUsername string
	BtcRpcPwd      string
	BtcSyncOffset  uint64 // blocks on top of a header before it is relayed

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// BridgeServer holds the objects that consists of the bridge server.
type BridgeServer struct {
	Owner ethcommon.Address

	Db    database.Database
	sqlDb *sql.DB
	Host  *state.Host

	Wrapped    *ledger.Ledger
	Collateral *ledger.Ledger
	Native     *ledger.Ledger

	Engine   *pricehealth.Engine
	Feed     *pricehealth.SimulatedFeed
	price    *big.Int
	Exchange *exchange.Simulated
	Registry *lockers.Registry

	Relay          *btcrelay.Relay
	RpcClient      *btcsync.RpcClient
	Syncer         *btcsync.HeaderSyncer
	TransferRouter *ccrouter.TransferRouter
	ExchangeRouter *ccrouter.ExchangeRouter

	Reporter *reporter.HttpReporter
}

// ComponentAddress is the fixed identity of a named component, so that the
// state written by one run is found again by the next.
func ComponentAddress(name string) ethcommon.Address {
	h := common.Keccak256Packed("teleport-bridge:", name)
	return ethcommon.BytesToAddress(h[12:])
}

func openDatabase(backend, path string) (database.Database, *sql.DB, error) {
	switch backend {
	case DB_BACKEND_MEMORY:
		return database.NewMemoryDB(), nil, nil
	case DB_BACKEND_LEVELDB:
		db, err := database.NewLevelDB(path)
		return db, nil, err
	case DB_BACKEND_SQLITE, "":
		sqldb, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, nil, err
		}
		if path == ":memory:" {
			// each connection would get its own empty database
			sqldb.SetMaxOpenConns(1)
		}
		db, err := database.NewSQLiteDB(sqldb)
		if err != nil {
			sqldb.Close()
			return nil, nil, err
		}
		return db, sqldb, nil
	default:
		return nil, nil, fmt.Errorf("%w: db backend %q", common.ErrInvalidArgument, backend)
	}
}

func (bsc *BridgeServerConfig) lockerParams() (*lockers.Params, error) {
	minTDT, err := common.ParseAmount(bsc.MinRequiredTDT)
	if err != nil {
		return nil, err
	}
	minNative := new(big.Int)
	if bsc.MinRequiredNative != "" {
		if minNative, err = common.ParseAmount(bsc.MinRequiredNative); err != nil {
			return nil, err
		}
	}
	return &lockers.Params{
		MinRequiredCollateral: minTDT,
		MinRequiredNative:     minNative,
		CollateralRatio:       bsc.CollateralRatio,
		LockerPercentageFee:   bsc.LockerPercentageFee,
		TreasuryPercentageFee: bsc.TreasuryPercentageFee,
		SlashPenaltyRatio:     bsc.SlashPenaltyRatio,
	}, nil
}

// NewBridgeServer creates the components over the configured database. On
// an empty database the components are initialized with the configured
// parameters and owner; otherwise the stored state is used as is.
func NewBridgeServer(bsc *BridgeServerConfig) (*BridgeServer, error) {
	owner, err := common.ParseAddress(bsc.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("owner address: %w", err)
	}
	var treasury ethcommon.Address
	if bsc.TreasuryAddress != "" {
		if treasury, err = common.ParseAddress(bsc.TreasuryAddress); err != nil {
			return nil, fmt.Errorf("treasury address: %w", err)
		}
	}
	lockerParams, err := bsc.lockerParams()
	if err != nil {
		return nil, err
	}
	price, err := common.ParseAmount(bsc.PriceTdtPerBtc)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}

	db, sqldb, err := openDatabase(bsc.DbBackend, bsc.DbFilePath)
	if err != nil {
		logger.WithError(err).WithField("backend", bsc.DbBackend).Error("failed to open db")
		return nil, err
	}

	s := &BridgeServer{
		Owner: owner,
		Db:    db,
		sqlDb: sqldb,
		Host:  state.NewHost(db, &state.Config{}),
		Wrapped: ledger.New(&ledger.Config{
			Address: ComponentAddress("TELEBTC"), Name: "Teleport BTC", Symbol: "TELEBTC", Decimals: 8,
		}),
		Collateral: ledger.New(&ledger.Config{
			Address: ComponentAddress("TDT"), Name: "Teleport DAO Token", Symbol: "TDT", Decimals: 18,
		}),
		Native: ledger.New(&ledger.Config{
			Address: ComponentAddress("NATIVE"), Name: "Native", Symbol: "NATIVE", Decimals: 18,
		}),
		Engine:   pricehealth.New(&pricehealth.Config{AcceptableDelay: bsc.AcceptablePriceDelay}),
		Feed:     pricehealth.NewSimulatedFeed(price, priceFeedDecimals, time.Now()),
		price:    price,
		Exchange: exchange.New(&exchange.Config{Address: ComponentAddress("exchange")}),
	}
	s.Engine.RegisterFeed(priceFeedHandle, s.Feed)
	for _, t := range []*ledger.Ledger{s.Wrapped, s.Collateral, s.Native} {
		s.Engine.RegisterToken(t.Address(), t.Decimals())
		s.Exchange.RegisterToken(t)
	}

	lockerParams.Treasury = treasury
	s.Registry = lockers.New(&lockers.Config{
		Address:         ComponentAddress("lockers"),
		WrappedToken:    s.Wrapped,
		CollateralToken: s.Collateral,
		NativeToken:     s.Native,
		PriceEngine:     s.Engine,
		Connector:       s.Exchange,
		Params:          *lockerParams,
	})

	s.Relay, err = btcrelay.New(db, &btcrelay.Config{
		MinConfirmations: bsc.MinConfirmations,
		CacheSize:        relayHeaderCacheSize,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	routerParams := ccrouter.Params{
		ChainID:               bsc.ChainID,
		ProtocolPercentageFee: bsc.ProtocolPercentageFee,
		Treasury:              treasury,
		StartingBlockHeight:   bsc.StartingBlockHeight,
	}
	transferParams, exchangeParams := routerParams, routerParams
	transferParams.AppID = bsc.TransferAppID
	exchangeParams.AppID = bsc.ExchangeAppID
	s.TransferRouter = ccrouter.NewTransferRouter(&ccrouter.Config{
		Address:      ComponentAddress("ccTransfer"),
		Oracle:       s.Relay,
		Registry:     s.Registry,
		WrappedToken: s.Wrapped,
		Params:       transferParams,
	})
	s.ExchangeRouter = ccrouter.NewExchangeRouter(&ccrouter.Config{
		Address:      ComponentAddress("ccExchange"),
		Oracle:       s.Relay,
		Registry:     s.Registry,
		WrappedToken: s.Wrapped,
		Connector:    s.Exchange,
		Params:       exchangeParams,
	})

	if err := s.bootstrap(); err != nil {
		logger.WithError(err).Error("failed to initialize components")
		s.Close()
		return nil, err
	}

	s.Reporter = reporter.NewHttpReporter(bsc.HttpIp, bsc.HttpPort, &reporter.Bridge{
		Host:        s.Host,
		Registry:    s.Registry,
		Transfer:    s.TransferRouter,
		Exchange:    s.ExchangeRouter,
		Relay:       s.Relay,
		Engine:      s.Engine,
		Tokens:      []*ledger.Ledger{s.Wrapped, s.Collateral, s.Native},
		ChainParams: bsc.BtcChainConfig,
	})

	if bsc.BtcRpcServer != "" {
		s.RpcClient, err = btcsync.NewRpcClient(&btcsync.RpcClientConfig{
			ServerAddr: bsc.BtcRpcServer,
			Port:       bsc.BtcRpcPort,
			Username:   bsc.BtcRpcUsername,
			Pwd:        bsc.BtcRpcPwd,
		})
		if err != nil {
			logger.WithError(err).Error("failed to create btc rpc client")
			s.Close()
			return nil, err
		}
		s.Syncer = btcsync.NewHeaderSyncer(s.Relay, s.RpcClient, &btcsync.Config{
			StartHeight: bsc.StartingBlockHeight,
			Offset:      bsc.BtcSyncOffset,
			OnRelayed:   s.Reporter.Metrics().SetRelayTip,
		})
	}
	return s, nil
}

// bootstrap initializes the components unless the registry already is.
func (s *BridgeServer) bootstrap() error {
	err := s.Host.View(func(ctx *state.Context) error {
		_, err := s.Registry.Params(ctx)
		return err
	})
	if err == nil {
		logger.Info("found initialized bridge state")
		return nil
	}
	if !errors.Is(err, common.ErrInvalidState) {
		return err
	}

	_, err = s.Host.Execute(s.Owner, func(ctx *state.Context) error {
		for _, t := range []*ledger.Ledger{s.Wrapped, s.Collateral, s.Native} {
			if err := t.Init(ctx, s.Owner); err != nil {
				return err
			}
		}
		// collateral and native are local ledgers funded by the owner
		if err := s.Collateral.AddMinter(ctx, s.Owner); err != nil {
			return err
		}
		if err := s.Native.AddMinter(ctx, s.Owner); err != nil {
			return err
		}
		if err := s.Wrapped.AddMinter(ctx, s.Registry.Address()); err != nil {
			return err
		}
		if err := s.Wrapped.AddBurner(ctx, s.Registry.Address()); err != nil {
			return err
		}

		if err := s.Engine.Init(ctx, s.Owner); err != nil {
			return err
		}
		if err := s.Engine.SetPriceProxy(ctx, s.Wrapped.Address(), s.Collateral.Address(), priceFeedHandle); err != nil {
			return err
		}
		if err := s.Registry.Init(ctx, s.Owner); err != nil {
			return err
		}
		if err := s.TransferRouter.Init(ctx, s.Owner); err != nil {
			return err
		}
		if err := s.ExchangeRouter.Init(ctx, s.Owner); err != nil {
			return err
		}
		if err := s.Registry.AddMinter(ctx, s.TransferRouter.Address()); err != nil {
			return err
		}
		return s.Registry.AddMinter(ctx, s.ExchangeRouter.Address())
	})
	if err != nil {
		return err
	}
	logger.WithField("owner", s.Owner.Hex()).Info("initialized bridge state")
	return nil
}

// Start turns on the http reporter and the price refresher. Both stop when
// ctx is done.
func (s *BridgeServer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Reporter.Run(ctx); err != nil {
			logger.WithError(err).Error("http reporter stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.refreshPrice(ctx)
	}()

	if s.Syncer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Syncer.ScanLoop(ctx)
		}()
	}
}

// refreshPrice keeps the static feed answer fresh.
func (s *BridgeServer) refreshPrice(ctx context.Context) {
	ticker := time.NewTicker(frequencyToRefreshPrice)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Feed.SetPrice(s.price, time.Now())
		}
	}
}

func (s *BridgeServer) Close() error {
	var errs []error
	if s.RpcClient != nil {
		s.RpcClient.Close()
	}
	if s.Db != nil {
		errs = append(errs, s.Db.Close())
	}
	if s.sqlDb != nil {
		errs = append(errs, s.sqlDb.Close())
	}
	return errors.Join(errs...)
}

// Create, then start the bridge server and wait.
// Press Ctrl-C to kill the server.
func StartBridgeServerAndWait(bsc *BridgeServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	server, err := NewBridgeServer(bsc)
	if err != nil {
		logger.Fatalf("failed to create bridge server: %v", err)
		return
	}
	defer server.Close()

	var wg sync.WaitGroup
	server.Start(ctx, &wg)
	logger.WithFields(logger.Fields{
		"ip":   bsc.HttpIp,
		"port": bsc.HttpPort,
	}).Info("bridge server started")

	wg.Wait()
}
