package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/TEENet-io/teleport-bridge/cmd"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()
	setDefaults()

	// Accessing an environment variable of configuration file location.
	// Without one the environment alone configures the server.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	if _config_file != "" {
		fmt.Printf("Bridge server configuration file = %s\n", _config_file)
		if !cmd.FileExists(_config_file) {
			fmt.Printf("Bridge server configuration file not found: %s\n", _config_file)
			return
		}
		if !initializeViper(_config_file) {
			return
		}
	}

	logconfig.ConfigLogger(viper.GetString("LOG_LEVEL"))

	bsc := PrepareBridgeServerConfig()

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartBridgeServerAndWait(bsc)
}

func setDefaults() {
	viper.SetDefault("DB_BACKEND", cmd.DB_BACKEND_SQLITE)
	viper.SetDefault("DB_FILE_PATH", "bridge.db")
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "production")
	viper.SetDefault("TRANSFER_APP_ID", 1)
	viper.SetDefault("EXCHANGE_APP_ID", 2)
	viper.SetDefault("LOCKER_PERCENTAGE_FEE", 20)
	viper.SetDefault("MIN_REQUIRED_TDT", common.Ether(500).String())
	viper.SetDefault("MIN_REQUIRED_NATIVE", "0")
	viper.SetDefault("COLLATERAL_RATIO", 15000)
	viper.SetDefault("SLASH_PENALTY_RATIO", 500)
	viper.SetDefault("MIN_CONFIRMATIONS", 6)
	viper.SetDefault("ACCEPTABLE_PRICE_DELAY", "1h")
	viper.SetDefault("BTC_CHAIN_CONFIG", "mainnet")
	viper.SetDefault("BTC_RPC_PORT", "8332")
	viper.SetDefault("BTC_SYNC_OFFSET", 1)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareBridgeServerConfig reads configuration variables and returns a BridgeServerConfig.
func PrepareBridgeServerConfig() *cmd.BridgeServerConfig {
	return &cmd.BridgeServerConfig{
		// state side
		DbBackend:  viper.GetString("DB_BACKEND"),
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// governance
		OwnerAddress:    viper.GetString("OWNER_ADDRESS"),
		TreasuryAddress: viper.GetString("TREASURY_ADDRESS"),
		// routers
		ChainID:               viper.GetUint16("CHAIN_ID"),
		TransferAppID:         viper.GetUint16("TRANSFER_APP_ID"),
		ExchangeAppID:         viper.GetUint16("EXCHANGE_APP_ID"),
		ProtocolPercentageFee: viper.GetUint64("PROTOCOL_PERCENTAGE_FEE"),
		StartingBlockHeight:   viper.GetUint64("STARTING_BLOCK_HEIGHT"),
		// lockers
		LockerPercentageFee:   viper.GetUint64("LOCKER_PERCENTAGE_FEE"),
		TreasuryPercentageFee: viper.GetUint64("TREASURY_PERCENTAGE_FEE"),
		MinRequiredTDT:        viper.GetString("MIN_REQUIRED_TDT"),
		MinRequiredNative:     viper.GetString("MIN_REQUIRED_NATIVE"),
		CollateralRatio:       viper.GetUint64("COLLATERAL_RATIO"),
		SlashPenaltyRatio:     viper.GetUint64("SLASH_PENALTY_RATIO"),
		// price
		AcceptablePriceDelay: viper.GetDuration("ACCEPTABLE_PRICE_DELAY"),
		PriceTdtPerBtc:       viper.GetString("PRICE_TDT_PER_BTC"),
		// btc side
		MinConfirmations: viper.GetUint64("MIN_CONFIRMATIONS"),
		BtcChainConfig:   common.ChainParams(viper.GetString("BTC_CHAIN_CONFIG")),
		// btc node
		BtcRpcServer:   viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:     viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername: viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:      viper.GetString("BTC_RPC_PWD"),
		BtcSyncOffset:  viper.GetUint64("BTC_SYNC_OFFSET"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
