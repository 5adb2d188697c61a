package main

import (
	"fmt"

	"github.com/caesar4321/confio-go/cmd"
	"github.com/caesar4321/confio-go/logconfig"
	"github.com/spf13/viper"
)

const (
	ENV_CONFIG_FILE_PATH = "ORCHESTRATOR_CONFIG"
)

func main() {
	// Structured JSON logs in production; set LOG_DEBUG for terminal output.
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	if viper.GetBool("LOG_DEBUG") {
		logconfig.ConfigDebugLogger()
	}

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Orchestrator configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Orchestrator configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	osc := PrepareOrchestratorServerConfig()
	if osc == nil {
		fmt.Printf("Error loading orchestrator configuration\n")
		return
	}

	fmt.Println("Starting orchestrator... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartOrchestratorServerAndWait(osc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareOrchestratorServerConfig reads configuration variables and returns
// an OrchestratorServerConfig.
func PrepareOrchestratorServerConfig() *cmd.OrchestratorServerConfig {
	return &cmd.OrchestratorServerConfig{
		// chain side
		AlgodUrl:     viper.GetString("ALGOD_URL"),
		AlgodToken:   viper.GetString("ALGOD_TOKEN"),
		IndexerUrl:   viper.GetString("INDEXER_URL"),
		IndexerToken: viper.GetString("INDEXER_TOKEN"),
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// key side
		MasterKeyFile: viper.GetString("MASTER_KEY_FILE"),
		MasterKeyHex:  viper.GetString("MASTER_KEY_HEX"),
		SponsorKeyHex: viper.GetString("SPONSOR_KEY_HEX"),
		// sponsor side
		MinReserve: viper.GetString("MIN_RESERVE"),
		// assets
		StablecoinAssetId: viper.GetString("CUSD_ASSET_ID"),
		CollateralAssetId: viper.GetString("USDC_ASSET_ID"),
		UtilityAssetId:    viper.GetString("CONFIO_ASSET_ID"),
		// applications
		PaymentRouterAppId:   viper.GetString("PAYMENT_ROUTER_APP_ID"),
		PaymentRouterAppAddr: viper.GetString("PAYMENT_ROUTER_APP_ADDR"),
		MintBurnAppId:        viper.GetString("MINT_BURN_APP_ID"),
		MintBurnAppAddr:      viper.GetString("MINT_BURN_APP_ADDR"),
		EscrowAppId:          viper.GetString("ESCROW_APP_ID"),
		EscrowAppAddr:        viper.GetString("ESCROW_APP_ADDR"),
		InviteAppId:          viper.GetString("INVITE_APP_ID"),
		InviteAppAddr:        viper.GetString("INVITE_APP_ADDR"),
		PresaleAppId:         viper.GetString("PRESALE_APP_ID"),
		PresaleAppAddr:       viper.GetString("PRESALE_APP_ADDR"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
