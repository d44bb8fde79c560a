package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"LIBRA-backend/internal/platform/config"
)

// @title           LIBRA circulation API
// @version         1.0
// @description     蔵書の貸出申請・貸出・返却・延滞罰金を扱う API
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "libra",
	Short: "LIBRA - 図書館の貸出管理サーバ",
	Long: `libra は蔵書の貸出申請・貸出・返却と延滞罰金を扱う API サーバです。

  libra serve     API サーバを起動
  libra migrate   DB マイグレーションのみ実行`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "設定ファイルのパス")
	rootCmd.AddCommand(newServeCmd(), newMigrateCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig は設定を読み込んで検証まで行う
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
