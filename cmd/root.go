package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/impostorwatch/impostorwatch/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `  _                          _                      _       _
 (_)_ __ ___  _ __   ___  __| |_ ___  _ ____      _| |_ ___| |__
 | | '_ ` + "`" + ` _ \| '_ \ / _ \/ _` + "`" + ` __/ _ \| '__\ \ /\ / / __/ __| '_ \
 | | | | | | | |_) | (_) \__ \ || (_) | |   \ V  V /| || (__| | | |
 |_|_| |_| |_| .__/ \___/|___/\__\___/|_|    \_/\_/  \__\___|_| |_|
             |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "impostorwatch",
	Short: "Detect and warn about brand impersonation accounts on Twitter.",
	Long: LOGO + `impostorwatch discovers accounts impersonating your brands, watches
their replies to potential victims, and posts a public warning under each
scam attempt.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.impostorwatch.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/impostorwatch/impostorwatch.sqlite)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".impostorwatch")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.impostorwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("twitter.bearertoken", "")
	viper.SetDefault("twitter.writetoken", "")
	viper.SetDefault("telegram.bottoken", "")
	viper.SetDefault("telegram.chatid", "")
	viper.SetDefault("heartbeaturl", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)

}
