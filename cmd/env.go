package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Environment variables supplying flag defaults. A .env file in the working
// directory is loaded first; variables already set win.
const (
	envConfig = "CONTACTSIM_CONFIG"
	envLog    = "CONTACTSIM_LOG"
	envFile   = ".env"
)

// loadEnv fills the flags the user did not set from the environment.
func loadEnv(cmd *cobra.Command) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	if v := os.Getenv(envConfig); v != "" && !cmd.Flags().Changed("config") {
		configPath = v
	}
	if v := os.Getenv(envLog); v != "" && !cmd.Flags().Changed("log") {
		logLevel = v
	}
	return nil
}

// setupLogging sets the logrus level and, when file is set, sends the logs
// to a size-rotated file.
func setupLogging(level, file string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	if file != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return nil
}
