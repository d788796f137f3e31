package main

import (
	"io"

	"github.com/spf13/cobra"

	"literary-rag/internal/config"
	"literary-rag/internal/logging"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "literag",
	Short: "Question answering over the works of Papadiamantis",
	Long: `literag indexes the novels, short stories, articles and poems of
Alexandros Papadiamantis and answers questions about them with a
retrieval augmented language model.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML config file")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logCloser, err = logging.Setup(cfg.Log)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if logCloser == nil {
		return nil
	}
	return logCloser.Close()
}
