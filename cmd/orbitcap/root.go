package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/config"
	"github.com/Snawoot/orbitcap/utils/log"
)

// app is the state shared by all subcommands.
type app struct {
	fs       afero.Fs
	v        *viper.Viper
	cfg      *config.Config
	logger   *zap.Logger
	bindings map[*cobra.Command][]flagBinding
}

// flagBinding maps viper keys to flag names of one flag set.
type flagBinding struct {
	flags *pflag.FlagSet
	keys  map[string]string
}

func newApp(fs afero.Fs) *app {
	return &app{
		fs:       fs,
		v:        viper.New(),
		cfg:      config.Default(),
		logger:   zap.NewNop(),
		bindings: make(map[*cobra.Command][]flagBinding),
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               ProgName,
		Short:             "DNS spoofing resolver and HTTP capture proxy for the sign-on protocol",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "configuration file (default ./"+ProgName+".yaml if present)")
	flags.Bool("debug", a.cfg.Debug, "run in debug mode")
	flags.String("log-dir", a.cfg.LogDir, "directory for captured payloads and the log file")
	a.bindFlags(cmd, flags, map[string]string{
		"debug":  "debug",
		"logDir": "log-dir",
	})

	cmd.AddCommand(
		newRunCmd(a),
		newInspectCmd(a),
		newForgeCmd(a),
		newRecordsCmd(a),
	)
	return cmd
}

// bindFlags registers config keys backed by flags of cmd. Only the
// bindings of the executed command and its parents are applied, so
// subcommands may share keys.
func (a *app) bindFlags(cmd *cobra.Command, flags *pflag.FlagSet, keys map[string]string) {
	a.bindings[cmd] = append(a.bindings[cmd], flagBinding{flags: flags, keys: keys})
}

func (a *app) applyBindings(cmd *cobra.Command) error {
	for c := cmd; c != nil; c = c.Parent() {
		for _, b := range a.bindings[c] {
			for key, name := range b.keys {
				if err := a.v.BindPFlag(key, b.flags.Lookup(name)); err != nil {
					return fmt.Errorf("failed to bind flag %q to config: %w", name, err)
				}
			}
		}
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}

	var logFile string
	if cmd.Name() == "run" {
		logFile = filepath.Join(a.cfg.LogDir, ProgName+".log")
	}
	logger, err := log.New(log.Options{Debug: a.cfg.Debug, File: logFile})
	if err != nil {
		return err
	}
	a.logger = logger
	logger.Debug("config has been initialised",
		zap.String("cmd", cmd.Name()),
		zap.String("configFile", a.cfg.ConfigPath),
		zap.Any("config", a.cfg))
	return nil
}

// loadConfig layers the config file, ORBITCAP_* variables and flags over
// the defaults.
func (a *app) loadConfig(cmd *cobra.Command) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	if err := a.applyBindings(cmd); err != nil {
		return err
	}
	a.v.SetEnvPrefix(strings.ToUpper(ProgName))
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if configPath != "" {
		a.v.SetConfigFile(configPath)
	} else {
		a.v.SetConfigName(ProgName)
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := a.v.Unmarshal(a.cfg); err != nil {
		return fmt.Errorf("failed to unmarshal the config: %w", err)
	}
	a.cfg.ConfigPath = a.v.ConfigFileUsed()
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", path, err)
	}
	return nil
}
