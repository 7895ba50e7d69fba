/***************************************************************
 *
 * Copyright (C) 2024, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/htcondor/xfer/logging"
	"github.com/htcondor/xfer/param"
)

const configDirName = ".xfer"

// ConfigDir returns the per-user configuration directory, ~/.xfer.
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate the home directory")
	}
	return filepath.Join(home, configDirName), nil
}

// SetDefaults installs the default value of every parameter that has one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(param.Logging_Level.GetName(), "Info")
	v.SetDefault(param.Condor_SSHPort.GetName(), 22)
	v.SetDefault(param.Condor_CommandTimeout.GetName(), 2*time.Minute)
	v.SetDefault(param.Transfer_LogDir.GetName(), ".")
	v.SetDefault(param.Transfer_PollInterval.GetName(), 30*time.Second)

	if dir, err := ConfigDir(); err == nil {
		v.SetDefault(param.Ledger_Path.GetName(), filepath.Join(dir, "xfer.sqlite"))
		v.SetDefault(param.Sync_ManifestDir.GetName(), filepath.Join(dir, "manifests"))
	}
}

// Init loads the configuration: defaults, then ~/.xfer/config.yaml, then the
// file named by XFER_CONFIG_FILE or --config, then XFER_* environment variables.
func Init() error {
	SetDefaults(viper.GetViper())

	viper.SetEnvPrefix(param.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	param.BindAllParameters(viper.GetViper())

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if dir, err := ConfigDir(); err == nil {
		viper.AddConfigPath(dir)
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to read the default configuration file")
		}
		// Do not fail if the config file is missing
	}

	configFile := param.ConfigFile.GetString()
	if configFile == "" {
		configFile = os.Getenv(param.EnvPrefix + "_CONFIG_FILE")
	}
	if configFile != "" {
		expanded, err := homedir.Expand(configFile)
		if err != nil {
			return errors.Wrapf(err, "invalid configuration file path %s", configFile)
		}
		viper.SetConfigFile(expanded)
		if err := viper.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read configuration file %s", expanded)
		}
		log.Debugln("Loaded configuration file", expanded)
	}
	return nil
}

// InitClient loads the configuration and finishes setting up logging.  It
// must be called once the command line has been parsed.
func InitClient() error {
	if err := Init(); err != nil {
		logging.FlushLogs(false)
		return err
	}

	level := log.InfoLevel
	if param.Debug.GetBool() {
		level = log.DebugLevel
	} else if levelStr := param.Logging_Level.GetString(); levelStr != "" {
		parsed, err := log.ParseLevel(levelStr)
		if err != nil {
			logging.FlushLogs(false)
			return errors.Wrapf(err, "invalid value for %s", param.Logging_Level.GetName())
		}
		level = parsed
	}
	log.SetLevel(level)

	logging.FlushLogs(param.Logging_LogLocation.GetString() != "")
	return validate()
}

func validate() error {
	if param.Transfer_PollInterval.GetDuration() <= 0 {
		return errors.Errorf("%s must be positive", param.Transfer_PollInterval.GetName())
	}
	if param.Condor_SubmitHost.GetString() != "" && param.Condor_SSHKeyFile.GetString() == "" {
		return errors.Errorf("%s requires %s", param.Condor_SubmitHost.GetName(), param.Condor_SSHKeyFile.GetName())
	}
	return nil
}
