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

// Package param holds the typed configuration parameters understood by xfer.
//
// Each parameter is a thin handle over a viper key; `param.Condor_Pool.GetString()`
// is equivalent to `viper.GetString("Condor.Pool")` but keeps the key spelled in
// one place.
package param

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every parameter when it is read from the environment.
const EnvPrefix = "XFER"

type (
	StringParam struct {
		name string
	}

	BoolParam struct {
		name string
	}

	IntParam struct {
		name string
	}

	DurationParam struct {
		name string
	}

	StringMapParam struct {
		name string
	}

	// Param is implemented by every parameter type.
	Param interface {
		GetName() string
		GetEnvVarName() string
		IsSet() bool
	}
)

var (
	Debug      = BoolParam{"Debug"}
	ConfigFile = StringParam{"ConfigFile"}
	OutputJSON = BoolParam{"OutputJSON"}

	Logging_Level               = StringParam{"Logging.Level"}
	Logging_LogLocation         = StringParam{"Logging.LogLocation"}
	Logging_DisableProgressBars = BoolParam{"Logging.DisableProgressBars"}

	Condor_Pool           = StringParam{"Condor.Pool"}
	Condor_ScheddName     = StringParam{"Condor.ScheddName"}
	Condor_BinDir         = StringParam{"Condor.BinDir"}
	Condor_SubmitHost     = StringParam{"Condor.SubmitHost"}
	Condor_SSHUser        = StringParam{"Condor.SSHUser"}
	Condor_SSHPort        = IntParam{"Condor.SSHPort"}
	Condor_SSHKeyFile     = StringParam{"Condor.SSHKeyFile"}
	Condor_SSHKnownHosts  = StringParam{"Condor.SSHKnownHosts"}
	Condor_CommandTimeout = DurationParam{"Condor.CommandTimeout"}

	Transfer_Executable      = StringParam{"Transfer.Executable"}
	Transfer_LogDir          = StringParam{"Transfer.LogDir"}
	Transfer_PollInterval    = DurationParam{"Transfer.PollInterval"}
	Transfer_ExtraAttributes = StringMapParam{"Transfer.ExtraAttributes"}

	Sync_ManifestDir = StringParam{"Sync.ManifestDir"}

	Ledger_Path = StringParam{"Ledger.Path"}

	Metrics_TextfilePath = StringParam{"Metrics.TextfilePath"}
)

// All lists every known parameter.
func All() []Param {
	return []Param{
		Debug, ConfigFile, OutputJSON,
		Logging_Level, Logging_LogLocation, Logging_DisableProgressBars,
		Condor_Pool, Condor_ScheddName, Condor_BinDir, Condor_SubmitHost, Condor_SSHUser,
		Condor_SSHPort, Condor_SSHKeyFile, Condor_SSHKnownHosts, Condor_CommandTimeout,
		Transfer_Executable, Transfer_LogDir, Transfer_PollInterval, Transfer_ExtraAttributes,
		Sync_ManifestDir,
		Ledger_Path,
		Metrics_TextfilePath,
	}
}

// BindAllParameters binds every known key to its environment variable so
// that env-only overrides show up in viper.AllSettings.
func BindAllParameters(v *viper.Viper) {
	if v == nil {
		return
	}
	for _, p := range All() {
		_ = v.BindEnv(p.GetName(), p.GetEnvVarName())
	}
}

func envVarName(name string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

func (sP StringParam) GetString() string {
	return viper.GetString(sP.name)
}

func (sP StringParam) GetName() string {
	return sP.name
}

func (sP StringParam) GetEnvVarName() string {
	return envVarName(sP.name)
}

func (sP StringParam) IsSet() bool {
	return viper.IsSet(sP.name)
}

func (bP BoolParam) GetBool() bool {
	return viper.GetBool(bP.name)
}

func (bP BoolParam) GetName() string {
	return bP.name
}

func (bP BoolParam) GetEnvVarName() string {
	return envVarName(bP.name)
}

func (bP BoolParam) IsSet() bool {
	return viper.IsSet(bP.name)
}

func (iP IntParam) GetInt() int {
	return viper.GetInt(iP.name)
}

func (iP IntParam) GetName() string {
	return iP.name
}

func (iP IntParam) GetEnvVarName() string {
	return envVarName(iP.name)
}

func (iP IntParam) IsSet() bool {
	return viper.IsSet(iP.name)
}

func (dP DurationParam) GetDuration() time.Duration {
	return viper.GetDuration(dP.name)
}

func (dP DurationParam) GetName() string {
	return dP.name
}

func (dP DurationParam) GetEnvVarName() string {
	return envVarName(dP.name)
}

func (dP DurationParam) IsSet() bool {
	return viper.IsSet(dP.name)
}

func (mP StringMapParam) GetStringMap() map[string]string {
	return viper.GetStringMapString(mP.name)
}

func (mP StringMapParam) GetName() string {
	return mP.name
}

func (mP StringMapParam) GetEnvVarName() string {
	return envVarName(mP.name)
}

func (mP StringMapParam) IsSet() bool {
	return viper.IsSet(mP.name)
}
