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

package config_printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htcondor/xfer/config"
	"github.com/htcondor/xfer/param"
)

func TestCurrentValuesAndSummary(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	defaults := viper.New()
	config.SetDefaults(defaults)
	current := viper.New()
	config.SetDefaults(current)
	current.Set(param.Condor_Pool.GetName(), "cm.example.org")
	current.Set(param.Transfer_PollInterval.GetName(), "1m")

	values := currentValues(current)
	assert.Len(t, values, len(param.All()))
	assert.Equal(t, "cm.example.org", values["Condor.Pool"])
	assert.Equal(t, "1m0s", values["Transfer.PollInterval"])
	assert.Equal(t, 22, values["Condor.SSHPort"])

	diff := differences(values, currentValues(defaults))
	assert.Equal(t, map[string]interface{}{
		"Condor.Pool":           "cm.example.org",
		"Transfer.PollInterval": "1m0s",
	}, diff)
}

func TestNest(t *testing.T) {
	nested := nest(map[string]interface{}{
		"Debug":           true,
		"Condor.Pool":     "cm",
		"Condor.SSHPort":  22,
		"Transfer.LogDir": "/logs",
	})
	assert.Equal(t, map[string]interface{}{
		"Debug":    true,
		"Condor":   map[string]interface{}{"Pool": "cm", "SSHPort": 22},
		"Transfer": map[string]interface{}{"LogDir": "/logs"},
	}, nested)
}

func TestPrintConfig(t *testing.T) {
	data := nest(map[string]interface{}{"Condor.Pool": "cm"})

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, data, "yaml"))
	assert.Equal(t, "Condor:\n    Pool: cm\n", buf.String())

	buf.Reset()
	require.NoError(t, printConfig(&buf, data, "json"))
	assert.JSONEq(t, `{"Condor": {"Pool": "cm"}}`, buf.String())

	assert.Error(t, printConfig(&buf, data, "toml"))
}

func TestPrintMatches(t *testing.T) {
	color.NoColor = true
	values := map[string]interface{}{
		"Condor.Pool":       "cm.example.org",
		"Condor.ScheddName": "ap40.example.org",
		"Transfer.LogDir":   "/logs",
	}

	var buf bytes.Buffer
	printMatches(&buf, values, []string{"POOL"})
	assert.Equal(t, "Condor.Pool: cm.example.org\n", buf.String())

	buf.Reset()
	printMatches(&buf, values, []string{"example"})
	assert.Equal(t, "Condor.Pool: cm.example.org\nCondor.ScheddName: ap40.example.org\n", buf.String())

	buf.Reset()
	printMatches(&buf, values, nil)
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))

	buf.Reset()
	printMatches(&buf, values, []string{"nothing-matches"})
	assert.Equal(t, "No matching configuration parameters found.\n", buf.String())
}

func TestHighlightSubstring(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, "Condor.Pool", highlightSubstring("Condor.Pool", "pool", color.FgYellow))
	assert.Equal(t, "abc", highlightSubstring("abc", "", color.FgYellow))

	color.NoColor = false
	t.Cleanup(func() { color.NoColor = true })
	highlighted := highlightSubstring("Condor.Pool", "pool", color.FgYellow)
	assert.Contains(t, highlighted, "Condor.")
	assert.Contains(t, highlighted, "\x1b[33mPool")
}
