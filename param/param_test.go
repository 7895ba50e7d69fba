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

package param

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestAccessorsReadViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("Condor.Pool", "cm.example.org")
	viper.Set("Condor.SSHPort", 2222)
	viper.Set("Transfer.PollInterval", "45s")
	viper.Set("Debug", true)
	viper.Set("Transfer.ExtraAttributes", map[string]interface{}{"AccountingGroup": `"group_a"`})

	assert.Equal(t, "cm.example.org", Condor_Pool.GetString())
	assert.True(t, Condor_Pool.IsSet())
	assert.Equal(t, 2222, Condor_SSHPort.GetInt())
	assert.Equal(t, 45*time.Second, Transfer_PollInterval.GetDuration())
	assert.True(t, Debug.GetBool())
	assert.Equal(t, map[string]string{"accountinggroup": `"group_a"`}, Transfer_ExtraAttributes.GetStringMap())
	assert.False(t, Condor_ScheddName.IsSet())
}

func TestGetEnvVarName(t *testing.T) {
	testCases := []struct {
		name     string
		param    Param
		expected string
	}{
		{
			name:     "single-word-param",
			param:    Debug,
			expected: "XFER_DEBUG",
		},
		{
			name:     "nested-string-param",
			param:    Condor_SubmitHost,
			expected: "XFER_CONDOR_SUBMITHOST",
		},
		{
			name:     "duration-param",
			param:    Transfer_PollInterval,
			expected: "XFER_TRANSFER_POLLINTERVAL",
		},
		{
			name:     "map-param",
			param:    Transfer_ExtraAttributes,
			expected: "XFER_TRANSFER_EXTRAATTRIBUTES",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.param.GetEnvVarName(), "%s should map to %s", tc.param.GetName(), tc.expected)
		})
	}
}

func TestBindAllParameters(t *testing.T) {
	v := viper.New()
	t.Setenv("XFER_CONDOR_SCHEDDNAME", "ap40.example.org")
	BindAllParameters(v)
	assert.Equal(t, "ap40.example.org", v.GetString("Condor.ScheddName"))

	// nil viper is a no-op
	BindAllParameters(nil)
}
