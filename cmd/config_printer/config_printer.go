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

// Package config_printer implements `xfer config`, which shows the
// configuration xfer would run with after files, environment and flags
// have been merged.
package config_printer

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/htcondor/xfer/config"
	"github.com/htcondor/xfer/param"
)

var (
	ConfigCmd = &cobra.Command{
		Use:   "config",
		Short: "View the effective configuration",
		Long: `Print every configuration parameter with the value xfer will use.
Without a subcommand this is the same as "xfer config dump".`,
		Args: cobra.NoArgs,
		RunE: configDump,
	}

	configDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dump all configuration parameters",
		Args:  cobra.NoArgs,
		RunE:  configDump,
	}

	configGetCmd = &cobra.Command{
		Use:   "get [<pattern>...]",
		Short: "Retrieve config parameters whose name or value matches any of the given arguments",
		RunE:  configGet,
	}

	configSummaryCmd = &cobra.Command{
		Use:     "summary",
		Short:   "Print config parameters that differ from the default values",
		Aliases: []string{"sum"},
		Args:    cobra.NoArgs,
		RunE:    configSummary,
	}

	format string
)

func init() {
	ConfigCmd.AddCommand(configDumpCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configSummaryCmd)

	ConfigCmd.PersistentFlags().StringVarP(&format, "format", "o", "yaml", "Output format (yaml or json)")
}

func configDump(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	return printConfig(cmd.OutOrStdout(), nest(currentValues(viper.GetViper())), format)
}

func configGet(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	printMatches(cmd.OutOrStdout(), currentValues(viper.GetViper()), args)
	return nil
}

func configSummary(cmd *cobra.Command, args []string) error {
	if err := config.InitClient(); err != nil {
		return errors.Wrap(err, "failed to initialize config")
	}
	defaults := viper.New()
	config.SetDefaults(defaults)
	diff := differences(currentValues(viper.GetViper()), currentValues(defaults))
	return printConfig(cmd.OutOrStdout(), nest(diff), format)
}

// valueOf reads p from v with the type p declares.
func valueOf(v *viper.Viper, p param.Param) interface{} {
	name := p.GetName()
	switch p.(type) {
	case param.StringParam:
		return v.GetString(name)
	case param.BoolParam:
		return v.GetBool(name)
	case param.IntParam:
		return v.GetInt(name)
	case param.DurationParam:
		return v.GetDuration(name).String()
	case param.StringMapParam:
		return v.GetStringMapString(name)
	}
	return v.Get(name)
}

// currentValues maps every parameter name to its value in v.
func currentValues(v *viper.Viper) map[string]interface{} {
	values := make(map[string]interface{})
	for _, p := range param.All() {
		values[p.GetName()] = valueOf(v, p)
	}
	return values
}

// differences returns the entries of current that are not the same in defaults.
func differences(current, defaults map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for name, value := range current {
		if !reflect.DeepEqual(value, defaults[name]) {
			diff[name] = value
		}
	}
	return diff
}

// nest turns dotted names into nested maps, so "Condor.Pool" is printed
// under a Condor section.
func nest(flat map[string]interface{}) map[string]interface{} {
	nested := make(map[string]interface{})
	for name, value := range flat {
		parts := strings.Split(name, ".")
		section := nested
		for _, part := range parts[:len(parts)-1] {
			child, ok := section[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				section[part] = child
			}
			section = child
		}
		section[parts[len(parts)-1]] = value
	}
	return nested
}

func printConfig(w io.Writer, configData interface{}, format string) error {
	switch format {
	case "yaml":
		yamlData, err := yaml.Marshal(configData)
		if err != nil {
			return errors.Wrap(err, "error marshaling config to YAML")
		}
		fmt.Fprint(w, string(yamlData))
	case "json":
		jsonData, err := json.MarshalIndent(configData, "", "  ")
		if err != nil {
			return errors.Wrap(err, "error marshaling config to JSON")
		}
		fmt.Fprintln(w, string(jsonData))
	default:
		return errors.Errorf("unsupported format %q; use 'yaml' or 'json'", format)
	}
	return nil
}

type match struct {
	key              string
	highlightedKey   string
	highlightedValue string
}

func printMatches(w io.Writer, values map[string]interface{}, patterns []string) {
	var matches []match
	for key, value := range values {
		valueStr := fmt.Sprint(value)
		m := match{key: key, highlightedKey: key, highlightedValue: valueStr}
		found := len(patterns) == 0
		for _, pattern := range patterns {
			lower := strings.ToLower(pattern)
			if strings.Contains(strings.ToLower(key), lower) {
				m.highlightedKey = highlightSubstring(key, pattern, color.FgYellow)
				found = true
			}
			if strings.Contains(strings.ToLower(valueStr), lower) {
				m.highlightedValue = highlightSubstring(valueStr, pattern, color.FgYellow)
				found = true
			}
		}
		if found {
			matches = append(matches, m)
		}
	}

	if len(matches) == 0 {
		fmt.Fprintln(w, "No matching configuration parameters found.")
		return
	}
	sort.Slice(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].key) < strings.ToLower(matches[j].key)
	})
	for _, m := range matches {
		fmt.Fprintf(w, "%s: %s\n", m.highlightedKey, m.highlightedValue)
	}
}

// highlightSubstring colors every case-insensitive occurrence of substr in s.
func highlightSubstring(s, substr string, colorAttr color.Attribute) string {
	sLower := strings.ToLower(s)
	substrLower := strings.ToLower(substr)
	if substrLower == "" {
		return s
	}

	var result strings.Builder
	start := 0
	for {
		idx := strings.Index(sLower[start:], substrLower)
		if idx == -1 {
			result.WriteString(s[start:])
			break
		}
		idx += start
		result.WriteString(s[start:idx])
		result.WriteString(color.New(colorAttr).Sprint(s[idx : idx+len(substrLower)]))
		start = idx + len(substrLower)
	}
	return result.String()
}
