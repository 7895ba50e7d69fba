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

package classads

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Expr is an attribute value that is written without quoting, such as a
// machine-selection predicate or an attribute reference.
type Expr string

type ClassAd struct {
	attributes map[string]interface{}
}

func NewClassAd() *ClassAd {
	return &ClassAd{
		attributes: make(map[string]interface{}),
	}
}

// Get returns the value of the attribute with the given name, or nil if unset.
// Attribute names are case-insensitive, as in HTCondor.
func (c *ClassAd) Get(name string) interface{} {
	if c.attributes == nil {
		return nil
	}
	if value, ok := c.attributes[name]; ok {
		return value
	}
	for key, value := range c.attributes {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return nil
}

func (c *ClassAd) Set(name string, value interface{}) {
	if c.attributes == nil {
		c.attributes = make(map[string]interface{})
	}
	c.attributes[name] = value
}

// Names returns the attribute names in sorted order.
func (c *ClassAd) Names() []string {
	names := make([]string, 0, len(c.attributes))
	for name := range c.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetString returns the attribute as a string; unquoted expressions are
// returned verbatim.
func (c *ClassAd) GetString(name string) (string, bool) {
	switch v := c.Get(name).(type) {
	case string:
		return v, true
	case Expr:
		return string(v), true
	}
	return "", false
}

func (c *ClassAd) GetInt(name string) (int, bool) {
	switch v := c.Get(name).(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (c *ClassAd) GetBool(name string) (bool, bool) {
	v, ok := c.Get(name).(bool)
	return v, ok
}

// FormatValue renders a single value in ClassAd syntax.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case Expr:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return fmt.Sprintf("%.3f", v)
	case time.Duration:
		// seconds rounded to the nearest millisecond
		return fmt.Sprintf("%.3f", float64(v.Round(time.Millisecond).Milliseconds())/1000.0)
	case map[string]interface{}:
		var buffer bytes.Buffer
		buffer.WriteString("[")
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&buffer, "%s = %s; ", key, FormatValue(v[key]))
		}
		buffer.WriteString("]")
		return buffer.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *ClassAd) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("[")
	for _, name := range c.Names() {
		buffer.WriteString(name)
		buffer.WriteString(" = ")
		buffer.WriteString(FormatValue(c.attributes[name]))
		buffer.WriteString("; ")
	}
	buffer.WriteString("]")
	return buffer.String()
}

// ReadClassAd reads every bracketed ClassAd from the given reader, as printed
// by `condor_q -long:new`.
func ReadClassAd(reader io.Reader) (ads []ClassAd, err error) {
	scanner := bufio.NewScanner(reader)
	// Job ads routinely exceed the default 64KiB token size
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	split := func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}

		// Watch out for brackets inside quotes
		insideQuotes := false
		for i, curChar := range data {
			if curChar == '"' && !(i > 0 && data[i-1] == '\\') {
				insideQuotes = !insideQuotes
			} else if curChar == ']' && !insideQuotes {
				return i + 1, data[0 : i+1], nil
			}
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
	scanner.Split(split)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ad, err := ParseClassAd(line)
		if err != nil {
			return nil, err
		}
		ads = append(ads, ad)
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "error reading classad")
	}
	return ads, nil
}

func ParseClassAd(line string) (ClassAd, error) {
	ad := ClassAd{attributes: make(map[string]interface{})}

	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "[")
	line = strings.TrimSuffix(line, "]")

	attributeScanner := bufio.NewScanner(strings.NewReader(line))
	attributeScanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	attributeScanner.Split(attributeSplitFunc)
	for attributeScanner.Scan() {
		attrStr := strings.TrimSpace(attributeScanner.Text())
		if attrStr == "" {
			continue
		}

		name, value, found := strings.Cut(attrStr, "=")
		if !found {
			return ClassAd{}, errors.Errorf("malformed classad attribute %q", attrStr)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return ClassAd{}, errors.Errorf("classad attribute without a name: %q", attrStr)
		}
		ad.Set(name, parseValue(strings.TrimSpace(value)))
	}
	if err := attributeScanner.Err(); err != nil {
		return ClassAd{}, errors.Wrap(err, "error reading classad attributes")
	}
	return ad, nil
}

func parseValue(value string) interface{} {
	if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") && len(value) >= 2 {
		if unquoted, err := strconv.Unquote(value); err == nil {
			return unquoted
		}
		return strings.Trim(value, "\"")
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	if value == "true" || value == "false" {
		return value == "true"
	}
	if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
		return floatValue
	}
	return Expr(value)
}

// Split the classad by attribute, at the first semi-colon not in quotes.
// Newlines also end an attribute, which is how the long output formats
// separate them.
func attributeSplitFunc(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	insideQuotes := false
	for i, curChar := range data {
		if curChar == '"' && !(i > 0 && data[i-1] == '\\') {
			insideQuotes = !insideQuotes
		} else if (curChar == ';' || curChar == '\n') && !insideQuotes {
			return i + 1, bytes.TrimSpace(data[0:i]), nil
		}
	}
	if atEOF {
		return len(data), bytes.TrimSpace(data), nil
	}
	return 0, nil, nil
}
