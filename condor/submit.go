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

package condor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/htcondor/xfer/classads"
)

type (
	// SubmitCommand is a single `key = value` line of a submit description.
	SubmitCommand struct {
		Key   string
		Value string
	}

	// SubmitDescription is an ordered HTCondor submit description.  Commands
	// are rendered in insertion order; custom job attributes (`+Name = value`)
	// follow in sorted order, then the queue statement.
	SubmitDescription struct {
		commands   []SubmitCommand
		attributes map[string]interface{}
		queue      int
	}
)

func NewSubmitDescription() *SubmitDescription {
	return &SubmitDescription{
		attributes: make(map[string]interface{}),
		queue:      1,
	}
}

// Set adds a submit command, replacing an earlier one with the same key
// (keys are case-insensitive) in place.
func (sd *SubmitDescription) Set(key, value string) {
	for idx := range sd.commands {
		if strings.EqualFold(sd.commands[idx].Key, key) {
			sd.commands[idx].Value = value
			return
		}
	}
	sd.commands = append(sd.commands, SubmitCommand{Key: key, Value: value})
}

// Get returns the value of a submit command.
func (sd *SubmitDescription) Get(key string) (string, bool) {
	for _, cmd := range sd.commands {
		if strings.EqualFold(cmd.Key, key) {
			return cmd.Value, true
		}
	}
	return "", false
}

// SetAttribute sets a custom job ClassAd attribute.  Strings are quoted;
// classads.Expr values are written verbatim.
func (sd *SubmitDescription) SetAttribute(name string, value interface{}) {
	sd.attributes[name] = value
}

func (sd *SubmitDescription) Attribute(name string) (interface{}, bool) {
	value, ok := sd.attributes[name]
	return value, ok
}

func (sd *SubmitDescription) Commands() []SubmitCommand {
	return append([]SubmitCommand(nil), sd.commands...)
}

// Queue sets how many jobs are queued; it defaults to one.
func (sd *SubmitDescription) Queue(count int) {
	sd.queue = count
}

// String renders the description in condor_submit syntax.
func (sd *SubmitDescription) String() string {
	var b strings.Builder
	for _, cmd := range sd.commands {
		fmt.Fprintf(&b, "%s = %s\n", cmd.Key, cmd.Value)
	}
	names := make([]string, 0, len(sd.attributes))
	for name := range sd.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "+%s = %s\n", name, classads.FormatValue(sd.attributes[name]))
	}
	if sd.queue > 1 {
		fmt.Fprintf(&b, "queue %d\n", sd.queue)
	} else {
		b.WriteString("queue\n")
	}
	return b.String()
}

// Validate checks that every command and attribute renders on a single
// line.  A line break in a value would start a new submit command.
func (sd *SubmitDescription) Validate() error {
	for _, cmd := range sd.commands {
		if strings.ContainsAny(cmd.Key+cmd.Value, "\r\n") {
			return errors.Errorf("submit command %q spans more than one line", cmd.Key)
		}
	}
	for name, value := range sd.attributes {
		if strings.ContainsAny(name+classads.FormatValue(value), "\r\n") {
			return errors.Errorf("job attribute %q spans more than one line", name)
		}
	}
	return nil
}

// QuoteArgument quotes a single argument for the "new" arguments syntax,
// where single quotes group whitespace and a doubled quote is a literal.
func QuoteArgument(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", "''") + "'"
}

// Arguments renders an argument list for the `arguments` submit command.
func Arguments(args ...string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, QuoteArgument(strings.ReplaceAll(arg, `"`, `""`)))
	}
	return `"` + strings.Join(quoted, " ") + `"`
}
