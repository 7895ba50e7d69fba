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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateExpression(t *testing.T) {
	valid := []string{
		`UniqueName == "M1"`,
		`(TARGET.Arch == "X86_64") && (Memory >= 1024)`,
		`stringListMember(Machine, "a.example.org,b.example.org")`,
		`!isUndefined(HasFileTransfer)`,
		`Name =?= "slot1@host" || Name =!= undefined`,
		`HoldReason == "odd (text"`,
		`true`,
	}
	for _, expr := range valid {
		assert.NoError(t, ValidateExpression(expr), expr)
	}

	invalid := []string{
		``,
		`   `,
		`UniqueName == "M1`,
		`(Memory > 1024`,
		`Memory > 1024)`,
		`(Memory > 1024]`,
		`UniqueName ==`,
		`&& Memory > 1`,
		`Memory > 1 ||`,
		`!`,
		"TARGET.Memory > 1\nqueue 50",
		"Cpus > 1\r",
	}
	for _, expr := range invalid {
		assert.Error(t, ValidateExpression(expr), expr)
	}
}
