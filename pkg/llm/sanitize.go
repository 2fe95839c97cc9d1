// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"strings"
	"unicode/utf8"
)

var injectionMarkers = strings.NewReplacer(
	// Role indicators that could be read as a turn boundary.
	"SYSTEM:", "", "System:", "", "system:", "",
	"ASSISTANT:", "", "Assistant:", "", "assistant:", "",
	"USER:", "", "User:", "", "user:", "",
	// Instruction overrides.
	"Ignore previous instructions", "", "ignore previous instructions", "",
	"Ignore all previous", "", "ignore all previous", "",
	"Disregard previous", "", "disregard previous", "",
	// Delimiters used to break out of the prompt structure.
	"```", "", "---", "", "===", "", "***", "",
)

// SanitizeInput strips prompt injection patterns from document text before
// it is embedded in a prompt, then cuts it to at most limit bytes on a rune
// boundary. A non-positive limit disables truncation.
func SanitizeInput(input string, limit int) string {
	s := strings.TrimSpace(injectionMarkers.Replace(input))
	if limit <= 0 || len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
