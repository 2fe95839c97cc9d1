// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docanalyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
)

var (
	amountPattern = regexp.MustCompile(`(\$|€|£|\b(?:USD|EUR|GBP)\s?)(\d{1,3}(?:,\d{3})+|\d+)(\.\d{1,2})?`)

	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	usDatePattern    = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	monthDatePattern = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`)

	partyPattern = regexp.MustCompile(`(?im)^\s*(claimant|insured|policyholder|adjuster|contractor|vendor|payee|witness|driver|owner|tenant|landlord|agent)(?:\s+name)?\s*:\s*(.+?)\s*$`)
)

var currencySymbols = map[string]string{"$": "USD", "€": "EUR", "£": "GBP"}

const contextWidth = 80

// ExtractRules pulls currency amounts, dates and labelled parties out of
// text with fixed patterns. Results keep their order of appearance.
func ExtractRules(text string) claim.ExtractedFields {
	fields := emptyFields(ExtractorRules)
	fields.Amounts = extractAmounts(text)
	fields.Dates = extractDates(text)
	fields.Parties = extractParties(text)
	fields.Summary = summarize(text)
	return fields
}

func extractAmounts(text string) []claim.Amount {
	amounts := []claim.Amount{}
	for _, m := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		marker := strings.TrimSpace(text[m[2]:m[3]])
		digits := strings.ReplaceAll(text[m[4]:m[5]], ",", "")
		if m[6] >= 0 {
			digits += text[m[6]:m[7]]
		}
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil || v <= 0 {
			continue
		}
		currency, ok := currencySymbols[marker]
		if !ok {
			currency = strings.ToUpper(marker)
		}
		amounts = append(amounts, claim.Amount{Value: v, Currency: currency, Context: lineAround(text, m[0])})
	}
	return amounts
}

type dateMatch struct {
	pos     int
	mention claim.DateMention
}

func extractDates(text string) []claim.DateMention {
	var found []dateMatch
	seen := make(map[time.Time]bool)
	collect := func(re *regexp.Regexp, parse func(string) (time.Time, bool)) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			t, ok := parse(text[loc[0]:loc[1]])
			if !ok || seen[t] {
				continue
			}
			seen[t] = true
			found = append(found, dateMatch{pos: loc[0], mention: claim.DateMention{Value: t, Context: lineAround(text, loc[0])}})
		}
	}
	collect(isoDatePattern, layouts("2006-01-02"))
	collect(usDatePattern, layouts("1/2/2006"))
	collect(monthDatePattern, parseMonthDate)

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	dates := make([]claim.DateMention, 0, len(found))
	for _, f := range found {
		dates = append(dates, f.mention)
	}
	return dates
}

func layouts(ls ...string) func(string) (time.Time, bool) {
	return func(s string) (time.Time, bool) {
		for _, l := range ls {
			if t, err := time.Parse(l, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}
}

// parseMonthDate normalizes "Sept. 3, 2025" and friends to "Sep 3 2025".
func parseMonthDate(s string) (time.Time, bool) {
	fields := strings.Fields(strings.NewReplacer(",", " ", ".", " ").Replace(s))
	if len(fields) != 3 || len(fields[0]) < 3 {
		return time.Time{}, false
	}
	month := strings.ToUpper(fields[0][:1]) + strings.ToLower(fields[0][1:3])
	return layouts("Jan 2 2006")(month + " " + fields[1] + " " + fields[2])
}

func extractParties(text string) []claim.Party {
	parties := []claim.Party{}
	seen := make(map[string]bool)
	for _, m := range partyPattern.FindAllStringSubmatch(text, -1) {
		role := strings.ToLower(m[1])
		name := strings.TrimRight(m[2], ".;,")
		key := role + "|" + strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		parties = append(parties, claim.Party{Name: name, Role: role})
	}
	return parties
}

func summarize(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, 200)
		}
	}
	return ""
}

// lineAround returns the line containing offset, cut to contextWidth.
func lineAround(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}
	return truncate(strings.TrimSpace(text[start:end]), contextWidth)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
