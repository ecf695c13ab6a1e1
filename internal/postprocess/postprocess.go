// Package postprocess strips common LLM artifacts from model output before
// it is used downstream: reasoning blocks, echoed instructions, and quote
// wrapping.
package postprocess

import (
	"regexp"
	"strings"
)

// reasoningRe matches closed reasoning blocks. Each tag variant is listed
// explicitly because RE2 has no backreferences.
var reasoningRe = regexp.MustCompile(
	`(?is)<think(?:ing)?>.*?</think(?:ing)?>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// openReasoningRe matches a reasoning tag that was never closed (the model
// was cut off mid-thought); everything after it is dropped.
var openReasoningRe = regexp.MustCompile(
	`(?is)<(?:think(?:ing)?|reasoning|reflection)>.*$`,
)

// echoRe matches introductory phrases models prepend even when told not to.
// Anchored to the start and requiring a colon to limit false positives.
var echoRe = regexp.MustCompile(
	`(?i)^(?:(?:certainly|sure|of course)[,.]? )?(?:here(?:'s| is)(?: the)? |the )?(?:refined |polished |corrected |translated )?(?:translation|text)\s*:`,
)

// quotePairs are wrappings stripped when they enclose the whole output.
var quotePairs = [][2]rune{
	{'"', '"'},
	{'\'', '\''},
	{'«', '»'},
	{'“', '”'},
	{'‘', '’'},
}

// Clean returns text with reasoning blocks, instruction echoes and outer
// quote wrapping removed, trimmed of surrounding whitespace.
func Clean(text string) string {
	text = reasoningRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(openReasoningRe.ReplaceAllString(text, ""))

	if loc := echoRe.FindStringIndex(text); loc != nil {
		text = strings.TrimSpace(text[loc[1]:])
	}

	runes := []rune(text)
	if n := len(runes); n >= 2 {
		for _, p := range quotePairs {
			if runes[0] == p[0] && runes[n-1] == p[1] {
				text = strings.TrimSpace(string(runes[1 : n-1]))
				break
			}
		}
	}
	return strings.TrimSpace(text)
}
